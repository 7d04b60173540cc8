package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/storage"
	"github.com/shopspring/decimal"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.UserStore      = (*Store)(nil)
	_ storage.InventoryStore = (*Store)(nil)
	_ storage.AuditStore     = (*Store)(nil)
)

const uniqueViolation = "23505"

// Store provides Postgres-backed persistence for users, inventory, and audit
// logs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'viewer',
			two_factor_secret TEXT,
			two_factor_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_active_idx
			ON users (email) WHERE deleted_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0,
			price NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_by BIGINT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS inventory_created_at_idx ON inventory (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			details TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const userColumns = `id, name, email, password_hash, role, COALESCE(two_factor_secret, ''), two_factor_enabled, created_at, updated_at, deleted_at`

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns + `;`
	row := s.pool.QueryRow(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return created, nil
}

// FindUserByEmail fetches an active user by exact email match.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL;`
	return scanUser(s.pool.QueryRow(ctx, query, email))
}

// FindUserByID fetches an active user by id.
func (s *Store) FindUserByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL;`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// ListUsers returns all active users, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY id;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUser persists name, email, role, and password hash for an active user.
func (s *Store) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		UPDATE users
		SET name = $2, email = $3, role = $4, password_hash = $5, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + userColumns + `;`
	row := s.pool.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.Role, user.PasswordHash)
	updated, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, storage.ErrAlreadyExists
		}
		return models.User{}, err
	}
	return updated, nil
}

// SetTwoFactor updates only the second-factor secret and enabled flag.
func (s *Store) SetTwoFactor(ctx context.Context, id int64, secret string, enabled bool) error {
	const query = `
		UPDATE users SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL;`
	tag, err := s.pool.Exec(ctx, query, id, secret, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ClearTwoFactor removes the secret and disables the second factor.
func (s *Store) ClearTwoFactor(ctx context.Context, id int64) error {
	const query = `
		UPDATE users SET two_factor_secret = NULL, two_factor_enabled = FALSE, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL;`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SoftDeleteUser marks a user deleted without removing the row.
func (s *Store) SoftDeleteUser(ctx context.Context, id int64) error {
	const query = `UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL;`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const itemColumns = `id, name, description, quantity, price::text, created_by, created_at, updated_at`

// CreateItem inserts a new inventory row.
func (s *Store) CreateItem(ctx context.Context, item models.Item) (models.Item, error) {
	const query = `
		INSERT INTO inventory (name, description, quantity, price, created_by)
		VALUES ($1, $2, $3, $4::numeric, $5)
		RETURNING ` + itemColumns + `;`
	row := s.pool.QueryRow(ctx, query, item.Name, item.Description, item.Quantity, item.Price.String(), item.CreatedBy)
	return scanItem(row)
}

// FindItem fetches an inventory item by id.
func (s *Store) FindItem(ctx context.Context, id int64) (models.Item, error) {
	const query = `SELECT ` + itemColumns + ` FROM inventory WHERE id = $1;`
	return scanItem(s.pool.QueryRow(ctx, query, id))
}

// ListItems returns a page of items newest-first with the total match count.
func (s *Store) ListItems(ctx context.Context, page, perPage int, search string) ([]models.Item, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	pattern := "%" + search + "%"

	var total int64
	const countQuery = `
		SELECT COUNT(*) FROM inventory
		WHERE $1 = '' OR name ILIKE $2 OR description ILIKE $2;`
	if err := s.pool.QueryRow(ctx, countQuery, search, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}

	const query = `
		SELECT ` + itemColumns + ` FROM inventory
		WHERE $1 = '' OR name ILIKE $2 OR description ILIKE $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4;`
	rows, err := s.pool.Query(ctx, query, search, pattern, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// UpdateItem persists name, description, quantity, and price.
func (s *Store) UpdateItem(ctx context.Context, item models.Item) (models.Item, error) {
	const query = `
		UPDATE inventory
		SET name = $2, description = $3, quantity = $4, price = $5::numeric, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns + `;`
	row := s.pool.QueryRow(ctx, query, item.ID, item.Name, item.Description, item.Quantity, item.Price.String())
	return scanItem(row)
}

// DeleteItem removes an inventory row.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inventory WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendAudit inserts an audit record.
func (s *Store) AppendAudit(ctx context.Context, entry models.AuditEntry) error {
	const query = `INSERT INTO audit_logs (action, details, user_id) VALUES ($1, $2, $3);`
	_, err := s.pool.Exec(ctx, query, entry.Action, entry.Details, entry.UserID)
	return err
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&user.TwoFactorSecret, &user.TwoFactorEnabled,
		&user.CreatedAt, &user.UpdatedAt, &user.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func scanItem(row pgx.Row) (models.Item, error) {
	var item models.Item
	var price string
	if err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Quantity, &price,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Item{}, storage.ErrNotFound
		}
		return models.Item{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return models.Item{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	item.Price = parsed
	return item, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
