package storage

import (
	"context"
	"errors"

	"github.com/shelfspace/inventory-be/internal/models"
)

// ErrNotFound indicates a record does not exist (or is soft-deleted).
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore captures identity persistence operations. Soft-deleted users are
// excluded from every lookup.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	FindUserByID(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// UpdateUser persists name, email, role, and password hash.
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	// SetTwoFactor mutates only the second-factor secret and enabled flag.
	SetTwoFactor(ctx context.Context, id int64, secret string, enabled bool) error
	// ClearTwoFactor removes the secret and disables the second factor.
	ClearTwoFactor(ctx context.Context, id int64) error
	// SoftDeleteUser marks the user deleted; the row is retained.
	SoftDeleteUser(ctx context.Context, id int64) error
}

// InventoryStore captures persistence operations for inventory items.
type InventoryStore interface {
	CreateItem(ctx context.Context, item models.Item) (models.Item, error)
	FindItem(ctx context.Context, id int64) (models.Item, error)
	// ListItems returns a page of items newest-first, optionally filtered by a
	// case-insensitive substring match on name or description, plus the total
	// match count.
	ListItems(ctx context.Context, page, perPage int, search string) ([]models.Item, int64, error)
	UpdateItem(ctx context.Context, item models.Item) (models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
}

// AuditStore is the append-only sink for audit records.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry models.AuditEntry) error
}
