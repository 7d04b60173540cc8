// Package memory provides map-backed stores used by unit tests and local
// development when no database is available.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/storage"
)

var (
	_ storage.UserStore      = (*Store)(nil)
	_ storage.InventoryStore = (*Store)(nil)
	_ storage.AuditStore     = (*Store)(nil)
)

// Store is an in-memory implementation of the storage interfaces, safe for
// concurrent use.
type Store struct {
	mu         sync.Mutex
	users      map[int64]models.User
	items      map[int64]models.Item
	audits     []models.AuditEntry
	nextUserID int64
	nextItemID int64
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:      make(map[int64]models.User),
		items:      make(map[int64]models.Item),
		nextUserID: 1,
		nextItemID: 1,
	}
}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.DeletedAt == nil && existing.Email == user.Email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	now := time.Now()
	user.ID = s.nextUserID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.nextUserID++
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.DeletedAt == nil && user.Email == email {
			return user, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *Store) FindUserByID(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.DeletedAt != nil {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []models.User
	for _, user := range s.users {
		if user.DeletedAt == nil {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok || current.DeletedAt != nil {
		return models.User{}, storage.ErrNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && existing.DeletedAt == nil && existing.Email == user.Email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	current.Name = user.Name
	current.Email = user.Email
	current.Role = user.Role
	current.PasswordHash = user.PasswordHash
	current.UpdatedAt = time.Now()
	s.users[user.ID] = current
	return current, nil
}

func (s *Store) SetTwoFactor(_ context.Context, id int64, secret string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.DeletedAt != nil {
		return storage.ErrNotFound
	}
	user.TwoFactorSecret = secret
	user.TwoFactorEnabled = enabled
	user.UpdatedAt = time.Now()
	s.users[id] = user
	return nil
}

func (s *Store) ClearTwoFactor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.DeletedAt != nil {
		return storage.ErrNotFound
	}
	user.TwoFactorSecret = ""
	user.TwoFactorEnabled = false
	user.UpdatedAt = time.Now()
	s.users[id] = user
	return nil
}

func (s *Store) SoftDeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok || user.DeletedAt != nil {
		return storage.ErrNotFound
	}
	now := time.Now()
	user.DeletedAt = &now
	s.users[id] = user
	return nil
}

func (s *Store) CreateItem(_ context.Context, item models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	item.ID = s.nextItemID
	item.CreatedAt = now
	item.UpdatedAt = now
	s.nextItemID++
	s.items[item.ID] = item
	return item, nil
}

func (s *Store) FindItem(_ context.Context, id int64) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return models.Item{}, storage.ErrNotFound
	}
	return item, nil
}

func (s *Store) ListItems(_ context.Context, page, perPage int, search string) ([]models.Item, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	needle := strings.ToLower(search)
	var matched []models.Item
	for _, item := range s.items {
		if needle == "" ||
			strings.Contains(strings.ToLower(item.Name), needle) ||
			strings.Contains(strings.ToLower(item.Description), needle) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	start := (page - 1) * perPage
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) UpdateItem(_ context.Context, item models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[item.ID]
	if !ok {
		return models.Item{}, storage.ErrNotFound
	}
	current.Name = item.Name
	current.Description = item.Description
	current.Quantity = item.Quantity
	current.Price = item.Price
	current.UpdatedAt = time.Now()
	s.items[item.ID] = current
	return current, nil
}

func (s *Store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) AppendAudit(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.audits) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.audits = append(s.audits, entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit log, oldest first.
func (s *Store) AuditEntries() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditEntry, len(s.audits))
	copy(out, s.audits)
	return out
}
