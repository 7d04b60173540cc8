package challenge

import (
	"context"
	"sync"
	"time"
)

var _ Cache = (*Memory)(nil)

type entry struct {
	userID    int64
	expiresAt time.Time
}

// Memory is an in-process Cache backed by a mutex-guarded map. Expiry is
// enforced by deadline comparison at read time; an optional sweep reclaims
// memory from abandoned entries.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-process cache. If sweepInterval is positive, a
// background goroutine periodically drops expired entries until Close is
// called.
func NewMemory(sweepInterval time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go m.sweep(sweepInterval)
	}
	return m
}

// Close stops the background sweep, if any.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *Memory) Put(_ context.Context, userID int64, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.entries[token] = entry{userID: userID, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return token, nil
}

func (m *Memory) Resolve(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return 0, ErrNotFound
	}
	if m.now().After(e.expiresAt) {
		// Left in place for the sweep; an expired entry is permanently
		// unresolvable either way.
		return 0, ErrExpired
	}
	return e.userID, nil
}

func (m *Memory) Consume(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return 0, ErrNotFound
	}
	delete(m.entries, token)
	if m.now().After(e.expiresAt) {
		return 0, ErrExpired
	}
	return e.userID, nil
}

func (m *Memory) Invalidate(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}

func (m *Memory) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for token, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, token)
				}
			}
			m.mu.Unlock()
		}
	}
}
