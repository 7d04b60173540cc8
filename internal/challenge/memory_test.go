package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestMemory() (*Memory, *time.Time) {
	m := NewMemory(0)
	now := time.Now()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestPutResolve(t *testing.T) {
	t.Parallel()
	m, _ := newTestMemory()
	ctx := context.Background()

	token, err := m.Put(ctx, 42, 5*time.Minute)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if token == "" {
		t.Fatal("Put returned empty token")
	}

	got, err := m.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got != 42 {
		t.Fatalf("Resolve = %d, want 42", got)
	}

	// Resolve must not consume.
	if _, err := m.Resolve(ctx, token); err != nil {
		t.Fatalf("second Resolve error: %v", err)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	t.Parallel()
	m, _ := newTestMemory()
	if _, err := m.Resolve(context.Background(), "no-such-token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve unknown = %v, want ErrNotFound", err)
	}
}

func TestMonotonicExpiry(t *testing.T) {
	t.Parallel()
	m, now := newTestMemory()
	ctx := context.Background()

	token, err := m.Put(ctx, 7, 5*time.Minute)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	*now = now.Add(5*time.Minute + time.Second)
	for i := 0; i < 3; i++ {
		if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrExpired) {
			t.Fatalf("Resolve after expiry = %v, want ErrExpired", err)
		}
	}

	// No resurrection once expired, even with the clock wound back.
	if _, err := m.Consume(ctx, token); !errors.Is(err, ErrExpired) {
		t.Fatalf("Consume after expiry = %v, want ErrExpired", err)
	}
	if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve after expired consume = %v, want ErrNotFound", err)
	}
}

func TestConsumeSingleUse(t *testing.T) {
	t.Parallel()
	m, _ := newTestMemory()
	ctx := context.Background()

	token, err := m.Put(ctx, 9, time.Minute)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := m.Consume(ctx, token)
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if got != 9 {
		t.Fatalf("Consume = %d, want 9", got)
	}

	if _, err := m.Consume(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Consume = %v, want ErrNotFound", err)
	}
	if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve after Consume = %v, want ErrNotFound", err)
	}
}

func TestConsumeConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	m, _ := newTestMemory()
	ctx := context.Background()

	token, err := m.Put(ctx, 3, time.Minute)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Consume(ctx, token); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	if winners != 1 {
		t.Fatalf("%d concurrent consumers won, want exactly 1", winners)
	}
}

func TestInvalidateIdempotent(t *testing.T) {
	t.Parallel()
	m, _ := newTestMemory()
	ctx := context.Background()

	token, err := m.Put(ctx, 5, time.Minute)
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := m.Invalidate(ctx, token); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}
	if err := m.Invalidate(ctx, token); err != nil {
		t.Fatalf("repeat Invalidate error: %v", err)
	}
	if _, err := m.Resolve(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve after Invalidate = %v, want ErrNotFound", err)
	}
}

func TestTokensAreUnique(t *testing.T) {
	t.Parallel()
	m, _ := newTestMemory()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := m.Put(ctx, int64(i), time.Minute)
		if err != nil {
			t.Fatalf("Put error: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = true
	}
}
