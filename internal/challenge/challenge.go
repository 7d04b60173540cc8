// Package challenge stores short-lived pending-login entries behind opaque
// single-use tokens. A challenge bridges password verification and
// second-factor verification; it references only a user id so a leaked token
// carries no role or session information.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates a token that never existed or was already consumed.
var ErrNotFound = errors.New("challenge not found")

// ErrExpired indicates a token whose time-to-live elapsed. Callers must treat
// it exactly like ErrNotFound for security decisions; the distinction exists
// for diagnostics only.
var ErrExpired = errors.New("challenge expired")

// Cache maps opaque challenge tokens to pending user ids with expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Put stores a fresh unguessable token for the user and returns it.
	Put(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	// Resolve returns the user id behind a live token without removing it.
	Resolve(ctx context.Context, token string) (int64, error)
	// Consume atomically resolves and removes a live token. Of any number of
	// concurrent calls for the same token, exactly one succeeds; the rest get
	// ErrNotFound.
	Consume(ctx context.Context, token string) (int64, error)
	// Invalidate removes a token; removing an absent token is not an error.
	Invalidate(ctx context.Context, token string) error
}

// newToken returns 32 bytes of cryptographically random material,
// base64url-encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate challenge token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
