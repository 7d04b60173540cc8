// Package twofactor generates shared secrets and verifies time-based one-time
// codes against them.
package twofactor

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// period is the standard TOTP time step.
	period = 30
	// secretSize is the raw secret length in bytes; 32 bytes gives 256 bits
	// of entropy.
	secretSize = 32

	// DefaultSkew tolerates +-2 time steps (about one minute of clock drift).
	DefaultSkew = 2
)

// Engine produces secrets and verifies codes with a configured drift window.
type Engine struct {
	issuer string
	skew   uint
}

// NewEngine creates an engine. issuer labels provisioned secrets in
// authenticator apps; skew is the number of adjacent time steps accepted.
func NewEngine(issuer string, skew uint) *Engine {
	return &Engine{issuer: issuer, skew: skew}
}

// GenerateSecret produces a fresh base32-encoded shared secret for the given
// account.
func (e *Engine) GenerateSecret(account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      period,
		SecretSize:  secretSize,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// Verify reports whether code matches the secret for the current time step or
// any step within the drift window. Malformed codes are rejected, never a
// panic or error.
func (e *Engine) Verify(secret, code string) bool {
	return e.verifyAt(secret, code, time.Now())
}

func (e *Engine) verifyAt(secret, code string, at time.Time) bool {
	if !wellFormedCode(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      e.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func wellFormedCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
