package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfspace/inventory-be/internal/audit"
	"github.com/shelfspace/inventory-be/internal/challenge"
	"github.com/shelfspace/inventory-be/internal/models"
	"github.com/shelfspace/inventory-be/internal/storage"
	"github.com/shelfspace/inventory-be/internal/twofactor"
)

// ErrInvalidCredentials covers both unknown email and password mismatch, so
// responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidChallenge covers unknown, expired, and already-consumed challenge
// tokens.
var ErrInvalidChallenge = errors.New("invalid or expired challenge")

// ErrInvalidCode indicates a resolved challenge with a wrong one-time code.
// The challenge stays live so the caller may retry within its TTL.
var ErrInvalidCode = errors.New("invalid one-time code")

// Service orchestrates the login protocol: password check, optional
// second-factor challenge, and session-token issuance.
type Service struct {
	users        storage.UserStore
	tokens       *TokenManager
	twoFactor    *twofactor.Engine
	challenges   challenge.Cache
	audit        *audit.Recorder
	challengeTTL time.Duration
}

// NewService wires the orchestrator's collaborators.
func NewService(
	users storage.UserStore,
	tokens *TokenManager,
	engine *twofactor.Engine,
	challenges challenge.Cache,
	recorder *audit.Recorder,
	challengeTTL time.Duration,
) *Service {
	return &Service{
		users:        users,
		tokens:       tokens,
		twoFactor:    engine,
		challenges:   challenges,
		audit:        recorder,
		challengeTTL: challengeTTL,
	}
}

// LoginResult is the outcome of a completed or half-completed login attempt.
// Either AccessToken is set, or RequiresTwoFactor is true and ChallengeToken
// must be redeemed via VerifyTwoFactor.
type LoginResult struct {
	AccessToken       string
	RequiresTwoFactor bool
	ChallengeToken    string
	User              models.User
}

// Register creates a new identity with a hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string, role models.Role) (models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, models.User{
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return models.User{}, err
	}
	s.audit.Record(ctx, user.ID, "User registered",
		fmt.Sprintf("User %s registered with role %s", user.Name, user.Role))
	return user, nil
}

// Login verifies the password and either mints a session token right away or,
// when the second factor is enabled, stashes a pending challenge and returns
// its token instead.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.users.FindUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		token, err := s.challenges.Put(ctx, user.ID, s.challengeTTL)
		if err != nil {
			return LoginResult{}, fmt.Errorf("issue challenge: %w", err)
		}
		return LoginResult{RequiresTwoFactor: true, ChallengeToken: token}, nil
	}

	access, err := s.tokens.Mint(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("mint token: %w", err)
	}
	return LoginResult{AccessToken: access, User: user}, nil
}

// VerifyTwoFactor redeems a pending challenge with a one-time code. The
// challenge is consumed atomically only after the code checks out, so it is
// single-use even under concurrent submissions, while a wrong code leaves it
// live for retry.
func (s *Service) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (LoginResult, error) {
	userID, err := s.challenges.Resolve(ctx, challengeToken)
	if err != nil {
		if errors.Is(err, challenge.ErrNotFound) || errors.Is(err, challenge.ErrExpired) {
			return LoginResult{}, ErrInvalidChallenge
		}
		return LoginResult{}, err
	}

	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return LoginResult{}, ErrInvalidChallenge
		}
		return LoginResult{}, err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == "" {
		return LoginResult{}, ErrInvalidChallenge
	}

	if !s.twoFactor.Verify(user.TwoFactorSecret, code) {
		return LoginResult{}, ErrInvalidCode
	}

	if _, err := s.challenges.Consume(ctx, challengeToken); err != nil {
		// Lost a race, or the TTL elapsed between Resolve and Consume.
		return LoginResult{}, ErrInvalidChallenge
	}

	access, err := s.tokens.Mint(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("mint token: %w", err)
	}
	return LoginResult{AccessToken: access, User: user}, nil
}

// EnableTwoFactor turns the second factor on and returns the shared secret
// for provisioning an authenticator app. Idempotent: an existing secret is
// returned as-is, never rotated, so an already-configured authenticator keeps
// working.
func (s *Service) EnableTwoFactor(ctx context.Context, user models.User) (string, error) {
	secret := user.TwoFactorSecret
	if secret == "" {
		generated, err := s.twoFactor.GenerateSecret(user.Email)
		if err != nil {
			return "", err
		}
		secret = generated
	}
	if err := s.users.SetTwoFactor(ctx, user.ID, secret, true); err != nil {
		return "", err
	}
	s.audit.Record(ctx, user.ID, "2FA enabled",
		fmt.Sprintf("User %s enabled 2FA", user.Name))
	return secret, nil
}

// DisableTwoFactor clears the secret and enabled flag unconditionally.
func (s *Service) DisableTwoFactor(ctx context.Context, user models.User) error {
	if err := s.users.ClearTwoFactor(ctx, user.ID); err != nil {
		return err
	}
	s.audit.Record(ctx, user.ID, "2FA disabled",
		fmt.Sprintf("User %s disabled 2FA", user.Name))
	return nil
}

// Logout records the event; tokens are stateless, so this is advisory only.
func (s *Service) Logout(ctx context.Context, user models.User) {
	s.audit.Record(ctx, user.ID, "User logged out",
		fmt.Sprintf("User %s logged out", user.Name))
}

// NormalizeEmail trims and lowercases an email so lookups are exact matches
// on the stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
