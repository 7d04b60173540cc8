package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shelfspace/inventory-be/internal/models"
)

// ErrTokenExpired indicates a well-signed token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid indicates a malformed or tampered token.
var ErrTokenInvalid = errors.New("token invalid")

// Claims are the signed contents of a session token. They snapshot the user's
// id and role at mint time; later role changes are not reflected until the
// user re-authenticates.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64       `json:"uid"`
	Role   models.Role `json:"role"`
}

// TokenManager issues and validates signed session tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager creates a manager with the provided secret, issuer, and
// lifetime.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// Mint issues a signed token carrying the user's id and role.
func (t *TokenManager) Mint(user models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserID: user.ID,
		Role:   user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate checks signature integrity first, then expiry. Both failures map
// to 401 at the API boundary; the distinct errors exist for diagnostics.
func (t *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if _, err := models.ParseRole(claims.Role.String()); err != nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
