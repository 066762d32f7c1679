// Package auth issues and verifies bearer tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken indicates a malformed, expired, or badly signed token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds token signing parameters.
type Config struct {
	// Secret is the HS256 signing key.
	Secret []byte

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if len(c.Secret) == 0 {
		return fmt.Errorf("%w: signing secret required", ErrInvalidConfig)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrInvalidConfig)
	}
	return nil
}

// Claims are the token claims carried for an authenticated user.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies signed bearer tokens.
type Tokens struct {
	config Config
}

// NewTokens creates a token issuer.
func NewTokens(config Config) (*Tokens, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Tokens{config: config}, nil
}

// Issue signs a token for the user, valid for the configured TTL.
func (t *Tokens) Issue(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.config.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning the user id and email.
func (t *Tokens) Verify(tokenString string) (uuid.UUID, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.config.Secret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return userID, claims.Email, nil
}
