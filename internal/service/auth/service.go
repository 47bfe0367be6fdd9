// Package auth issues and verifies the bearer credentials used by both the
// HTTP API and the realtime connection handshake.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailTaken         = errors.New("email already registered")
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Service handles signup, login and token verification.
type Service struct {
	users  store.UserStore
	secret []byte
	ttl    time.Duration
}

// NewService wires the auth service to its user store.
func NewService(users store.UserStore, secret []byte, ttl time.Duration) *Service {
	return &Service{users: users, secret: secret, ttl: ttl}
}

// Signup registers a new account and returns it with a fresh token.
func (s *Service) Signup(ctx context.Context, name, email, password string) (identity.Account, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return identity.Account{}, "", fmt.Errorf("hash password: %w", err)
	}

	account := identity.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.CreateUser(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return identity.Account{}, "", ErrEmailTaken
		}
		return identity.Account{}, "", err
	}

	token, err := s.IssueToken(account.Profile())
	if err != nil {
		return identity.Account{}, "", err
	}
	return account, token, nil
}

// Login checks a password against the stored hash and issues a token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (identity.Account, string, error) {
	account, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return identity.Account{}, "", ErrInvalidCredentials
		}
		return identity.Account{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return identity.Account{}, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(account.Profile())
	if err != nil {
		return identity.Account{}, "", err
	}
	return account, token, nil
}

// IssueToken signs a short-lived HS256 access token for a user.
func (s *Service) IssueToken(user identity.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyCredential parses and validates a raw token string. Expired,
// malformed or foreign-signature tokens all fail with ErrInvalidToken.
func (s *Service) VerifyCredential(rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(rawToken, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{UserID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
