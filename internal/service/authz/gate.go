// Package authz gates realtime connections and workspace joins.
//
// Both checks are pure: the gate performs lookups only, so callers can run
// it before taking any registry or tracker lock.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/service/auth"
	"github.com/planextra/backend/internal/store"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrDenied          = errors.New("access denied")
)

// CredentialVerifier validates a raw bearer token.
type CredentialVerifier interface {
	VerifyCredential(rawToken string) (auth.Claims, error)
}

// UserLookup resolves a user id to its stored account.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (identity.Account, error)
}

// MembershipLookup resolves a user's role in a workspace.
type MembershipLookup interface {
	GetRole(ctx context.Context, workspaceID, userID string) (identity.Role, error)
}

// Gate is the single checkpoint in front of the realtime layer.
type Gate struct {
	tokens      CredentialVerifier
	users       UserLookup
	memberships MembershipLookup
}

// NewGate wires the gate to its collaborators.
func NewGate(tokens CredentialVerifier, users UserLookup, memberships MembershipLookup) *Gate {
	return &Gate{tokens: tokens, users: users, memberships: memberships}
}

// AuthenticateConnection validates a credential and resolves the connecting
// user. Any failure, including an unknown user id inside a valid token,
// yields ErrUnauthenticated.
func (g *Gate) AuthenticateConnection(ctx context.Context, rawToken string) (identity.User, error) {
	claims, err := g.tokens.VerifyCredential(rawToken)
	if err != nil {
		return identity.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	account, err := g.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return identity.User{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
		}
		return identity.User{}, fmt.Errorf("lookup user: %w", err)
	}

	return account.Profile(), nil
}

// AuthorizeJoin checks that the user holds at least minRole in the
// workspace. A missing workspace and a missing membership both map to
// ErrDenied; other store failures propagate as-is.
func (g *Gate) AuthorizeJoin(ctx context.Context, userID, workspaceID string, minRole identity.Role) error {
	role, err := g.memberships.GetRole(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotAMember) {
			return ErrDenied
		}
		return fmt.Errorf("lookup role: %w", err)
	}

	if !role.AtLeast(minRole) {
		return ErrDenied
	}
	return nil
}
