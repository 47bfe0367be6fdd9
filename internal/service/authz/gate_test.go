package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/service/auth"
	"github.com/planextra/backend/internal/service/authz"
	"github.com/planextra/backend/internal/store"
)

type fakeVerifier struct {
	claims auth.Claims
	err    error
}

func (f fakeVerifier) VerifyCredential(string) (auth.Claims, error) {
	return f.claims, f.err
}

type fakeUsers struct {
	accounts map[string]identity.Account
}

func (f fakeUsers) GetUserByID(_ context.Context, id string) (identity.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return identity.Account{}, store.ErrNotFound
	}
	return account, nil
}

type fakeMemberships struct {
	roles map[string]map[string]identity.Role // workspace id -> user id -> role
}

func (f fakeMemberships) GetRole(_ context.Context, workspaceID, userID string) (identity.Role, error) {
	members, ok := f.roles[workspaceID]
	if !ok {
		return "", store.ErrNotFound
	}
	role, ok := members[userID]
	if !ok {
		return "", store.ErrNotAMember
	}
	return role, nil
}

func newGate(verifierErr error) *authz.Gate {
	verifier := fakeVerifier{
		claims: auth.Claims{UserID: "u-alice", ExpiresAt: time.Now().Add(time.Hour)},
		err:    verifierErr,
	}
	users := fakeUsers{accounts: map[string]identity.Account{
		"u-alice": {ID: "u-alice", Name: "Alice"},
	}}
	memberships := fakeMemberships{roles: map[string]map[string]identity.Role{
		"w1": {
			"u-alice": identity.RoleViewer,
			"u-bob":   identity.RoleEditor,
		},
	}}
	return authz.NewGate(verifier, users, memberships)
}

func TestAuthenticateConnection(t *testing.T) {
	gate := newGate(nil)

	user, err := gate.AuthenticateConnection(context.Background(), "token")
	if err != nil {
		t.Fatalf("AuthenticateConnection err: %v", err)
	}
	if user.ID != "u-alice" || user.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthenticateConnectionBadCredential(t *testing.T) {
	gate := newGate(auth.ErrInvalidToken)

	_, err := gate.AuthenticateConnection(context.Background(), "expired")
	if !errors.Is(err, authz.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthenticateConnectionUnknownUser(t *testing.T) {
	verifier := fakeVerifier{claims: auth.Claims{UserID: "ghost"}}
	gate := authz.NewGate(verifier, fakeUsers{accounts: map[string]identity.Account{}}, fakeMemberships{})

	_, err := gate.AuthenticateConnection(context.Background(), "token")
	if !errors.Is(err, authz.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthorizeJoin(t *testing.T) {
	gate := newGate(nil)
	ctx := context.Background()

	if err := gate.AuthorizeJoin(ctx, "u-alice", "w1", identity.RoleViewer); err != nil {
		t.Fatalf("viewer joining with viewer minimum: %v", err)
	}

	// Viewer below editor minimum.
	if err := gate.AuthorizeJoin(ctx, "u-alice", "w1", identity.RoleEditor); !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}

	if err := gate.AuthorizeJoin(ctx, "u-bob", "w1", identity.RoleEditor); err != nil {
		t.Fatalf("editor joining with editor minimum: %v", err)
	}

	// Non-member.
	if err := gate.AuthorizeJoin(ctx, "u-carol", "w1", identity.RoleViewer); !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}

	// Unknown workspace.
	if err := gate.AuthorizeJoin(ctx, "u-alice", "w-missing", identity.RoleViewer); !errors.Is(err, authz.ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}
