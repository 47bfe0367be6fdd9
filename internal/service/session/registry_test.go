package session_test

import (
	"testing"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/service/session"
)

var (
	alice = identity.User{ID: "u-alice", Name: "Alice"}
	bob   = identity.User{ID: "u-bob", Name: "Bob"}
)

func TestRegisterAndOwnerOf(t *testing.T) {
	reg := session.NewRegistry()

	if err := reg.Register("c1", alice); err != nil {
		t.Fatalf("Register err: %v", err)
	}

	owner, err := reg.OwnerOf("c1")
	if err != nil {
		t.Fatalf("OwnerOf err: %v", err)
	}
	if owner.ID != alice.ID {
		t.Fatalf("unexpected owner: got %s want %s", owner.ID, alice.ID)
	}

	if _, err := reg.OwnerOf("missing"); err != session.ErrConnectionNotFound {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestRegisterDuplicateConnection(t *testing.T) {
	reg := session.NewRegistry()

	if err := reg.Register("c1", alice); err != nil {
		t.Fatalf("Register err: %v", err)
	}
	if err := reg.Register("c1", bob); err != session.ErrDuplicateConnection {
		t.Fatalf("expected ErrDuplicateConnection, got %v", err)
	}
}

func TestDeregisterLastConnection(t *testing.T) {
	reg := session.NewRegistry()

	_ = reg.Register("c1", alice)
	_ = reg.Register("c2", alice)

	_, wasLast, err := reg.Deregister("c1")
	if err != nil {
		t.Fatalf("Deregister err: %v", err)
	}
	if wasLast {
		t.Fatal("c2 still open, wasLast should be false")
	}

	user, wasLast, err := reg.Deregister("c2")
	if err != nil {
		t.Fatalf("Deregister err: %v", err)
	}
	if !wasLast {
		t.Fatal("expected wasLast for final connection")
	}
	if user.ID != alice.ID {
		t.Fatalf("unexpected user: %s", user.ID)
	}

	// Entry iff at least one open connection.
	if got := reg.ConnectionsOf(alice.ID); len(got) != 0 {
		t.Fatalf("expected no connections, got %v", got)
	}
	if got := reg.ActiveUsers(); len(got) != 0 {
		t.Fatalf("expected no active users, got %v", got)
	}
}

func TestDeregisterUnknownIsNonFatal(t *testing.T) {
	reg := session.NewRegistry()

	if _, _, err := reg.Deregister("ghost"); err != session.ErrConnectionNotFound {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestConnectionsOfUnknownUser(t *testing.T) {
	reg := session.NewRegistry()

	if got := reg.ConnectionsOf("nobody"); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestActiveUsersOrderedByFirstSeen(t *testing.T) {
	reg := session.NewRegistry()

	_ = reg.Register("c1", alice)
	_ = reg.Register("c2", bob)
	_ = reg.Register("c3", alice)

	users := reg.ActiveUsers()
	if len(users) != 2 {
		t.Fatalf("expected 2 active users, got %d", len(users))
	}
	if users[0].ID != alice.ID || users[1].ID != bob.ID {
		t.Fatalf("unexpected order: %v", users)
	}
}
