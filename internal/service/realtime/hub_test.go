package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/planextra/backend/internal/model/event"
	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/service/authz"
	"github.com/planextra/backend/internal/service/presence"
	"github.com/planextra/backend/internal/service/realtime"
	"github.com/planextra/backend/internal/service/session"
)

var (
	alice = identity.User{ID: "u-alice", Name: "Alice"}
	bob   = identity.User{ID: "u-bob", Name: "Bob"}
)

// fakeSender records everything emitted to one connection.
type fakeSender struct {
	mu     sync.Mutex
	events []event.Envelope
	closed bool
	full   bool
}

func (f *fakeSender) Send(env event.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full || f.closed {
		return false
	}
	f.events = append(f.events, env)
	return true
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSender) all() []event.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Envelope, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSender) ofType(eventType string) []event.Envelope {
	var out []event.Envelope
	for _, env := range f.all() {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

// fakeGate authenticates tokens and authorizes joins from fixed maps.
type fakeGate struct {
	tokens map[string]identity.User
	roles  map[string]map[string]identity.Role // workspace -> user -> role
}

func (g *fakeGate) AuthenticateConnection(_ context.Context, rawToken string) (identity.User, error) {
	user, ok := g.tokens[rawToken]
	if !ok {
		return identity.User{}, authz.ErrUnauthenticated
	}
	return user, nil
}

func (g *fakeGate) AuthorizeJoin(_ context.Context, userID, workspaceID string, minRole identity.Role) error {
	members, ok := g.roles[workspaceID]
	if !ok {
		return authz.ErrDenied
	}
	role, ok := members[userID]
	if !ok || !role.AtLeast(minRole) {
		return authz.ErrDenied
	}
	return nil
}

type fixture struct {
	hub      *realtime.Hub
	registry *session.Registry
	tracker  *presence.Tracker
}

func newFixture() *fixture {
	gate := &fakeGate{
		tokens: map[string]identity.User{
			"token-alice": alice,
			"token-bob":   bob,
		},
		roles: map[string]map[string]identity.Role{
			"w1": {alice.ID: identity.RoleEditor, bob.ID: identity.RoleViewer},
			"w2": {alice.ID: identity.RoleViewer, bob.ID: identity.RoleViewer},
		},
	}
	registry := session.NewRegistry()
	tracker := presence.NewTracker()
	hub := realtime.NewHub(registry, tracker, gate, zerolog.Nop())
	return &fixture{hub: hub, registry: registry, tracker: tracker}
}

func (f *fixture) connect(t *testing.T, token string) (*realtime.Client, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	c, err := f.hub.Connect(context.Background(), token, sender)
	if err != nil {
		t.Fatalf("Connect err: %v", err)
	}
	return c, sender
}

func (f *fixture) join(t *testing.T, c *realtime.Client, workspaceID string) {
	t.Helper()
	data, _ := json.Marshal(event.JoinWorkspace{WorkspaceID: workspaceID})
	f.hub.HandleEvent(context.Background(), c, event.Inbound{Type: event.TypeJoinWorkspace, Data: data})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func presenceUsers(t *testing.T, env event.Envelope) []identity.User {
	t.Helper()
	update, ok := env.Data.(event.PresenceUpdate)
	if !ok {
		t.Fatalf("unexpected payload type %T", env.Data)
	}
	return update.Users
}

func TestConnectSendsActiveUsersSnapshot(t *testing.T) {
	f := newFixture()

	_, senderA := f.connect(t, "token-alice")
	_, senderB := f.connect(t, "token-bob")

	got := senderA.ofType(event.TypeActiveUsers)
	if len(got) != 1 {
		t.Fatalf("expected 1 activeUsers event, got %d", len(got))
	}
	snapshot := got[0].Data.(event.ActiveUsers)
	if len(snapshot.Users) != 1 || snapshot.Users[0].ID != alice.ID {
		t.Fatalf("alice's snapshot should contain only alice: %v", snapshot.Users)
	}

	// Bob connected second and sees both.
	snapshot = senderB.ofType(event.TypeActiveUsers)[0].Data.(event.ActiveUsers)
	if len(snapshot.Users) != 2 {
		t.Fatalf("bob's snapshot should contain both users: %v", snapshot.Users)
	}
}

func TestConnectRejectsBadCredential(t *testing.T) {
	f := newFixture()

	sender := &fakeSender{}
	_, err := f.hub.Connect(context.Background(), "expired-token", sender)
	if !errors.Is(err, authz.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}

	// Never registered.
	if users := f.registry.ActiveUsers(); len(users) != 0 {
		t.Fatalf("refused connection must not be registered: %v", users)
	}
}

func TestJoinBroadcastsPresence(t *testing.T) {
	f := newFixture()

	cA, senderA := f.connect(t, "token-alice")
	cB, senderB := f.connect(t, "token-bob")

	f.join(t, cA, "w1")

	updates := senderA.ofType(event.TypePresenceUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 presence-update for alice, got %d", len(updates))
	}
	users := presenceUsers(t, updates[0])
	if len(users) != 1 || users[0].ID != alice.ID {
		t.Fatalf("unexpected presence: %v", users)
	}

	// Bob is not in w1 yet and hears nothing.
	if got := senderB.ofType(event.TypePresenceUpdate); len(got) != 0 {
		t.Fatalf("bob should not receive w1 presence yet: %v", got)
	}

	f.join(t, cB, "w1")
	if got := senderA.ofType(event.TypePresenceUpdate); len(got) != 2 {
		t.Fatalf("alice should see bob's arrival, got %d updates", len(got))
	}
}

func TestJoinDeniedMutatesNothing(t *testing.T) {
	f := newFixture()

	cA, senderA := f.connect(t, "token-alice")

	f.join(t, cA, "w-private")

	if got := senderA.ofType(event.TypeError); len(got) != 1 {
		t.Fatalf("expected 1 error event, got %d", len(got))
	}
	if got := senderA.ofType(event.TypePresenceUpdate); len(got) != 0 {
		t.Fatalf("denied join must not broadcast: %v", got)
	}
	if users := f.tracker.PresentUsers("w-private"); len(users) != 0 {
		t.Fatalf("denied join must not mutate presence: %v", users)
	}
}

func TestSecondTabJoinDoesNotRebroadcast(t *testing.T) {
	f := newFixture()

	c1, sender1 := f.connect(t, "token-alice")
	c2, sender2 := f.connect(t, "token-alice")

	f.join(t, c1, "w1")
	f.join(t, c2, "w1")

	// The workspace-wide broadcast happened once, on the first join; it
	// reached both of alice's connections. The second tab's own join only
	// produced a connection-scoped snapshot, not a second broadcast.
	if got := sender1.ofType(event.TypePresenceUpdate); len(got) != 1 {
		t.Fatalf("expected 1 presence-update on first tab, got %d", len(got))
	}
	if got := sender2.ofType(event.TypePresenceUpdate); len(got) != 2 {
		t.Fatalf("expected broadcast + snapshot on second tab, got %d", len(got))
	}

	if users := f.tracker.PresentUsers("w1"); len(users) != 1 {
		t.Fatalf("presence must not double-count: %v", users)
	}
}

func TestRepeatJoinFromSameConnection(t *testing.T) {
	f := newFixture()

	c1, sender1 := f.connect(t, "token-alice")

	f.join(t, c1, "w1")
	f.join(t, c1, "w1")

	// One broadcast, one snapshot; never two broadcasts.
	if got := sender1.ofType(event.TypePresenceUpdate); len(got) != 2 {
		t.Fatalf("expected broadcast + snapshot, got %d", len(got))
	}
	if users := f.tracker.PresentUsers("w1"); len(users) != 1 {
		t.Fatalf("presence must not duplicate: %v", users)
	}
}

func TestTaskUpdateReachesPeersOnly(t *testing.T) {
	f := newFixture()

	cA, senderA := f.connect(t, "token-alice")
	cB, senderB := f.connect(t, "token-bob")

	f.join(t, cA, "w1")
	f.join(t, cB, "w1")

	data, _ := json.Marshal(event.TaskUpdate{
		WorkspaceID: "w1",
		TaskID:      "t1",
		Changes:     json.RawMessage(`{"category":"finished"}`),
	})
	f.hub.HandleEvent(context.Background(), cA, event.Inbound{Type: event.TypeTaskUpdate, Data: data})

	got := senderB.ofType(event.TypeTaskUpdated)
	if len(got) != 1 {
		t.Fatalf("expected 1 task-updated for bob, got %d", len(got))
	}
	updated := got[0].Data.(event.TaskUpdated)
	if updated.TaskID != "t1" || updated.UpdatedBy.ID != alice.ID {
		t.Fatalf("unexpected payload: %+v", updated)
	}

	// The sender never hears its own update.
	if got := senderA.ofType(event.TypeTaskUpdated); len(got) != 0 {
		t.Fatalf("sender must not receive its own task-updated: %v", got)
	}
}

func TestTaskUpdateRequiresJoin(t *testing.T) {
	f := newFixture()

	cA, senderA := f.connect(t, "token-alice")
	cB, senderB := f.connect(t, "token-bob")
	f.join(t, cB, "w1")

	// Alice is a member of w1 but has not joined from this connection.
	data, _ := json.Marshal(event.TaskUpdate{WorkspaceID: "w1", TaskID: "t1"})
	f.hub.HandleEvent(context.Background(), cA, event.Inbound{Type: event.TypeTaskUpdate, Data: data})

	if got := senderA.ofType(event.TypeError); len(got) != 1 {
		t.Fatalf("expected rejection error, got %d", len(got))
	}
	if got := senderB.ofType(event.TypeTaskUpdated); len(got) != 0 {
		t.Fatalf("rejected update must not be broadcast: %v", got)
	}
}

func TestCursorMoveScoping(t *testing.T) {
	f := newFixture()

	cA, _ := f.connect(t, "token-alice")
	cB, senderB := f.connect(t, "token-bob")

	f.join(t, cA, "w1")
	f.join(t, cB, "w1")

	data, _ := json.Marshal(event.CursorMove{WorkspaceID: "w1", Position: event.Position{X: 10, Y: 20}})
	f.hub.HandleEvent(context.Background(), cA, event.Inbound{Type: event.TypeCursorMove, Data: data})

	got := senderB.ofType(event.TypeCursorMoved)
	if len(got) != 1 {
		t.Fatalf("expected 1 cursor-moved, got %d", len(got))
	}
	moved := got[0].Data.(event.CursorMoved)
	if moved.UserID != alice.ID || moved.Position.X != 10 {
		t.Fatalf("unexpected payload: %+v", moved)
	}
}

func TestDisconnectSecondTabKeepsPresence(t *testing.T) {
	f := newFixture()

	c1, _ := f.connect(t, "token-alice")
	c2, _ := f.connect(t, "token-alice")
	cB, senderB := f.connect(t, "token-bob")

	f.join(t, cB, "w1")
	f.join(t, c1, "w1")

	before := len(senderB.ofType(event.TypePresenceUpdate))

	// Socket 1 was the only one joined to w1; socket 2 keeps the session
	// alive but has no join record there.
	f.hub.Disconnect(c1)

	updates := senderB.ofType(event.TypePresenceUpdate)
	if len(updates) != before+1 {
		t.Fatalf("expected exactly one departure update, got %d new", len(updates)-before)
	}
	users := presenceUsers(t, updates[len(updates)-1])
	if len(users) != 1 || users[0].ID != bob.ID {
		t.Fatalf("w1 should only contain bob: %v", users)
	}

	// Session survives via socket 2.
	if conns := f.registry.ConnectionsOf(alice.ID); len(conns) != 1 || conns[0] != c2.ID {
		t.Fatalf("alice should still be registered via c2: %v", conns)
	}
}

func TestDisconnectBroadcastsPerAbsentWorkspaceOnly(t *testing.T) {
	f := newFixture()

	c1, _ := f.connect(t, "token-alice")
	c2, _ := f.connect(t, "token-alice")
	cB, senderB := f.connect(t, "token-bob")

	f.join(t, cB, "w1")
	f.join(t, cB, "w2")
	f.join(t, c1, "w1")
	f.join(t, c1, "w2")
	f.join(t, c2, "w2") // second connection keeps alice present in w2

	before := len(senderB.ofType(event.TypePresenceUpdate))

	f.hub.Disconnect(c1)

	updates := senderB.ofType(event.TypePresenceUpdate)[before:]
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update (w1 only), got %d", len(updates))
	}
	update := updates[0].Data.(event.PresenceUpdate)
	if update.WorkspaceID != "w1" {
		t.Fatalf("expected w1 departure, got %s", update.WorkspaceID)
	}

	if users := f.tracker.PresentUsers("w2"); len(users) != 2 {
		t.Fatalf("alice should remain present in w2: %v", users)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture()

	cA, senderA := f.connect(t, "token-alice")
	f.join(t, cA, "w1")

	f.hub.Disconnect(cA)
	f.hub.Disconnect(cA)

	if cA.State() != realtime.StateClosed {
		t.Fatalf("expected closed state, got %v", cA.State())
	}
	if !senderA.isClosed() {
		t.Fatal("sender should be closed")
	}
	if users := f.registry.ActiveUsers(); len(users) != 0 {
		t.Fatalf("registry should be empty: %v", users)
	}
}

func TestEventsRejectedAfterClose(t *testing.T) {
	f := newFixture()

	cA, _ := f.connect(t, "token-alice")
	f.hub.Disconnect(cA)

	data, _ := json.Marshal(event.JoinWorkspace{WorkspaceID: "w1"})
	f.hub.HandleEvent(context.Background(), cA, event.Inbound{Type: event.TypeJoinWorkspace, Data: data})

	if users := f.tracker.PresentUsers("w1"); len(users) != 0 {
		t.Fatalf("closed connection must not join: %v", users)
	}
}

func TestSlowConsumerIsForceClosed(t *testing.T) {
	f := newFixture()

	cA, senderA := f.connect(t, "token-alice")
	cB, _ := f.connect(t, "token-bob")

	f.join(t, cA, "w1")
	senderA.mu.Lock()
	senderA.full = true
	senderA.mu.Unlock()

	// Bob's join triggers a broadcast alice can no longer accept.
	f.join(t, cB, "w1")

	waitFor(t, func() bool { return cA.State() == realtime.StateClosed })
	waitFor(t, func() bool {
		return len(f.registry.ConnectionsOf(alice.ID)) == 0
	})
}

// stallingGate blocks AuthorizeJoin until released, standing in for a slow
// store lookup.
type stallingGate struct {
	fakeGate
	entered chan struct{}
	release chan struct{}
}

func (g *stallingGate) AuthorizeJoin(ctx context.Context, userID, workspaceID string, minRole identity.Role) error {
	close(g.entered)
	<-g.release
	return g.fakeGate.AuthorizeJoin(ctx, userID, workspaceID, minRole)
}

func TestJoinDuringDisconnectLeavesNoPresence(t *testing.T) {
	gate := &stallingGate{
		fakeGate: fakeGate{
			tokens: map[string]identity.User{"token-alice": alice},
			roles:  map[string]map[string]identity.Role{"w1": {alice.ID: identity.RoleEditor}},
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	registry := session.NewRegistry()
	tracker := presence.NewTracker()
	hub := realtime.NewHub(registry, tracker, gate, zerolog.Nop())

	sender := &fakeSender{}
	cA, err := hub.Connect(context.Background(), "token-alice", sender)
	if err != nil {
		t.Fatalf("Connect err: %v", err)
	}

	data, _ := json.Marshal(event.JoinWorkspace{WorkspaceID: "w1"})
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.HandleEvent(context.Background(), cA, event.Inbound{Type: event.TypeJoinWorkspace, Data: data})
	}()

	// Tear the connection down while the join is parked in the gate, then
	// let the join land.
	<-gate.entered
	hub.Disconnect(cA)
	close(gate.release)
	<-done

	if users := tracker.PresentUsers("w1"); len(users) != 0 {
		t.Fatalf("presence should be empty after disconnect: %v", users)
	}
	if tracker.HasJoined("w1", cA.ID) {
		t.Fatal("closed connection must not hold a join record")
	}
	if users := registry.ActiveUsers(); len(users) != 0 {
		t.Fatalf("registry should be empty: %v", users)
	}
}
