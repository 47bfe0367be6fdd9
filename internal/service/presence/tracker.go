// Package presence tracks which users are joined to which workspaces.
//
// Presence is user-level: a user is present in a workspace while at least
// one of their connections holds a join record for it, so a second tab
// neither double-counts nor re-broadcasts.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/planextra/backend/internal/model/identity"
)

type presentUser struct {
	user     identity.User
	conns    map[string]struct{}
	joinedAt time.Time
}

type wsEntry struct {
	users map[string]*presentUser
}

// Departure describes one workspace affected by LeaveAll.
type Departure struct {
	WorkspaceID  string
	BecameAbsent bool
}

// Tracker owns the workspace presence maps. It holds no lock across I/O and
// never reaches into the session registry; callers compose the two.
type Tracker struct {
	mu         sync.RWMutex
	workspaces map[string]*wsEntry
	byConn     map[string]map[string]struct{} // connection id -> joined workspace ids
	nowFunc    func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		workspaces: make(map[string]*wsEntry),
		byConn:     make(map[string]map[string]struct{}),
		nowFunc:    time.Now,
	}
}

// Join records that a connection joined a workspace. alreadyPresent reports
// whether the user was present beforehand; only a false return warrants a
// presence broadcast. Joining twice from the same connection is idempotent.
func (t *Tracker) Join(workspaceID string, user identity.User, connID string) (alreadyPresent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ws, ok := t.workspaces[workspaceID]
	if !ok {
		ws = &wsEntry{users: make(map[string]*presentUser)}
		t.workspaces[workspaceID] = ws
	}

	pu, present := ws.users[user.ID]
	if !present {
		pu = &presentUser{user: user, conns: make(map[string]struct{}), joinedAt: t.nowFunc()}
		ws.users[user.ID] = pu
	}
	pu.conns[connID] = struct{}{}

	joined, ok := t.byConn[connID]
	if !ok {
		joined = make(map[string]struct{})
		t.byConn[connID] = joined
	}
	joined[workspaceID] = struct{}{}

	return present
}

// Leave removes one connection's join record. becameAbsent reports whether
// that was the user's last connection in the workspace. Leaving a workspace
// the connection never joined is a no-op.
func (t *Tracker) Leave(workspaceID, userID, connID string) (becameAbsent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(workspaceID, userID, connID)
}

func (t *Tracker) leaveLocked(workspaceID, userID, connID string) bool {
	ws, ok := t.workspaces[workspaceID]
	if !ok {
		return false
	}
	pu, ok := ws.users[userID]
	if !ok {
		return false
	}
	if _, ok := pu.conns[connID]; !ok {
		return false
	}

	delete(pu.conns, connID)
	if joined, ok := t.byConn[connID]; ok {
		delete(joined, workspaceID)
		if len(joined) == 0 {
			delete(t.byConn, connID)
		}
	}

	if len(pu.conns) > 0 {
		return false
	}
	delete(ws.users, userID)
	if len(ws.users) == 0 {
		delete(t.workspaces, workspaceID)
	}
	return true
}

// LeaveAll removes every join record of a disconnecting connection and
// reports, per affected workspace, whether the user became absent there.
func (t *Tracker) LeaveAll(userID, connID string) []Departure {
	t.mu.Lock()
	defer t.mu.Unlock()

	joined, ok := t.byConn[connID]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(joined))
	for workspaceID := range joined {
		ids = append(ids, workspaceID)
	}
	sort.Strings(ids)

	out := make([]Departure, 0, len(ids))
	for _, workspaceID := range ids {
		absent := t.leaveLocked(workspaceID, userID, connID)
		out = append(out, Departure{WorkspaceID: workspaceID, BecameAbsent: absent})
	}
	return out
}

// HasJoined reports whether a connection currently holds a join record for
// the workspace. Used to gate task-update and cursor-move relays.
func (t *Tracker) HasJoined(workspaceID, connID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	joined, ok := t.byConn[connID]
	if !ok {
		return false
	}
	_, ok = joined[workspaceID]
	return ok
}

// PresentUsers snapshots a workspace's presence ordered by join time.
func (t *Tracker) PresentUsers(workspaceID string) []identity.User {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ws, ok := t.workspaces[workspaceID]
	if !ok {
		return []identity.User{}
	}

	users := make([]*presentUser, 0, len(ws.users))
	for _, pu := range ws.users {
		users = append(users, pu)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].joinedAt.Equal(users[j].joinedAt) {
			return users[i].user.ID < users[j].user.ID
		}
		return users[i].joinedAt.Before(users[j].joinedAt)
	})

	out := make([]identity.User, 0, len(users))
	for _, pu := range users {
		out = append(out, pu.user)
	}
	return out
}
