// Package session tracks which connections belong to which user.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/planextra/backend/internal/model/identity"
)

var (
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrConnectionNotFound  = errors.New("connection not registered")
)

type entry struct {
	user      identity.User
	conns     map[string]struct{}
	firstSeen time.Time
}

// Registry is the authoritative map between users and their live
// connections. All access goes through its methods; the lock is never held
// across I/O.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[string]*entry
	byConn  map[string]string // connection id -> user id
	nowFunc func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:  make(map[string]*entry),
		byConn:  make(map[string]string),
		nowFunc: time.Now,
	}
}

// Register inserts a connection under its owning user. The first connection
// for a user creates the user's session entry.
func (r *Registry) Register(connID string, user identity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connID]; ok {
		return ErrDuplicateConnection
	}

	e, ok := r.byUser[user.ID]
	if !ok {
		e = &entry{user: user, conns: make(map[string]struct{}), firstSeen: r.nowFunc()}
		r.byUser[user.ID] = e
	}
	e.conns[connID] = struct{}{}
	r.byConn[connID] = user.ID
	return nil
}

// Deregister removes a connection. wasLast reports whether this was the
// user's final connection, in which case the session entry is dropped too.
// Deregistering an unknown connection returns ErrConnectionNotFound, which
// callers treat as a no-op.
func (r *Registry) Deregister(connID string) (user identity.User, wasLast bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return identity.User{}, false, ErrConnectionNotFound
	}
	delete(r.byConn, connID)

	e := r.byUser[userID]
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		delete(r.byUser, userID)
		return e.user, true, nil
	}
	return e.user, false, nil
}

// ConnectionsOf returns the user's live connection ids. Unknown users yield
// an empty slice, never an error.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.conns))
	for id := range e.conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OwnerOf resolves a connection back to its user.
func (r *Registry) OwnerOf(connID string) (identity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return identity.User{}, ErrConnectionNotFound
	}
	return r.byUser[userID].user, nil
}

// ActiveUsers snapshots every user with at least one open connection,
// ordered by when they first connected.
func (r *Registry) ActiveUsers() []identity.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*entry, 0, len(r.byUser))
	for _, e := range r.byUser {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].firstSeen.Equal(entries[j].firstSeen) {
			return entries[i].user.ID < entries[j].user.ID
		}
		return entries[i].firstSeen.Before(entries[j].firstSeen)
	})

	out := make([]identity.User, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.user)
	}
	return out
}
