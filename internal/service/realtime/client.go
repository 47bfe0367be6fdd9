package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/planextra/backend/internal/model/event"
	"github.com/planextra/backend/internal/model/identity"
)

// State is a connection's position in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sender delivers encoded events to one connection. Send must not block;
// it reports false when the connection can no longer accept events.
type Sender interface {
	Send(env event.Envelope) bool
	Close()
}

// Client is the hub's handle on one live connection. Events are accepted
// only in the Active state; disconnect runs at most once.
type Client struct {
	ID   string
	User identity.User

	sender    Sender
	state     atomic.Int32
	closeOnce sync.Once
}

func newClient(id string, user identity.User, sender Sender) *Client {
	c := &Client{ID: id, User: user, sender: sender}
	c.state.Store(int32(StateConnecting))
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// transition moves from one state to the next, failing if a concurrent
// transition (typically to Closed) got there first.
func (c *Client) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// send forwards an event to the transport. A false return marks the
// connection as no longer deliverable.
func (c *Client) send(env event.Envelope) bool {
	if c.State() == StateClosed {
		return false
	}
	return c.sender.Send(env)
}
