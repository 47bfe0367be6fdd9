// Package realtime routes live events between connections. It composes the
// session registry, the presence tracker and the authorization gate into
// the connect/join/broadcast/disconnect lifecycle.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/planextra/backend/internal/model/event"
	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/service/authz"
	"github.com/planextra/backend/internal/service/presence"
	"github.com/planextra/backend/internal/service/session"
)

var (
	ErrInvalidState = errors.New("event not accepted in current connection state")
	ErrNotJoined    = errors.New("connection has not joined this workspace")
)

// Gate is the authorization checkpoint the hub consults. Checks may block
// on store I/O; the hub never holds registry or tracker locks across them.
type Gate interface {
	AuthenticateConnection(ctx context.Context, rawToken string) (identity.User, error)
	AuthorizeJoin(ctx context.Context, userID, workspaceID string, minRole identity.Role) error
}

// Hub owns the set of live clients and all event fan-out.
type Hub struct {
	registry *session.Registry
	tracker  *presence.Tracker
	gate     Gate
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a hub over its three collaborators.
func NewHub(registry *session.Registry, tracker *presence.Tracker, gate Gate, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		tracker:  tracker,
		gate:     gate,
		log:      log.With().Str("component", "realtime").Logger(),
		clients:  make(map[string]*Client),
	}
}

// Connect authenticates a credential and admits the connection. On success
// the client is registered, moved to Active and sent the global active-user
// snapshot. On failure no state is mutated and the caller must close the
// transport.
func (h *Hub) Connect(ctx context.Context, rawToken string, sender Sender) (*Client, error) {
	// Authenticate before touching any shared state; the gate may block on
	// store I/O.
	user, err := h.gate.AuthenticateConnection(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	c := newClient(uuid.NewString(), user, sender)
	c.transition(StateConnecting, StateAuthenticated)

	if err := h.registry.Register(c.ID, user); err != nil {
		c.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("register connection: %w", err)
	}

	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	c.transition(StateAuthenticated, StateActive)

	h.log.Info().Str("conn", c.ID).Str("user", user.ID).Msg("connection admitted")

	h.emit(ToConnection(c.ID), event.New(event.TypeActiveUsers, event.ActiveUsers{
		Users: h.registry.ActiveUsers(),
	}))
	return c, nil
}

// Disconnect tears a connection down: presence departures are broadcast
// first, then the connection is deregistered. Safe to call more than once;
// only the first call has any effect.
func (h *Hub) Disconnect(c *Client) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))

		h.mu.Lock()
		delete(h.clients, c.ID)
		h.mu.Unlock()

		for _, dep := range h.tracker.LeaveAll(c.User.ID, c.ID) {
			if !dep.BecameAbsent {
				continue
			}
			h.broadcastPresence(dep.WorkspaceID)
		}

		if _, wasLast, err := h.registry.Deregister(c.ID); err != nil {
			if !errors.Is(err, session.ErrConnectionNotFound) {
				h.log.Error().Err(err).Str("conn", c.ID).Msg("deregister failed")
			}
		} else {
			h.log.Info().Str("conn", c.ID).Str("user", c.User.ID).Bool("lastConnection", wasLast).Msg("connection closed")
		}

		c.sender.Close()
	})
}

// HandleEvent dispatches one inbound event from a client. Events outside
// the Active state are rejected but never fatal to the connection.
func (h *Hub) HandleEvent(ctx context.Context, c *Client, in event.Inbound) {
	if c.State() != StateActive {
		h.log.Debug().Str("conn", c.ID).Stringer("state", c.State()).Str("event", in.Type).
			Msg(ErrInvalidState.Error())
		h.sendError(c, "connection not ready for events")
		return
	}

	switch in.Type {
	case event.TypeJoinWorkspace:
		var payload event.JoinWorkspace
		if !h.decode(c, in.Data, &payload) {
			return
		}
		h.handleJoin(ctx, c, payload.WorkspaceID)
	case event.TypeLeaveWorkspace:
		var payload event.LeaveWorkspace
		if !h.decode(c, in.Data, &payload) {
			return
		}
		h.handleLeave(c, payload.WorkspaceID)
	case event.TypeTaskUpdate:
		var payload event.TaskUpdate
		if !h.decode(c, in.Data, &payload) {
			return
		}
		h.handleTaskUpdate(c, payload)
	case event.TypeCursorMove:
		var payload event.CursorMove
		if !h.decode(c, in.Data, &payload) {
			return
		}
		h.handleCursorMove(c, payload)
	default:
		h.sendError(c, "unsupported event type: "+in.Type)
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, workspaceID string) {
	if workspaceID == "" {
		h.sendError(c, "workspaceId is required")
		return
	}

	// Authorize with no locks held, then mutate tracker state.
	if err := h.gate.AuthorizeJoin(ctx, c.User.ID, workspaceID, identity.RoleViewer); err != nil {
		if errors.Is(err, authz.ErrDenied) {
			h.sendError(c, "access denied")
			return
		}
		h.log.Error().Err(err).Str("conn", c.ID).Str("workspace", workspaceID).Msg("authorize join failed")
		h.sendError(c, "failed to join workspace")
		return
	}

	alreadyPresent := h.tracker.Join(workspaceID, c.User, c.ID)

	// The gate check above can suspend on store I/O. If the connection was
	// torn down while we waited, Disconnect's LeaveAll already ran and will
	// never see this record, so undo the join here.
	if c.State() == StateClosed {
		if h.tracker.Leave(workspaceID, c.User.ID, c.ID) {
			h.broadcastPresence(workspaceID)
		}
		return
	}

	if alreadyPresent {
		// No presence change: sync just this connection.
		h.emit(ToConnection(c.ID), event.New(event.TypePresenceUpdate, event.PresenceUpdate{
			WorkspaceID: workspaceID,
			Users:       h.tracker.PresentUsers(workspaceID),
		}))
		return
	}
	h.broadcastPresence(workspaceID)
}

func (h *Hub) handleLeave(c *Client, workspaceID string) {
	if h.tracker.Leave(workspaceID, c.User.ID, c.ID) {
		h.broadcastPresence(workspaceID)
	}
}

func (h *Hub) handleTaskUpdate(c *Client, payload event.TaskUpdate) {
	// Checked against the local join record, not re-authorized against the
	// store; see the join handler for the role check.
	if !h.tracker.HasJoined(payload.WorkspaceID, c.ID) {
		h.sendError(c, ErrNotJoined.Error())
		return
	}

	h.emit(ToWorkspaceExcept(payload.WorkspaceID, c.ID), event.New(event.TypeTaskUpdated, event.TaskUpdated{
		TaskID:    payload.TaskID,
		Changes:   payload.Changes,
		UpdatedBy: c.User,
	}))
}

func (h *Hub) handleCursorMove(c *Client, payload event.CursorMove) {
	if !h.tracker.HasJoined(payload.WorkspaceID, c.ID) {
		h.sendError(c, ErrNotJoined.Error())
		return
	}

	h.emit(ToWorkspaceExcept(payload.WorkspaceID, c.ID), event.New(event.TypeCursorMoved, event.CursorMoved{
		UserID:   c.User.ID,
		Position: payload.Position,
	}))
}

func (h *Hub) broadcastPresence(workspaceID string) {
	h.emit(ToWorkspace(workspaceID), event.New(event.TypePresenceUpdate, event.PresenceUpdate{
		WorkspaceID: workspaceID,
		Users:       h.tracker.PresentUsers(workspaceID),
	}))
}

// emit fans an event out to every connection in the audience. A connection
// that cannot accept the event is force-closed rather than allowed to stall
// the router.
func (h *Hub) emit(aud Audience, env event.Envelope) {
	targets := h.resolve(aud)
	if len(targets) == 0 {
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(targets))
	for _, connID := range targets {
		if c, ok := h.clients[connID]; ok {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.send(env) {
			h.log.Warn().Str("conn", c.ID).Str("event", env.Type).Msg("send failed, closing connection")
			go h.Disconnect(c)
		}
	}
}

func (h *Hub) sendError(c *Client, message string) {
	h.emit(ToConnection(c.ID), event.New(event.TypeError, event.Error{Message: message}))
}

func (h *Hub) decode(c *Client, raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		h.sendError(c, "invalid event payload")
		return false
	}
	return true
}
