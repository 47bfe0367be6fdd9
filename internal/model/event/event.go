package event

import (
	"encoding/json"
	"time"

	"github.com/planextra/backend/internal/model/identity"
)

// Inbound event types accepted from clients.
const (
	TypeJoinWorkspace  = "join-workspace"
	TypeLeaveWorkspace = "leave-workspace"
	TypeTaskUpdate     = "task-update"
	TypeCursorMove     = "cursor-move"
)

// Outbound event types pushed to clients.
const (
	TypeActiveUsers    = "activeUsers"
	TypePresenceUpdate = "presence-update"
	TypeTaskUpdated    = "task-updated"
	TypeCursorMoved    = "cursor-moved"
	TypeError          = "error"
)

// Inbound is the wire envelope for client-to-server messages.
type Inbound struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Envelope is the wire envelope for server-to-client messages.
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// New stamps an outbound envelope.
func New(eventType string, data any) Envelope {
	return Envelope{Type: eventType, Data: data, Timestamp: time.Now().Unix()}
}

// JoinWorkspace asks to start receiving a workspace's live events.
type JoinWorkspace struct {
	WorkspaceID string `json:"workspaceId"`
}

// LeaveWorkspace stops a workspace subscription.
type LeaveWorkspace struct {
	WorkspaceID string `json:"workspaceId"`
}

// TaskUpdate relays a task mutation to workspace peers.
type TaskUpdate struct {
	WorkspaceID string          `json:"workspaceId"`
	TaskID      string          `json:"taskId"`
	Changes     json.RawMessage `json:"changes"`
}

// Position is a 2D cursor location in client coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CursorMove relays a cursor position to workspace peers.
type CursorMove struct {
	WorkspaceID string   `json:"workspaceId"`
	Position    Position `json:"position"`
}

// ActiveUsers is the global who's-online snapshot sent after connect.
type ActiveUsers struct {
	Users []identity.User `json:"users"`
}

// PresenceUpdate is the per-workspace presence snapshot.
type PresenceUpdate struct {
	WorkspaceID string          `json:"workspaceId"`
	Users       []identity.User `json:"users"`
}

// TaskUpdated is the fan-out form of TaskUpdate, tagged with the sender.
type TaskUpdated struct {
	TaskID    string          `json:"taskId"`
	Changes   json.RawMessage `json:"changes"`
	UpdatedBy identity.User   `json:"updatedBy"`
}

// CursorMoved is the fan-out form of CursorMove.
type CursorMoved struct {
	UserID   string   `json:"userId"`
	Position Position `json:"position"`
}

// Error is sent to the originating connection only.
type Error struct {
	Message string `json:"message"`
}
