package workspace

import (
	"time"

	"github.com/planextra/backend/internal/model/identity"
)

// Workspace is a shared container of tasks with membership and roles.
// The invite code lets anyone holding it join as a viewer.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	InviteCode  string    `json:"inviteCode,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Member binds a user to a workspace with a role.
type Member struct {
	UserID   string        `json:"userId"`
	Name     string        `json:"name"`
	Role     identity.Role `json:"role"`
	JoinedAt time.Time     `json:"joinedAt"`
}
