// Package store declares the persistence boundary consumed by the services.
// The realtime core only ever reads through these interfaces; it never
// mutates persisted state.
package store

import (
	"context"
	"errors"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/model/task"
	"github.com/planextra/backend/internal/model/workspace"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrNotAMember = errors.New("user is not a workspace member")
	ErrDuplicate  = errors.New("record already exists")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, account identity.Account) error
	GetUserByID(ctx context.Context, id string) (identity.Account, error)
	GetUserByEmail(ctx context.Context, email string) (identity.Account, error)
}

// WorkspaceStore persists workspaces and their membership lists.
type WorkspaceStore interface {
	CreateWorkspace(ctx context.Context, ws workspace.Workspace) error
	GetWorkspace(ctx context.Context, id string) (workspace.Workspace, error)
	ListWorkspacesFor(ctx context.Context, userID string) ([]workspace.Workspace, error)
	GetWorkspaceByInviteCode(ctx context.Context, code string) (workspace.Workspace, error)
	UpdateInviteCode(ctx context.Context, workspaceID, code string) error
	DeleteWorkspace(ctx context.Context, id string) error
	AddMember(ctx context.Context, workspaceID string, member workspace.Member) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error
	ListMembers(ctx context.Context, workspaceID string) ([]workspace.Member, error)
	// GetRole resolves a user's effective role in a workspace. The owner is
	// reported as admin. Returns ErrNotFound for an unknown workspace and
	// ErrNotAMember for a known workspace the user does not belong to.
	GetRole(ctx context.Context, workspaceID, userID string) (identity.Role, error)
}

// TaskStore persists tasks scoped to workspaces.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) error
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, workspaceID string) ([]task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) error
	DeleteTask(ctx context.Context, id string) error
}

// CommentStore persists per-task comments.
type CommentStore interface {
	CreateComment(ctx context.Context, c task.Comment) error
	ListComments(ctx context.Context, taskID string) ([]task.Comment, error)
}
