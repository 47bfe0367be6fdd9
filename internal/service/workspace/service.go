// Package workspace manages workspace records and membership.
package workspace

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/model/workspace"
	"github.com/planextra/backend/internal/store"
)

var (
	ErrNameRequired  = errors.New("workspace name is required")
	ErrInvalidRole   = errors.New("invalid role")
	ErrForbidden     = errors.New("insufficient role for this action")
	ErrOwnerRemoval  = errors.New("the owner cannot be removed")
	ErrInvalidInvite = errors.New("invalid invite code")
	ErrAlreadyMember = errors.New("user is already a member")
)

// Service applies role checks on top of the workspace store.
type Service struct {
	workspaces store.WorkspaceStore
}

// NewService wires the workspace service to its store.
func NewService(workspaces store.WorkspaceStore) *Service {
	return &Service{workspaces: workspaces}
}

// Create provisions a workspace owned by the caller. The store enrolls the
// owner as admin.
func (s *Service) Create(ctx context.Context, ownerID, name, description string) (workspace.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return workspace.Workspace{}, ErrNameRequired
	}

	code, err := newInviteCode()
	if err != nil {
		return workspace.Workspace{}, fmt.Errorf("generate invite code: %w", err)
	}

	ws := workspace.Workspace{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     ownerID,
		InviteCode:  code,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.workspaces.CreateWorkspace(ctx, ws); err != nil {
		return workspace.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

// JoinByCode enrolls the caller as a viewer in the workspace behind the
// invite code. Existing members keep their role untouched.
func (s *Service) JoinByCode(ctx context.Context, callerID, code string) (workspace.Workspace, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return workspace.Workspace{}, ErrInvalidInvite
	}

	ws, err := s.workspaces.GetWorkspaceByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return workspace.Workspace{}, ErrInvalidInvite
		}
		return workspace.Workspace{}, fmt.Errorf("lookup invite code: %w", err)
	}

	if _, err := s.workspaces.GetRole(ctx, ws.ID, callerID); err == nil {
		return workspace.Workspace{}, ErrAlreadyMember
	} else if !errors.Is(err, store.ErrNotAMember) {
		return workspace.Workspace{}, err
	}

	if err := s.workspaces.AddMember(ctx, ws.ID, workspace.Member{
		UserID:   callerID,
		Role:     identity.RoleViewer,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		return workspace.Workspace{}, fmt.Errorf("add member: %w", err)
	}
	return ws, nil
}

// RegenerateInviteCode replaces the workspace's invite code, invalidating the
// old one. Admin only.
func (s *Service) RegenerateInviteCode(ctx context.Context, callerID, workspaceID string) (string, error) {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleAdmin); err != nil {
		return "", err
	}
	code, err := newInviteCode()
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	if err := s.workspaces.UpdateInviteCode(ctx, workspaceID, code); err != nil {
		return "", err
	}
	return code, nil
}

// Get returns a workspace the caller is a member of.
func (s *Service) Get(ctx context.Context, callerID, workspaceID string) (workspace.Workspace, error) {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleViewer); err != nil {
		return workspace.Workspace{}, err
	}
	return s.workspaces.GetWorkspace(ctx, workspaceID)
}

// ListFor returns every workspace the user belongs to.
func (s *Service) ListFor(ctx context.Context, userID string) ([]workspace.Workspace, error) {
	return s.workspaces.ListWorkspacesFor(ctx, userID)
}

// Delete removes a workspace. Admin only.
func (s *Service) Delete(ctx context.Context, callerID, workspaceID string) error {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleAdmin); err != nil {
		return err
	}
	return s.workspaces.DeleteWorkspace(ctx, workspaceID)
}

// Members lists a workspace's membership. Any member may read it.
func (s *Service) Members(ctx context.Context, callerID, workspaceID string) ([]workspace.Member, error) {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleViewer); err != nil {
		return nil, err
	}
	return s.workspaces.ListMembers(ctx, workspaceID)
}

// AddMember enrolls a user with a role. Admin only.
func (s *Service) AddMember(ctx context.Context, callerID, workspaceID, userID string, role identity.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleAdmin); err != nil {
		return err
	}
	return s.workspaces.AddMember(ctx, workspaceID, workspace.Member{
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	})
}

// RemoveMember drops a user's membership. Admin only; the owner stays.
func (s *Service) RemoveMember(ctx context.Context, callerID, workspaceID, userID string) error {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleAdmin); err != nil {
		return err
	}
	ws, err := s.workspaces.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.OwnerID == userID {
		return ErrOwnerRemoval
	}
	return s.workspaces.RemoveMember(ctx, workspaceID, userID)
}

// inviteCodeAlphabet omits lookalike characters so codes survive being read
// aloud or retyped.
const inviteCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const inviteCodeLength = 8

func newInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(buf), nil
}

func (s *Service) requireRole(ctx context.Context, userID, workspaceID string, min identity.Role) error {
	role, err := s.workspaces.GetRole(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotAMember) {
			return ErrForbidden
		}
		return err
	}
	if !role.AtLeast(min) {
		return ErrForbidden
	}
	return nil
}
