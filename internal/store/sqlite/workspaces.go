package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/model/workspace"
	"github.com/planextra/backend/internal/store"
)

// CreateWorkspace inserts a workspace and enrolls the owner as admin.
func (s *Store) CreateWorkspace(ctx context.Context, ws workspace.Workspace) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspaces (id, name, description, owner_id, invite_code, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.Description, ws.OwnerID, ws.InviteCode, ws.CreatedAt); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.OwnerID, identity.RoleAdmin, ws.CreatedAt); err != nil {
		return fmt.Errorf("insert owner membership: %w", err)
	}

	return tx.Commit()
}

// GetWorkspace loads a workspace by identifier.
func (s *Store) GetWorkspace(ctx context.Context, id string) (workspace.Workspace, error) {
	return s.getWorkspaceWhere(ctx, "id = ?", id)
}

// GetWorkspaceByInviteCode loads a workspace by its invite code.
func (s *Store) GetWorkspaceByInviteCode(ctx context.Context, code string) (workspace.Workspace, error) {
	return s.getWorkspaceWhere(ctx, "invite_code = ?", code)
}

func (s *Store) getWorkspaceWhere(ctx context.Context, cond string, arg any) (workspace.Workspace, error) {
	var ws workspace.Workspace
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, invite_code, created_at FROM workspaces WHERE `+cond, arg).
		Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.InviteCode, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return workspace.Workspace{}, store.ErrNotFound
	}
	if err != nil {
		return workspace.Workspace{}, fmt.Errorf("scan workspace: %w", err)
	}
	return ws, nil
}

// UpdateInviteCode replaces a workspace's invite code, revoking the old one.
func (s *Store) UpdateInviteCode(ctx context.Context, workspaceID, code string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workspaces SET invite_code = ? WHERE id = ?`, code, workspaceID)
	if err != nil {
		return fmt.Errorf("update invite code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListWorkspacesFor returns every workspace the user is a member of.
func (s *Store) ListWorkspacesFor(ctx context.Context, userID string) ([]workspace.Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT w.id, w.name, w.description, w.owner_id, w.invite_code, w.created_at
		 FROM workspaces w
		 JOIN workspace_members m ON m.workspace_id = w.id
		 WHERE m.user_id = ?
		 ORDER BY w.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	var out []workspace.Workspace
	for rows.Next() {
		var ws workspace.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &ws.InviteCode, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// DeleteWorkspace removes a workspace; members and tasks cascade.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddMember enrolls (or re-roles) a user in a workspace.
func (s *Store) AddMember(ctx context.Context, workspaceID string, member workspace.Member) error {
	if _, err := s.GetWorkspace(ctx, workspaceID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(workspace_id, user_id) DO UPDATE SET role = excluded.role`,
		workspaceID, member.UserID, member.Role, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// RemoveMember drops a user's membership.
func (s *Store) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotAMember
	}
	return nil
}

// ListMembers returns the membership list ordered by join time.
func (s *Store) ListMembers(ctx context.Context, workspaceID string) ([]workspace.Member, error) {
	if _, err := s.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.user_id, u.name, m.role, m.joined_at
		 FROM workspace_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.workspace_id = ?
		 ORDER BY m.joined_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []workspace.Member
	for rows.Next() {
		var m workspace.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetRole resolves a user's effective role. The owner membership row is
// written as admin on create, so a single lookup suffices; the workspace
// existence check distinguishes ErrNotFound from ErrNotAMember.
func (s *Store) GetRole(ctx context.Context, workspaceID, userID string) (identity.Role, error) {
	var role identity.Role
	err := s.db.QueryRowContext(ctx,
		`SELECT role FROM workspace_members WHERE workspace_id = ? AND user_id = ?`,
		workspaceID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		if _, wsErr := s.GetWorkspace(ctx, workspaceID); wsErr != nil {
			return "", wsErr
		}
		return "", store.ErrNotAMember
	}
	if err != nil {
		return "", fmt.Errorf("scan role: %w", err)
	}
	return role, nil
}
