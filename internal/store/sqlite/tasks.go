package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/planextra/backend/internal/model/task"
	"github.com/planextra/backend/internal/store"
)

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t task.Task) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, workspace_id, text, category, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WorkspaceID, t.Text, t.Category, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask loads a task by identifier.
func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, text, category, created_by, created_at, updated_at
		 FROM tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.WorkspaceID, &t.Text, &t.Category, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, store.ErrNotFound
	}
	if err != nil {
		return task.Task{}, fmt.Errorf("scan task: %w", err)
	}
	return t, nil
}

// ListTasks returns a workspace's tasks ordered by creation time.
func (s *Store) ListTasks(ctx context.Context, workspaceID string) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, text, category, created_by, created_at, updated_at
		 FROM tasks WHERE workspace_id = ? ORDER BY created_at`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		var t task.Task
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Text, &t.Category, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask rewrites a task's mutable fields.
func (s *Store) UpdateTask(ctx context.Context, t task.Task) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET text = ?, category = ?, updated_at = ? WHERE id = ?`,
		t.Text, t.Category, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTask removes a task; its comments cascade.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
