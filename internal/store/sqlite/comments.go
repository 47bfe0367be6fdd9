package sqlite

import (
	"context"
	"fmt"

	"github.com/planextra/backend/internal/model/task"
)

// CreateComment appends a comment to a task.
func (s *Store) CreateComment(ctx context.Context, c task.Comment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, task_id, author_id, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.TaskID, c.AuthorID, c.Text, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListComments returns a task's comments oldest first.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]task.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, author_id, text, created_at FROM comments
		 WHERE task_id = ? ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var out []task.Comment
	for rows.Next() {
		var c task.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
