// Package task manages task and comment records with workspace role checks.
package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planextra/backend/internal/model/identity"
	"github.com/planextra/backend/internal/model/task"
	"github.com/planextra/backend/internal/store"
)

var (
	ErrTextRequired    = errors.New("task text is required")
	ErrTextTooLong     = errors.New("task text exceeds the maximum length")
	ErrInvalidCategory = errors.New("invalid task category")
	ErrForbidden       = errors.New("insufficient role for this action")
)

// Service applies validation and role checks on top of the task stores.
type Service struct {
	tasks      store.TaskStore
	comments   store.CommentStore
	workspaces store.WorkspaceStore
}

// NewService wires the task service to its stores.
func NewService(tasks store.TaskStore, comments store.CommentStore, workspaces store.WorkspaceStore) *Service {
	return &Service{tasks: tasks, comments: comments, workspaces: workspaces}
}

// Create adds a task to a workspace. Requires editor role.
func (s *Service) Create(ctx context.Context, callerID, workspaceID, text string, category task.Category) (task.Task, error) {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleEditor); err != nil {
		return task.Task{}, err
	}
	if err := validateText(text); err != nil {
		return task.Task{}, err
	}
	if !category.Valid() {
		return task.Task{}, ErrInvalidCategory
	}

	now := time.Now().UTC()
	t := task.Task{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Text:        strings.TrimSpace(text),
		Category:    category,
		CreatedBy:   callerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, t); err != nil {
		return task.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// List returns a workspace's tasks. Requires viewer role.
func (s *Service) List(ctx context.Context, callerID, workspaceID string) ([]task.Task, error) {
	if err := s.requireRole(ctx, callerID, workspaceID, identity.RoleViewer); err != nil {
		return nil, err
	}
	return s.tasks.ListTasks(ctx, workspaceID)
}

// Update rewrites a task's text and category. Requires editor role in the
// task's workspace.
func (s *Service) Update(ctx context.Context, callerID, taskID, text string, category task.Category) (task.Task, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.requireRole(ctx, callerID, t.WorkspaceID, identity.RoleEditor); err != nil {
		return task.Task{}, err
	}
	if err := validateText(text); err != nil {
		return task.Task{}, err
	}
	if !category.Valid() {
		return task.Task{}, ErrInvalidCategory
	}

	t.Text = strings.TrimSpace(text)
	t.Category = category
	t.UpdatedAt = time.Now().UTC()
	if err := s.tasks.UpdateTask(ctx, t); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Delete removes a task. Requires editor role.
func (s *Service) Delete(ctx context.Context, callerID, taskID string) error {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := s.requireRole(ctx, callerID, t.WorkspaceID, identity.RoleEditor); err != nil {
		return err
	}
	return s.tasks.DeleteTask(ctx, taskID)
}

// Comment appends a remark to a task. Any member may comment.
func (s *Service) Comment(ctx context.Context, callerID, taskID, text string) (task.Comment, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return task.Comment{}, err
	}
	if err := s.requireRole(ctx, callerID, t.WorkspaceID, identity.RoleViewer); err != nil {
		return task.Comment{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return task.Comment{}, ErrTextRequired
	}

	c := task.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		AuthorID:  callerID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return task.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

// Comments lists a task's comments. Requires viewer role.
func (s *Service) Comments(ctx context.Context, callerID, taskID string) ([]task.Comment, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, callerID, t.WorkspaceID, identity.RoleViewer); err != nil {
		return nil, err
	}
	return s.comments.ListComments(ctx, taskID)
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

func validateText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrTextRequired
	}
	if len(text) > task.MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}
