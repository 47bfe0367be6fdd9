package task

import "time"

// MaxTextLength caps the task description.
const MaxTextLength = 500

// Category is the kanban-style column a task sits in.
type Category string

const (
	CategoryMustDo      Category = "mustdo"
	CategoryExtraThings Category = "extrathings"
	CategoryStartedWork Category = "startedwork"
	CategoryAlmostDone  Category = "almostdone"
	CategoryFinished    Category = "finished"
)

var categories = map[Category]struct{}{
	CategoryMustDo:      {},
	CategoryExtraThings: {},
	CategoryStartedWork: {},
	CategoryAlmostDone:  {},
	CategoryFinished:    {},
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Task is a single to-do item inside a workspace.
type Task struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Text        string    `json:"text"`
	Category    Category  `json:"category"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Comment is a user remark attached to a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
