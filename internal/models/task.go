// internal/models/task.go
package models

import "time"

// TaskStatus defines the lifecycle state of a task. Only active tasks
// participate in position arithmetic.
type TaskStatus string

const (
	StatusActive   TaskStatus = "active"
	StatusArchived TaskStatus = "archived"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityNormal TaskPriority = "normal"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Task represents one card on the board. Position is a dense 1-based
// integer, unique among the active tasks of its group.
type Task struct {
	ID          int64        `json:"id"`
	CreatorID   int64        `json:"creator_id"`
	GroupID     int64        `json:"group_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    TaskPriority `json:"priority"`
	StartDate   *time.Time   `json:"start_date,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Tags        []string     `json:"tags"`
	Position    int          `json:"position"`
	Status      TaskStatus   `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Populated by the read model, not stored on the tasks row.
	AssigneeIDs []int64        `json:"assignee_ids,omitempty"`
	Relations   []TaskRelation `json:"relations,omitempty"`
}

// TaskRelation is a directed edge to another task. Relations are stored
// de-duplicated and are readable from both endpoints.
type TaskRelation struct {
	TaskID int64  `json:"task_id"`
	Type   string `json:"type"`
}

// TaskUpdate carries a partial update: nil means "field not provided".
// Unknown fields are rejected at the binding boundary, never merged.
type TaskUpdate struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *TaskPriority   `json:"priority"`
	StartDate   *string         `json:"start_date"`
	DueDate     *string         `json:"due_date"`
	Tags        *[]string       `json:"tags"`
	GroupID     *int64          `json:"group_id"`
	Position    *int            `json:"position"`
	Assignees   *[]int64        `json:"assignees"`
	Relations   *[]TaskRelation `json:"relationships"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u *TaskUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil &&
		u.StartDate == nil && u.DueDate == nil && u.Tags == nil &&
		u.GroupID == nil && u.Position == nil && u.Assignees == nil &&
		u.Relations == nil
}
