package models

import (
	"encoding/json"
	"time"
)

// Event actions recorded in the change log.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionMoved    = "moved"
	ActionArchived = "archived"
)

// ChangeEvent is the immutable audit record of one committed mutation
// and the payload broadcast to subscribers. Never updated or deleted.
type ChangeEvent struct {
	ID        string          `json:"id"`
	TaskID    int64           `json:"task_id"`
	ActorID   int64           `json:"actor_id"`
	Action    string          `json:"action"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// ChangeEntry is one typed line of a mutation diff. Only the fields
// relevant to the entry's type are set.
type ChangeEntry struct {
	Type      string    `json:"type"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Assignees []UserRef `json:"assignees,omitempty"`
	Tasks     []TaskRef `json:"tasks,omitempty"`
}

// UserRef names a user inside a diff entry.
type UserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TaskRef names a task inside a diff entry.
type TaskRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}
