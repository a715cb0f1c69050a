package models

import "time"

// Group is a column on the board. Position is dense and unique within
// the owning user's groups (default group included).
type Group struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	Position  int       `json:"position"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupPosition is one entry of a bulk group reorder.
type GroupPosition struct {
	ID       int64 `json:"id" binding:"required"`
	Position int   `json:"position" binding:"required"`
}
