package services

import (
	"time"

	"taskboard/internal/models"
	"taskboard/internal/timeutil"
)

// snapshot captures every mutable field of a task before or after an
// update. Diffs are computed by comparing two snapshots, never by
// trusting client-supplied deltas: a client may send a full new array
// and the diff must still report only the true delta.
type snapshot struct {
	Title       string
	Description string
	Priority    models.TaskPriority
	StartDate   *time.Time
	DueDate     *time.Time
	Tags        []string
	GroupID     int64
	GroupTitle  string
	Assignees   []models.UserRef
	Relations   []models.TaskRef
}

func computeDiff(before, after snapshot) []models.ChangeEntry {
	var entries []models.ChangeEntry

	if before.Title != after.Title {
		entries = append(entries, models.ChangeEntry{
			Type: "title_changed", From: before.Title, To: after.Title,
		})
	}
	if before.Description != after.Description {
		entries = append(entries, models.ChangeEntry{
			Type: "description_changed", From: before.Description, To: after.Description,
		})
	}
	if before.Priority != after.Priority {
		entries = append(entries, models.ChangeEntry{
			Type: "priority_changed", From: string(before.Priority), To: string(after.Priority),
		})
	}
	if !equalTime(before.StartDate, after.StartDate) {
		entries = append(entries, models.ChangeEntry{
			Type: "start_date_changed", From: formatDate(before.StartDate), To: formatDate(after.StartDate),
		})
	}
	if !equalTime(before.DueDate, after.DueDate) {
		entries = append(entries, models.ChangeEntry{
			Type: "due_date_changed", From: formatDate(before.DueDate), To: formatDate(after.DueDate),
		})
	}

	if added := diffStrings(after.Tags, before.Tags); len(added) > 0 {
		entries = append(entries, models.ChangeEntry{Type: "tags_added", Tags: added})
	}
	if removed := diffStrings(before.Tags, after.Tags); len(removed) > 0 {
		entries = append(entries, models.ChangeEntry{Type: "tags_removed", Tags: removed})
	}

	// a group move reads as a status change on the board
	if before.GroupID != after.GroupID {
		entries = append(entries, models.ChangeEntry{
			Type: "status_changed", From: before.GroupTitle, To: after.GroupTitle,
		})
	}

	if added := diffUsers(after.Assignees, before.Assignees); len(added) > 0 {
		entries = append(entries, models.ChangeEntry{Type: "assignees_added", Assignees: added})
	}
	if removed := diffUsers(before.Assignees, after.Assignees); len(removed) > 0 {
		entries = append(entries, models.ChangeEntry{Type: "assignees_removed", Assignees: removed})
	}

	if added := diffTasks(after.Relations, before.Relations); len(added) > 0 {
		entries = append(entries, models.ChangeEntry{Type: "relationships_added", Tasks: added})
	}
	if removed := diffTasks(before.Relations, after.Relations); len(removed) > 0 {
		entries = append(entries, models.ChangeEntry{Type: "relationships_removed", Tasks: removed})
	}

	return entries
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(timeutil.Civil).Format(time.RFC3339)
}

// diffStrings returns the members of a that are absent from b.
func diffStrings(a, b []string) []string {
	have := make(map[string]struct{}, len(b))
	for _, s := range b {
		have[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := have[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func diffUsers(a, b []models.UserRef) []models.UserRef {
	have := make(map[int64]struct{}, len(b))
	for _, u := range b {
		have[u.ID] = struct{}{}
	}
	var out []models.UserRef
	for _, u := range a {
		if _, ok := have[u.ID]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func diffTasks(a, b []models.TaskRef) []models.TaskRef {
	have := make(map[int64]struct{}, len(b))
	for _, t := range b {
		have[t.ID] = struct{}{}
	}
	var out []models.TaskRef
	for _, t := range a {
		if _, ok := have[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}
