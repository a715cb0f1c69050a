package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/models"
	"taskboard/internal/repositories"
	"taskboard/internal/timeutil"
)

// CreateTaskInput is the payload of create_task. Dates arrive as raw
// strings and are normalized to the fixed UTC+8 convention here, with
// the same rules update_task uses.
type CreateTaskInput struct {
	GroupID     int64
	Title       string
	Description string
	Priority    models.TaskPriority
	StartDate   string
	DueDate     string
}

// TaskService is the mutation service for tasks: permission checks,
// field updates, diffing, and delegation to the reorder engine.
type TaskService interface {
	Create(ctx context.Context, actorID int64, admin bool, in CreateTaskInput) (*models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	Move(ctx context.Context, actorID int64, admin bool, taskID, groupID int64, target int) (*models.Task, error)
	Update(ctx context.Context, actorID int64, admin bool, taskID int64, upd *models.TaskUpdate) (*models.Task, []models.ChangeEntry, error)
	Archive(ctx context.Context, actorID int64, admin bool, taskID int64) error
}

type taskService struct {
	tasks     repositories.TaskRepository
	groups    repositories.GroupRepository
	users     repositories.UserRepository
	publisher *EventPublisher
	cache     cache.BoardCache
}

func NewTaskService(
	tasks repositories.TaskRepository,
	groups repositories.GroupRepository,
	users repositories.UserRepository,
	publisher *EventPublisher,
	boardCache cache.BoardCache,
) TaskService {
	return &taskService{
		tasks:     tasks,
		groups:    groups,
		users:     users,
		publisher: publisher,
		cache:     boardCache,
	}
}

func (s *taskService) Create(ctx context.Context, actorID int64, admin bool, in CreateTaskInput) (*models.Task, error) {
	group, err := s.groups.FindByID(ctx, in.GroupID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if !admin && group.UserID != actorID {
		return nil, fmt.Errorf("%w: group %d", ErrPermissionDenied, in.GroupID)
	}

	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if !validPriority(in.Priority) {
		return nil, fmt.Errorf("%w: priority %q", ErrValidation, in.Priority)
	}

	task := &models.Task{
		CreatorID:   actorID,
		GroupID:     in.GroupID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Tags:        []string{},
		Status:      models.StatusActive,
	}
	if in.StartDate != "" {
		t, err := timeutil.ParseStart(in.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		task.StartDate = &t
	}
	if in.DueDate != "" {
		t, err := timeutil.ParseDue(in.DueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		task.DueDate = &t
	}

	if err := s.tasks.Store(ctx, task); err != nil {
		return nil, mapRepoErr(err)
	}

	after, err := s.snapshotOf(ctx, task, task.AssigneeIDs, nil)
	if err == nil {
		// before = empty board state, same group so no status entry
		before := snapshot{GroupID: after.GroupID, GroupTitle: after.GroupTitle, Priority: after.Priority}
		s.publisher.Publish(ctx, task.ID, actorID, models.ActionCreated,
			computeDiff(before, after), task.AssigneeIDs)
	}
	s.cache.Invalidate(ctx, append([]int64{actorID, group.UserID}, task.AssigneeIDs...)...)
	return task, nil
}

func (s *taskService) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if task.AssigneeIDs, err = s.tasks.ListAssignees(ctx, id); err != nil {
		return nil, err
	}
	if task.Relations, err = s.tasks.ListRelations(ctx, id); err != nil {
		return nil, err
	}
	return task, nil
}

// Move runs one reorder. A move to the task's current slot is a no-op:
// no writes, no event, success to the caller.
func (s *taskService) Move(ctx context.Context, actorID int64, admin bool, taskID, groupID int64, target int) (*models.Task, error) {
	if target < 0 {
		return nil, fmt.Errorf("%w: position must be positive", ErrValidation)
	}

	task, assignees, err := s.loadActive(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !admin && task.CreatorID != actorID && !containsID(assignees, actorID) {
		return nil, fmt.Errorf("%w: task %d", ErrPermissionDenied, taskID)
	}

	srcGroup, err := s.groups.FindByID(ctx, task.GroupID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	moved, changed, err := s.tasks.Move(ctx, taskID, repositories.MoveSpec{GroupID: groupID, Target: target})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	moved.AssigneeIDs = assignees

	if changed {
		entries := []models.ChangeEntry{}
		if moved.GroupID != task.GroupID {
			destGroup, err := s.groups.FindByID(ctx, moved.GroupID)
			if err == nil {
				entries = append(entries, models.ChangeEntry{
					Type: "status_changed", From: srcGroup.Title, To: destGroup.Title,
				})
			}
		}
		s.publisher.Publish(ctx, taskID, actorID, models.ActionMoved, entries,
			s.watchers(task.CreatorID, assignees, nil))
		s.cache.Invalidate(ctx, s.watchers(task.CreatorID, assignees, []int64{actorID})...)
	}
	return moved, nil
}

// Update applies a partial update in one transaction and reports the
// true diff against the pre-update state.
func (s *taskService) Update(ctx context.Context, actorID int64, admin bool, taskID int64, upd *models.TaskUpdate) (*models.Task, []models.ChangeEntry, error) {
	task, assignees, err := s.loadActive(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	isCreator := admin || task.CreatorID == actorID
	if !isCreator && !containsID(assignees, actorID) {
		return nil, nil, fmt.Errorf("%w: task %d", ErrPermissionDenied, taskID)
	}
	if (upd.Title != nil || upd.Assignees != nil) && !isCreator {
		return nil, nil, fmt.Errorf("%w: creator-only field", ErrPermissionDenied)
	}
	if upd.IsEmpty() {
		// soft no-op: nothing to write, nothing to publish
		task.AssigneeIDs = assignees
		return task, nil, nil
	}

	relations, err := s.tasks.ListRelations(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	before, err := s.snapshotOf(ctx, task, assignees, relations)
	if err != nil {
		return nil, nil, err
	}

	write, err := s.buildWrite(ctx, task, upd)
	if err != nil {
		return nil, nil, err
	}
	if err := s.tasks.ApplyUpdate(ctx, write); err != nil {
		return nil, nil, mapRepoErr(err)
	}

	// re-read committed state: the reorder engine decided the final
	// group/position inside the transaction
	fresh, freshAssignees, err := s.loadActive(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	freshRelations, err := s.tasks.ListRelations(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	after, err := s.snapshotOf(ctx, fresh, freshAssignees, freshRelations)
	if err != nil {
		return nil, nil, err
	}
	fresh.AssigneeIDs = freshAssignees
	fresh.Relations = freshRelations

	entries := computeDiff(before, after)
	if len(entries) > 0 {
		s.publisher.Publish(ctx, taskID, actorID, models.ActionUpdated, entries,
			s.watchers(task.CreatorID, assignees, freshAssignees))
	}
	s.cache.Invalidate(ctx, s.watchers(task.CreatorID, assignees, append(freshAssignees, actorID))...)
	return fresh, entries, nil
}

func (s *taskService) Archive(ctx context.Context, actorID int64, admin bool, taskID int64) error {
	task, assignees, err := s.loadActive(ctx, taskID)
	if err != nil {
		return err
	}
	if !admin && task.CreatorID != actorID {
		return fmt.Errorf("%w: only the creator may archive", ErrPermissionDenied)
	}

	if err := s.tasks.Archive(ctx, taskID); err != nil {
		return mapRepoErr(err)
	}
	s.publisher.Publish(ctx, taskID, actorID, models.ActionArchived, nil,
		s.watchers(task.CreatorID, assignees, nil))
	s.cache.Invalidate(ctx, s.watchers(task.CreatorID, assignees, []int64{actorID})...)
	return nil
}

// buildWrite merges the partial update into a full row image plus the
// optional move and set replacements, validating everything first.
func (s *taskService) buildWrite(ctx context.Context, task *models.Task, upd *models.TaskUpdate) (*repositories.TaskWrite, error) {
	updated := *task
	if upd.Title != nil {
		updated.Title = *upd.Title
	}
	if upd.Description != nil {
		updated.Description = *upd.Description
	}
	if upd.Priority != nil {
		if !validPriority(*upd.Priority) {
			return nil, fmt.Errorf("%w: priority %q", ErrValidation, *upd.Priority)
		}
		updated.Priority = *upd.Priority
	}
	if upd.StartDate != nil {
		if *upd.StartDate == "" {
			updated.StartDate = nil
		} else {
			t, err := timeutil.ParseStart(*upd.StartDate)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			updated.StartDate = &t
		}
	}
	if upd.DueDate != nil {
		if *upd.DueDate == "" {
			updated.DueDate = nil
		} else {
			t, err := timeutil.ParseDue(*upd.DueDate)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}
			updated.DueDate = &t
		}
	}
	if upd.Tags != nil {
		updated.Tags = dedupeStrings(*upd.Tags)
	}
	updated.UpdatedAt = time.Now().In(timeutil.Civil)

	write := &repositories.TaskWrite{Task: &updated}

	if upd.GroupID != nil && *upd.GroupID != task.GroupID {
		write.Move = &repositories.MoveSpec{GroupID: *upd.GroupID, Target: derefInt(upd.Position)}
	} else if upd.Position != nil {
		write.Move = &repositories.MoveSpec{GroupID: task.GroupID, Target: *upd.Position}
	}
	if write.Move != nil && write.Move.Target < 0 {
		return nil, fmt.Errorf("%w: position must be positive", ErrValidation)
	}

	if upd.Assignees != nil {
		ids := dedupeIDs(*upd.Assignees)
		found, err := s.users.ListByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(found) != len(ids) {
			return nil, fmt.Errorf("%w: unknown assignee", ErrValidation)
		}
		write.Assignees = &ids
	}

	if upd.Relations != nil {
		rels, err := s.normalizeRelations(ctx, task.ID, *upd.Relations)
		if err != nil {
			return nil, err
		}
		write.Relations = &rels
	}
	return write, nil
}

// normalizeRelations de-duplicates the requested set, rejects
// self-references, and checks every target exists.
func (s *taskService) normalizeRelations(ctx context.Context, taskID int64, in []models.TaskRelation) ([]models.TaskRelation, error) {
	seen := make(map[int64]struct{}, len(in))
	out := make([]models.TaskRelation, 0, len(in))
	for _, rel := range in {
		if rel.TaskID == taskID {
			return nil, fmt.Errorf("%w: task cannot relate to itself", ErrValidation)
		}
		if _, dup := seen[rel.TaskID]; dup {
			continue
		}
		seen[rel.TaskID] = struct{}{}
		if _, err := s.tasks.FindByID(ctx, rel.TaskID); err != nil {
			return nil, mapRepoErr(err)
		}
		out = append(out, rel)
	}
	return out, nil
}

func (s *taskService) loadActive(ctx context.Context, taskID int64) (*models.Task, []int64, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, mapRepoErr(err)
	}
	if task.Status != models.StatusActive {
		return nil, nil, fmt.Errorf("%w: task %d", ErrNotFound, taskID)
	}
	assignees, err := s.tasks.ListAssignees(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return task, assignees, nil
}

// snapshotOf resolves the ids of the task's current state into the
// named references diff entries carry.
func (s *taskService) snapshotOf(ctx context.Context, task *models.Task, assigneeIDs []int64, relations []models.TaskRelation) (snapshot, error) {
	snap := snapshot{
		Title:       task.Title,
		Description: task.Description,
		Priority:    task.Priority,
		StartDate:   task.StartDate,
		DueDate:     task.DueDate,
		Tags:        task.Tags,
		GroupID:     task.GroupID,
	}
	if group, err := s.groups.FindByID(ctx, task.GroupID); err == nil {
		snap.GroupTitle = group.Title
	}

	users, err := s.users.ListByIDs(ctx, assigneeIDs)
	if err != nil {
		return snap, err
	}
	for _, u := range users {
		snap.Assignees = append(snap.Assignees, models.UserRef{ID: u.ID, Name: u.Name})
	}

	for _, rel := range relations {
		ref := models.TaskRef{ID: rel.TaskID}
		if other, err := s.tasks.FindByID(ctx, rel.TaskID); err == nil {
			ref.Title = other.Title
		}
		snap.Relations = append(snap.Relations, ref)
	}
	return snap, nil
}

// watchers is the union of creator and assignee sets, deduplicated.
func (s *taskService) watchers(creatorID int64, a, b []int64) []int64 {
	return dedupeIDs(append(append([]int64{creatorID}, a...), b...))
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTaskNotFound),
		errors.Is(err, repositories.ErrGroupNotFound),
		errors.Is(err, repositories.ErrUserNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repositories.ErrCrossOwner):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

func validPriority(p models.TaskPriority) bool {
	switch p {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
