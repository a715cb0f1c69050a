package services

import (
	"context"
	"encoding/json"
	"fmt"

	"taskboard/internal/cache"
	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

// BoardView is the read model: every group plus every active task the
// caller can see, in board order, enriched with assignees and
// relations.
type BoardView struct {
	Groups []models.Group `json:"groups"`
	Tasks  []models.Task  `json:"tasks"`
}

type BoardService interface {
	CreateGroup(ctx context.Context, userID int64, title, color string) (*models.Group, error)
	ListGroups(ctx context.Context, userID int64) ([]models.Group, error)
	ReorderGroups(ctx context.Context, userID int64, items []models.GroupPosition) error
	// Board returns the marshaled read model, served from the cache
	// when a fresh copy is there.
	Board(ctx context.Context, userID int64, admin bool) ([]byte, error)
}

type boardService struct {
	groups repositories.GroupRepository
	tasks  repositories.TaskRepository
	cache  cache.BoardCache
}

func NewBoardService(groups repositories.GroupRepository, tasks repositories.TaskRepository, boardCache cache.BoardCache) BoardService {
	return &boardService{groups: groups, tasks: tasks, cache: boardCache}
}

func (s *boardService) CreateGroup(ctx context.Context, userID int64, title, color string) (*models.Group, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	group := &models.Group{UserID: userID, Title: title, Color: color}
	if err := s.groups.Store(ctx, group); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userID)
	return group, nil
}

func (s *boardService) ListGroups(ctx context.Context, userID int64) ([]models.Group, error) {
	return s.groups.ListByOwner(ctx, userID)
}

func (s *boardService) ReorderGroups(ctx context.Context, userID int64, items []models.GroupPosition) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: empty reorder list", ErrValidation)
	}
	seen := make(map[int64]struct{}, len(items))
	taken := make(map[int]struct{}, len(items))
	for _, item := range items {
		if item.Position < 1 {
			return fmt.Errorf("%w: position %d for group %d", ErrValidation, item.Position, item.ID)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: group %d listed twice", ErrValidation, item.ID)
		}
		seen[item.ID] = struct{}{}
		// two groups on the same slot would break density on commit
		if _, dup := taken[item.Position]; dup {
			return fmt.Errorf("%w: position %d assigned twice", ErrConflict, item.Position)
		}
		taken[item.Position] = struct{}{}
	}
	if err := s.groups.Reorder(ctx, userID, items); err != nil {
		return mapRepoErr(err)
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

func (s *boardService) Board(ctx context.Context, userID int64, admin bool) ([]byte, error) {
	if payload, ok := s.cache.GetBoard(ctx, userID); ok {
		return payload, nil
	}

	groups, err := s.groups.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListVisible(ctx, userID, admin)
	if err != nil {
		return nil, err
	}

	// a task assigned to the caller can live in another owner's group;
	// that group must ship too or the client cannot place the card
	have := make(map[int64]bool, len(groups))
	for _, g := range groups {
		have[g.ID] = true
	}
	var foreign []int64
	for _, t := range tasks {
		if !have[t.GroupID] {
			have[t.GroupID] = true
			foreign = append(foreign, t.GroupID)
		}
	}
	if len(foreign) > 0 {
		extra, err := s.groups.ListByIDs(ctx, foreign)
		if err != nil {
			return nil, err
		}
		groups = append(groups, extra...)
	}

	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	assignees, err := s.tasks.AssigneesForTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	relations, err := s.tasks.RelationsForTasks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].AssigneeIDs = assignees[tasks[i].ID]
		tasks[i].Relations = relations[tasks[i].ID]
	}

	payload, err := json.Marshal(BoardView{Groups: groups, Tasks: tasks})
	if err != nil {
		return nil, err
	}
	s.cache.SetBoard(ctx, userID, payload)
	return payload, nil
}
