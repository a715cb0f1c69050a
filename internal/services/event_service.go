package services

import (
	"context"

	"taskboard/internal/models"
	"taskboard/internal/repositories"
)

// EventService exposes the append-only change log for audit queries.
type EventService interface {
	History(ctx context.Context, taskID int64, limit int) ([]models.ChangeEvent, error)
}

type eventService struct {
	events repositories.EventRepository
}

func NewEventService(events repositories.EventRepository) EventService {
	return &eventService{events: events}
}

func (s *eventService) History(ctx context.Context, taskID int64, limit int) ([]models.ChangeEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.events.ListByTask(ctx, taskID, limit)
}
