package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/models"
	"taskboard/internal/realtime"
	"taskboard/internal/repositories"
	"taskboard/internal/timeutil"
)

// EventPublisher turns a committed mutation into a durable audit row
// and a best-effort broadcast. It must only be called after the owning
// transaction has committed; a state that could still roll back must
// never be advertised. Publish failures are logged and swallowed; the
// write already happened.
type EventPublisher struct {
	events repositories.EventRepository
	hub    *realtime.Hub
}

func NewEventPublisher(events repositories.EventRepository, hub *realtime.Hub) *EventPublisher {
	return &EventPublisher{events: events, hub: hub}
}

func (p *EventPublisher) Publish(ctx context.Context, taskID, actorID int64, action string, entries []models.ChangeEntry, visibleTo []int64) {
	details, err := json.Marshal(entries)
	if err != nil {
		log.Printf("[events][publish][err] marshal task=%d: %v", taskID, err)
		return
	}

	ev := models.ChangeEvent{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().In(timeutil.Civil),
	}
	if err := p.events.Store(ctx, &ev); err != nil {
		log.Printf("[events][publish][err] audit insert task=%d: %v", taskID, err)
		// keep going: the broadcast is independent of the audit row
	}

	p.hub.Publish(realtime.Event{
		ID:        ev.ID,
		TaskID:    ev.TaskID,
		ActorID:   ev.ActorID,
		Action:    ev.Action,
		Details:   ev.Details,
		CreatedAt: ev.CreatedAt,
		VisibleTo: visibleTo,
	})
}
