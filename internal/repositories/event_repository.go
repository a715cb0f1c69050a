package repositories

import (
	"context"
	"database/sql"

	"taskboard/internal/models"
)

// EventRepository is the append-only change log. Rows are never
// updated or deleted.
type EventRepository interface {
	Store(ctx context.Context, event *models.ChangeEvent) error
	ListByTask(ctx context.Context, taskID int64, limit int) ([]models.ChangeEvent, error)
}

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Store(ctx context.Context, event *models.ChangeEvent) error {
	query := `
		INSERT INTO change_events (id, task_id, actor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.TaskID, event.ActorID, event.Action,
		[]byte(event.Details), event.CreatedAt,
	)
	return err
}

func (r *eventRepository) ListByTask(ctx context.Context, taskID int64, limit int) ([]models.ChangeEvent, error) {
	query := `
		SELECT id, task_id, actor_id, action, details, created_at
		FROM change_events WHERE task_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ChangeEvent
	for rows.Next() {
		var ev models.ChangeEvent
		var details []byte
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.ActorID, &ev.Action, &details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Details = details
		events = append(events, ev)
	}
	return events, rows.Err()
}
