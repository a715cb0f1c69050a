package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"taskboard/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

type GroupRepository interface {
	Store(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id int64) (*models.Group, error)
	ListByOwner(ctx context.Context, userID int64) ([]models.Group, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.Group, error)
	Reorder(ctx context.Context, userID int64, items []models.GroupPosition) error
}

type groupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Store appends the group at the end of the owner's sequence. The
// owner's rows are locked first so two concurrent creates cannot pick
// the same position.
func (r *groupRepository) Store(ctx context.Context, group *models.Group) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM task_groups WHERE user_id = $1 FOR UPDATE`, group.UserID); err != nil {
		return err
	}

	query := `
		INSERT INTO task_groups (user_id, title, color, position, is_default, created_at)
		VALUES ($1, $2, $3,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM task_groups WHERE user_id = $1),
			$4, NOW())
		RETURNING id, position, created_at`
	if err := tx.QueryRowContext(ctx, query,
		group.UserID, group.Title, group.Color, group.IsDefault,
	).Scan(&group.ID, &group.Position, &group.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *groupRepository) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	query := `SELECT id, user_id, title, color, position, is_default, created_at
	          FROM task_groups WHERE id = $1`
	group := &models.Group{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID, &group.UserID, &group.Title, &group.Color,
		&group.Position, &group.IsDefault, &group.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return group, nil
}

func (r *groupRepository) ListByOwner(ctx context.Context, userID int64) ([]models.Group, error) {
	query := `SELECT id, user_id, title, color, position, is_default, created_at
	          FROM task_groups WHERE user_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Title, &g.Color, &g.Position, &g.IsDefault, &g.CreatedAt,
		); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *groupRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, user_id, title, color, position, is_default, created_at
	          FROM task_groups WHERE id = ANY($1) ORDER BY user_id, position`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Title, &g.Color, &g.Position, &g.IsDefault, &g.CreatedAt,
		); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Reorder applies a caller-supplied position list in one transaction.
// Every write is scoped to (id, user_id): another owner's groups are
// unreachable no matter what ids the caller sends.
func (r *groupRepository) Reorder(ctx context.Context, userID int64, items []models.GroupPosition) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, item := range items {
		res, err := tx.ExecContext(ctx,
			`UPDATE task_groups SET position = $1 WHERE id = $2 AND user_id = $3`,
			item.Position, item.ID, userID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: id=%d", ErrGroupNotFound, item.ID)
		}
	}
	return tx.Commit()
}
