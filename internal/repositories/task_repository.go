package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"taskboard/internal/board"
	"taskboard/internal/models"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrCrossOwner   = errors.New("destination group belongs to another owner")
)

// MoveSpec names a destination for a task. Target 0 means append to
// the end of the destination group.
type MoveSpec struct {
	GroupID int64
	Target  int
}

// TaskWrite bundles everything one update_task call persists. All of
// it is applied inside a single transaction: scalar fields, the
// optional move, and the wholesale assignee/relation replacements.
type TaskWrite struct {
	Task      *models.Task
	Move      *MoveSpec
	Assignees *[]int64
	Relations *[]models.TaskRelation
}

type TaskRepository interface {
	Store(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	ListVisible(ctx context.Context, userID int64, admin bool) ([]models.Task, error)
	// Move returns the task after the move and whether anything was
	// written at all (false = no-op short-circuit).
	Move(ctx context.Context, taskID int64, spec MoveSpec) (*models.Task, bool, error)
	Archive(ctx context.Context, id int64) error
	ApplyUpdate(ctx context.Context, w *TaskWrite) error

	ListAssignees(ctx context.Context, taskID int64) ([]int64, error)
	AssigneesForTasks(ctx context.Context, ids []int64) (map[int64][]int64, error)
	ListRelations(ctx context.Context, taskID int64) ([]models.TaskRelation, error)
	RelationsForTasks(ctx context.Context, ids []int64) (map[int64][]models.TaskRelation, error)
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Store appends the task at the end of its group and records the
// creator as the first assignee, all in one transaction.
func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var groupExists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM task_groups WHERE id = $1)`, task.GroupID,
	).Scan(&groupExists); err != nil {
		return err
	}
	if !groupExists {
		return ErrGroupNotFound
	}

	// serialize appends against concurrent reorders on the same group
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM tasks WHERE group_id = $1 AND status = 'active' FOR UPDATE`,
		task.GroupID); err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (
			creator_id, group_id, title, description, priority,
			start_date, due_date, tags, position, status, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM tasks
			 WHERE group_id = $2 AND status = 'active'),
			$9, NOW(), NOW())
		RETURNING id, position, created_at, updated_at`
	if err := tx.QueryRowContext(ctx, query,
		task.CreatorID, task.GroupID, task.Title, task.Description, task.Priority,
		task.StartDate, task.DueDate, pq.Array(task.Tags), task.Status,
	).Scan(&task.ID, &task.Position, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)`,
		task.ID, task.CreatorID); err != nil {
		return err
	}
	task.AssigneeIDs = []int64{task.CreatorID}
	return tx.Commit()
}

const taskColumns = `id, creator_id, group_id, title, description, priority,
       start_date, due_date, tags, position, status, created_at, updated_at`

const taskColumnsT = `t.id, t.creator_id, t.group_id, t.title, t.description, t.priority,
       t.start_date, t.due_date, t.tags, t.position, t.status, t.created_at, t.updated_at`

func scanTask(row interface{ Scan(...interface{}) error }, t *models.Task) error {
	return row.Scan(
		&t.ID, &t.CreatorID, &t.GroupID, &t.Title, &t.Description, &t.Priority,
		&t.StartDate, &t.DueDate, pq.Array(&t.Tags), &t.Position, &t.Status,
		&t.CreatedAt, &t.UpdatedAt,
	)
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	task := &models.Task{}
	err := scanTask(r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id), task)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// ListVisible returns the active tasks the user created or is assigned
// to, in board order. Admins see everything.
func (r *taskRepository) ListVisible(ctx context.Context, userID int64, admin bool) ([]models.Task, error) {
	query := `SELECT DISTINCT ` + taskColumnsT + `
		FROM tasks t
		LEFT JOIN task_assignees a ON a.task_id = t.id
		WHERE t.status = 'active' AND (t.creator_id = $1 OR a.user_id = $1)
		ORDER BY t.group_id, t.position`
	args := []interface{}{userID}
	if admin {
		query = `SELECT ` + taskColumns + ` FROM tasks
			WHERE status = 'active' ORDER BY group_id, position`
		args = nil
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := scanTask(rows, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Move runs the reorder engine in its own transaction. On a no-op it
// rolls back without having written anything.
func (r *taskRepository) Move(ctx context.Context, taskID int64, spec MoveSpec) (*models.Task, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	_, _, noop, err := r.moveTx(ctx, tx, taskID, spec)
	if err != nil {
		return nil, false, err
	}
	if noop {
		// nothing written; the deferred rollback closes the tx
		task, err := r.FindByID(ctx, taskID)
		return task, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	task, err := r.FindByID(ctx, taskID)
	return task, true, err
}

// moveTx performs the read-shift-write sequence of one move inside the
// caller's transaction. Concurrent moves on the same groups serialize
// on the row locks taken here, so each transaction plans against the
// previous one's committed state.
func (r *taskRepository) moveTx(ctx context.Context, tx *sql.Tx, taskID int64, spec MoveSpec) (int64, int, bool, error) {
	var srcGroup int64
	var srcPos int
	err := tx.QueryRowContext(ctx,
		`SELECT group_id, position FROM tasks WHERE id = $1 AND status = 'active' FOR UPDATE`,
		taskID).Scan(&srcGroup, &srcPos)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, false, ErrTaskNotFound
		}
		return 0, 0, false, err
	}

	// both groups must exist and share an owner
	groupIDs := []int64{srcGroup}
	if spec.GroupID != srcGroup {
		groupIDs = append(groupIDs, spec.GroupID)
	}
	owners := map[int64]int64{}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, user_id FROM task_groups WHERE id = ANY($1)`, pq.Array(groupIDs))
	if err != nil {
		return 0, 0, false, err
	}
	for rows.Next() {
		var id, owner int64
		if err := rows.Scan(&id, &owner); err != nil {
			rows.Close()
			return 0, 0, false, err
		}
		owners[id] = owner
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, 0, false, err
	}
	if _, ok := owners[spec.GroupID]; !ok {
		return 0, 0, false, ErrGroupNotFound
	}
	if owners[spec.GroupID] != owners[srcGroup] {
		return 0, 0, false, ErrCrossOwner
	}

	// lock every active row the shifts may touch
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM tasks
		 WHERE group_id = ANY($1) AND status = 'active' AND id <> $2 FOR UPDATE`,
		pq.Array(groupIDs), taskID); err != nil {
		return 0, 0, false, err
	}

	srcSize, err := r.activeCount(ctx, tx, srcGroup)
	if err != nil {
		return 0, 0, false, err
	}
	destSize := srcSize
	if spec.GroupID != srcGroup {
		if destSize, err = r.activeCount(ctx, tx, spec.GroupID); err != nil {
			return 0, 0, false, err
		}
	}

	plan := board.PlanMove(srcGroup, srcPos, srcSize, spec.GroupID, destSize, spec.Target)
	if plan.NoOp {
		return srcGroup, srcPos, true, nil
	}

	for _, s := range plan.Shifts {
		if err := applyShift(ctx, tx, s, taskID); err != nil {
			return 0, 0, false, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET group_id = $1, position = $2, updated_at = NOW() WHERE id = $3`,
		plan.GroupID, plan.Position, taskID); err != nil {
		return 0, 0, false, err
	}
	return plan.GroupID, plan.Position, false, nil
}

func (r *taskRepository) activeCount(ctx context.Context, tx *sql.Tx, groupID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE group_id = $1 AND status = 'active'`,
		groupID).Scan(&n)
	return n, err
}

func applyShift(ctx context.Context, tx *sql.Tx, s board.Shift, movedID int64) error {
	query := `UPDATE tasks SET position = position + $1
	          WHERE group_id = $2 AND status = 'active' AND id <> $3 AND position >= $4`
	args := []interface{}{s.Delta, s.GroupID, movedID, s.From}
	if s.To > 0 {
		query += ` AND position <= $5`
		args = append(args, s.To)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Archive marks the task inactive and closes the gap it leaves in its
// group, keeping the remaining positions dense.
func (r *taskRepository) Archive(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var group int64
	var pos int
	err = tx.QueryRowContext(ctx,
		`SELECT group_id, position FROM tasks WHERE id = $1 AND status = 'active' FOR UPDATE`,
		id).Scan(&group, &pos)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrTaskNotFound
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM tasks WHERE group_id = $1 AND status = 'active' AND id <> $2 FOR UPDATE`,
		group, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = 'archived', updated_at = NOW() WHERE id = $1`, id); err != nil {
		return err
	}
	if err := applyShift(ctx, tx, board.PlanRemove(group, pos), id); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyUpdate persists one update_task call: scalar fields, the
// optional group/position move, and the set replacements, all in a
// single transaction so a failure rolls back every part of it.
func (r *taskRepository) ApplyUpdate(ctx context.Context, w *TaskWrite) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET
			title = $1, description = $2, priority = $3,
			start_date = $4, due_date = $5, tags = $6, updated_at = NOW()
		WHERE id = $7 AND status = 'active'`,
		w.Task.Title, w.Task.Description, w.Task.Priority,
		w.Task.StartDate, w.Task.DueDate, pq.Array(w.Task.Tags), w.Task.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotFound
	}

	if w.Move != nil {
		if _, _, _, err := r.moveTx(ctx, tx, w.Task.ID, *w.Move); err != nil {
			return err
		}
	}

	if w.Assignees != nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM task_assignees WHERE task_id = $1`, w.Task.ID); err != nil {
			return err
		}
		for _, userID := range *w.Assignees {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_assignees (task_id, user_id) VALUES ($1, $2)`,
				w.Task.ID, userID); err != nil {
				return err
			}
		}
	}

	if w.Relations != nil {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM task_relations WHERE task_id = $1 OR related_task_id = $1`,
			w.Task.ID); err != nil {
			return err
		}
		for _, rel := range *w.Relations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO task_relations (task_id, related_task_id, type) VALUES ($1, $2, $3)`,
				w.Task.ID, rel.TaskID, rel.Type); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (r *taskRepository) ListAssignees(ctx context.Context, taskID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM task_assignees WHERE task_id = $1 ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *taskRepository) AssigneesForTasks(ctx context.Context, ids []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, user_id FROM task_assignees WHERE task_id = ANY($1) ORDER BY user_id`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, userID int64
		if err := rows.Scan(&taskID, &userID); err != nil {
			return nil, err
		}
		out[taskID] = append(out[taskID], userID)
	}
	return out, rows.Err()
}

// ListRelations returns the task's relations regardless of which side
// of the edge it sits on.
func (r *taskRepository) ListRelations(ctx context.Context, taskID int64) ([]models.TaskRelation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT task_id, related_task_id, type FROM task_relations
		WHERE task_id = $1 OR related_task_id = $1`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []models.TaskRelation
	for rows.Next() {
		var from, to int64
		var typ string
		if err := rows.Scan(&from, &to, &typ); err != nil {
			return nil, err
		}
		other := to
		if to == taskID {
			other = from
		}
		rels = append(rels, models.TaskRelation{TaskID: other, Type: typ})
	}
	return rels, rows.Err()
}

func (r *taskRepository) RelationsForTasks(ctx context.Context, ids []int64) (map[int64][]models.TaskRelation, error) {
	out := make(map[int64][]models.TaskRelation)
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT task_id, related_task_id, type FROM task_relations
		WHERE task_id = ANY($1) OR related_task_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for rows.Next() {
		var from, to int64
		var typ string
		if err := rows.Scan(&from, &to, &typ); err != nil {
			return nil, err
		}
		if wanted[from] {
			out[from] = append(out[from], models.TaskRelation{TaskID: to, Type: typ})
		}
		if wanted[to] {
			out[to] = append(out[to], models.TaskRelation{TaskID: from, Type: typ})
		}
	}
	return out, rows.Err()
}
