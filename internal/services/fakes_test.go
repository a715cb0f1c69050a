package services

import (
	"context"
	"sort"
	"testing"

	"taskboard/internal/board"
	"taskboard/internal/cache"
	"taskboard/internal/models"
	"taskboard/internal/realtime"
	"taskboard/internal/repositories"
)

// In-memory fakes mirroring the repository contracts. Moves apply the
// same shift plans the SQL layer executes, so the position semantics
// under test match production.

type fakeGroupRepo struct {
	groups map[int64]*models.Group
	nextID int64
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{groups: map[int64]*models.Group{}}
}

func (f *fakeGroupRepo) Store(_ context.Context, g *models.Group) error {
	f.nextID++
	g.ID = f.nextID
	max := 0
	for _, other := range f.groups {
		if other.UserID == g.UserID && other.Position > max {
			max = other.Position
		}
	}
	g.Position = max + 1
	cp := *g
	f.groups[g.ID] = &cp
	return nil
}

func (f *fakeGroupRepo) FindByID(_ context.Context, id int64) (*models.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeGroupRepo) ListByOwner(_ context.Context, userID int64) ([]models.Group, error) {
	var out []models.Group
	for _, g := range f.groups {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeGroupRepo) ListByIDs(_ context.Context, ids []int64) ([]models.Group, error) {
	var out []models.Group
	for _, id := range ids {
		if g, ok := f.groups[id]; ok {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGroupRepo) Reorder(_ context.Context, userID int64, items []models.GroupPosition) error {
	for _, item := range items {
		g, ok := f.groups[item.ID]
		if !ok || g.UserID != userID {
			return repositories.ErrGroupNotFound
		}
		g.Position = item.Position
	}
	return nil
}

type fakeUserRepo struct {
	users map[int64]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[int64]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) FindByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) ListByIDs(_ context.Context, ids []int64) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeTaskRepo struct {
	groups    *fakeGroupRepo
	tasks     map[int64]*models.Task
	assignees map[int64][]int64
	relations map[int64][]models.TaskRelation
	nextID    int64
	writes    int // counts mutating calls that actually wrote
}

func newFakeTaskRepo(groups *fakeGroupRepo) *fakeTaskRepo {
	return &fakeTaskRepo{
		groups:    groups,
		tasks:     map[int64]*models.Task{},
		assignees: map[int64][]int64{},
		relations: map[int64][]models.TaskRelation{},
	}
}

func (f *fakeTaskRepo) activeCount(groupID int64) int {
	n := 0
	for _, t := range f.tasks {
		if t.GroupID == groupID && t.Status == models.StatusActive {
			n++
		}
	}
	return n
}

func (f *fakeTaskRepo) Store(_ context.Context, task *models.Task) error {
	if _, ok := f.groups.groups[task.GroupID]; !ok {
		return repositories.ErrGroupNotFound
	}
	f.nextID++
	task.ID = f.nextID
	task.Position = f.activeCount(task.GroupID) + 1
	cp := *task
	f.tasks[task.ID] = &cp
	f.assignees[task.ID] = []int64{task.CreatorID}
	task.AssigneeIDs = []int64{task.CreatorID}
	f.writes++
	return nil
}

func (f *fakeTaskRepo) FindByID(_ context.Context, id int64) (*models.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, repositories.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskRepo) ListVisible(_ context.Context, userID int64, admin bool) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		if t.Status != models.StatusActive {
			continue
		}
		if admin || t.CreatorID == userID || containsID(f.assignees[t.ID], userID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupID != out[j].GroupID {
			return out[i].GroupID < out[j].GroupID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (f *fakeTaskRepo) moveLocked(taskID int64, spec repositories.MoveSpec) (bool, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.Status != models.StatusActive {
		return false, repositories.ErrTaskNotFound
	}
	src, ok := f.groups.groups[t.GroupID]
	if !ok {
		return false, repositories.ErrGroupNotFound
	}
	dest, ok := f.groups.groups[spec.GroupID]
	if !ok {
		return false, repositories.ErrGroupNotFound
	}
	if src.UserID != dest.UserID {
		return false, repositories.ErrCrossOwner
	}

	plan := board.PlanMove(t.GroupID, t.Position, f.activeCount(t.GroupID),
		spec.GroupID, f.activeCount(spec.GroupID), spec.Target)
	if plan.NoOp {
		return false, nil
	}
	for _, s := range plan.Shifts {
		for id, other := range f.tasks {
			if id == taskID || other.GroupID != s.GroupID || other.Status != models.StatusActive {
				continue
			}
			if other.Position >= s.From && (s.To == 0 || other.Position <= s.To) {
				other.Position += s.Delta
			}
		}
	}
	t.GroupID = plan.GroupID
	t.Position = plan.Position
	f.writes++
	return true, nil
}

func (f *fakeTaskRepo) Move(ctx context.Context, taskID int64, spec repositories.MoveSpec) (*models.Task, bool, error) {
	changed, err := f.moveLocked(taskID, spec)
	if err != nil {
		return nil, false, err
	}
	t, err := f.FindByID(ctx, taskID)
	return t, changed, err
}

func (f *fakeTaskRepo) Archive(_ context.Context, id int64) error {
	t, ok := f.tasks[id]
	if !ok || t.Status != models.StatusActive {
		return repositories.ErrTaskNotFound
	}
	shift := board.PlanRemove(t.GroupID, t.Position)
	t.Status = models.StatusArchived
	for tid, other := range f.tasks {
		if tid == id || other.GroupID != shift.GroupID || other.Status != models.StatusActive {
			continue
		}
		if other.Position >= shift.From {
			other.Position += shift.Delta
		}
	}
	f.writes++
	return nil
}

func (f *fakeTaskRepo) ApplyUpdate(_ context.Context, w *repositories.TaskWrite) error {
	t, ok := f.tasks[w.Task.ID]
	if !ok || t.Status != models.StatusActive {
		return repositories.ErrTaskNotFound
	}
	t.Title = w.Task.Title
	t.Description = w.Task.Description
	t.Priority = w.Task.Priority
	t.StartDate = w.Task.StartDate
	t.DueDate = w.Task.DueDate
	t.Tags = append([]string(nil), w.Task.Tags...)
	t.UpdatedAt = w.Task.UpdatedAt
	f.writes++

	if w.Move != nil {
		if _, err := f.moveLocked(w.Task.ID, *w.Move); err != nil {
			return err
		}
	}
	if w.Assignees != nil {
		f.assignees[w.Task.ID] = append([]int64(nil), (*w.Assignees)...)
	}
	if w.Relations != nil {
		f.relations[w.Task.ID] = append([]models.TaskRelation(nil), (*w.Relations)...)
	}
	return nil
}

func (f *fakeTaskRepo) ListAssignees(_ context.Context, taskID int64) ([]int64, error) {
	return append([]int64(nil), f.assignees[taskID]...), nil
}

func (f *fakeTaskRepo) AssigneesForTasks(_ context.Context, ids []int64) (map[int64][]int64, error) {
	out := map[int64][]int64{}
	for _, id := range ids {
		out[id] = append([]int64(nil), f.assignees[id]...)
	}
	return out, nil
}

func (f *fakeTaskRepo) ListRelations(_ context.Context, taskID int64) ([]models.TaskRelation, error) {
	return append([]models.TaskRelation(nil), f.relations[taskID]...), nil
}

func (f *fakeTaskRepo) RelationsForTasks(_ context.Context, ids []int64) (map[int64][]models.TaskRelation, error) {
	out := map[int64][]models.TaskRelation{}
	for _, id := range ids {
		out[id] = append([]models.TaskRelation(nil), f.relations[id]...)
	}
	return out, nil
}

type fakeEventRepo struct {
	events []models.ChangeEvent
}

func (f *fakeEventRepo) Store(_ context.Context, ev *models.ChangeEvent) error {
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeEventRepo) ListByTask(_ context.Context, taskID int64, limit int) ([]models.ChangeEvent, error) {
	var out []models.ChangeEvent
	for _, ev := range f.events {
		if ev.TaskID == taskID {
			out = append(out, ev)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fixture wires a full service stack over the fakes.
type fixture struct {
	groups  *fakeGroupRepo
	tasks   *fakeTaskRepo
	users   *fakeUserRepo
	events  *fakeEventRepo
	hub     *realtime.Hub
	service TaskService
	boards  BoardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	groups := newFakeGroupRepo()
	tasks := newFakeTaskRepo(groups)
	users := newFakeUserRepo(
		&models.User{ID: 1, Name: "Alice", Email: "alice@example.com"},
		&models.User{ID: 2, Name: "Bob", Email: "bob@example.com"},
		&models.User{ID: 3, Name: "Carol", Email: "carol@example.com"},
	)
	events := &fakeEventRepo{}
	hub := realtime.NewHub()
	publisher := NewEventPublisher(events, hub)
	return &fixture{
		groups:  groups,
		tasks:   tasks,
		users:   users,
		events:  events,
		hub:     hub,
		service: NewTaskService(tasks, groups, users, publisher, cache.Noop{}),
		boards:  NewBoardService(groups, tasks, cache.Noop{}),
	}
}

func (fx *fixture) mustGroup(t *testing.T, userID int64, title string) *models.Group {
	t.Helper()
	g, err := fx.boards.CreateGroup(context.Background(), userID, title, "")
	if err != nil {
		t.Fatalf("create group %q: %v", title, err)
	}
	return g
}

func (fx *fixture) mustTask(t *testing.T, actorID, groupID int64, title string) *models.Task {
	t.Helper()
	task, err := fx.service.Create(context.Background(), actorID, false, CreateTaskInput{
		GroupID: groupID,
		Title:   title,
	})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}

// groupOrder returns task titles of a group sorted by position, and
// fails the test if the positions are not exactly 1..n.
func (fx *fixture) groupOrder(t *testing.T, groupID int64) []string {
	t.Helper()
	type entry struct {
		pos   int
		title string
	}
	var entries []entry
	for _, task := range fx.tasks.tasks {
		if task.GroupID == groupID && task.Status == models.StatusActive {
			entries = append(entries, entry{task.Position, task.Title})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pos < entries[j].pos })
	out := make([]string, 0, len(entries))
	for i, e := range entries {
		if e.pos != i+1 {
			t.Fatalf("group %d positions not dense: %+v", groupID, entries)
		}
		out = append(out, e.title)
	}
	return out
}
