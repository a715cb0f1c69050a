package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskboard/internal/models"
	"taskboard/internal/timeutil"
)

func TestUpdate_PermissionTable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	task := fx.mustTask(t, 1, g.ID, "write report")

	// make Bob an assignee (creator-only operation, done by Alice)
	assignees := []int64{1, 2}
	if _, _, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{Assignees: &assignees}); err != nil {
		t.Fatalf("assign bob: %v", err)
	}

	t.Run("assignee cannot change title", func(t *testing.T) {
		title := "hijacked"
		_, _, err := fx.service.Update(ctx, 2, false, task.ID, &models.TaskUpdate{Title: &title})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("assignee cannot change assignee set", func(t *testing.T) {
		solo := []int64{2}
		_, _, err := fx.service.Update(ctx, 2, false, task.ID, &models.TaskUpdate{Assignees: &solo})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("assignee can change priority", func(t *testing.T) {
		prio := models.PriorityHigh
		updated, diff, err := fx.service.Update(ctx, 2, false, task.ID, &models.TaskUpdate{Priority: &prio})
		if err != nil {
			t.Fatalf("update priority: %v", err)
		}
		if updated.Priority != models.PriorityHigh {
			t.Fatalf("priority = %q", updated.Priority)
		}
		if len(diff) != 1 || diff[0].Type != "priority_changed" {
			t.Fatalf("diff = %+v", diff)
		}
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		prio := models.PriorityLow
		_, _, err := fx.service.Update(ctx, 3, false, task.ID, &models.TaskUpdate{Priority: &prio})
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
	})
}

func TestUpdate_TagDiffReportsTrueDelta(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	task := fx.mustTask(t, 1, g.ID, "tagged")

	first := []string{"a", "b"}
	if _, _, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{Tags: &first}); err != nil {
		t.Fatalf("set tags: %v", err)
	}

	second := []string{"b", "c"}
	_, diff, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{Tags: &second})
	if err != nil {
		t.Fatalf("update tags: %v", err)
	}

	var added, removed []string
	for _, entry := range diff {
		switch entry.Type {
		case "tags_added":
			added = entry.Tags
		case "tags_removed":
			removed = entry.Tags
		default:
			t.Fatalf("unexpected diff entry %+v", entry)
		}
	}
	if len(added) != 1 || added[0] != "c" {
		t.Fatalf("tags_added = %v, want [c]", added)
	}
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("tags_removed = %v, want [a]", removed)
	}
}

func TestUpdate_EmptyIsSoftNoOp(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	task := fx.mustTask(t, 1, g.ID, "quiet")

	writes := fx.tasks.writes
	events := len(fx.events.events)

	got, diff, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{})
	if err != nil {
		t.Fatalf("empty update: %v", err)
	}
	if got.ID != task.ID || len(diff) != 0 {
		t.Fatalf("soft no-op returned diff %+v", diff)
	}
	if fx.tasks.writes != writes {
		t.Fatal("empty update must not write")
	}
	if len(fx.events.events) != events {
		t.Fatal("empty update must not publish")
	}
}

func TestUpdate_DateNormalizationRoundTrip(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")

	task, err := fx.service.Create(ctx, 1, false, CreateTaskInput{
		GroupID: g.ID, Title: "deadline", DueDate: "2025-03-10",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := time.Date(2025, 3, 10, 23, 59, 59, 0, timeutil.Civil)
	if task.DueDate == nil || !task.DueDate.Equal(want) {
		t.Fatalf("due = %v, want %v", task.DueDate, want)
	}

	// re-submitting the stored value must produce an empty diff
	stored := task.DueDate.Format(time.RFC3339)
	_, diff, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{DueDate: &stored})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if len(diff) != 0 {
		t.Fatalf("round trip produced diff %+v", diff)
	}
}

func TestMove_NoOpIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	t1 := fx.mustTask(t, 1, g.ID, "T1")
	fx.mustTask(t, 1, g.ID, "T2")
	fx.mustTask(t, 1, g.ID, "T3")

	if _, err := fx.service.Move(ctx, 1, false, t1.ID, g.ID, 3); err != nil {
		t.Fatalf("first move: %v", err)
	}

	writes := fx.tasks.writes
	events := len(fx.events.events)

	// the task already sits at (g, 3): repeating the move twice must
	// produce zero writes and zero events
	for i := 0; i < 2; i++ {
		moved, err := fx.service.Move(ctx, 1, false, t1.ID, g.ID, 3)
		if err != nil {
			t.Fatalf("no-op move %d: %v", i, err)
		}
		if moved.Position != 3 {
			t.Fatalf("position = %d, want 3", moved.Position)
		}
	}
	if fx.tasks.writes != writes {
		t.Fatalf("no-op moves wrote %d times", fx.tasks.writes-writes)
	}
	if len(fx.events.events) != events {
		t.Fatal("no-op moves published events")
	}
}

func TestMove_CrossGroupPreservesDensity(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.mustGroup(t, 1, "A")
	b := fx.mustGroup(t, 1, "B")

	var moved *models.Task
	for i, title := range []string{"A1", "A2", "A3", "A4", "A5"} {
		task := fx.mustTask(t, 1, a.ID, title)
		if i == 2 {
			moved = task // A3, position 3
		}
	}
	for _, title := range []string{"B1", "B2", "B3"} {
		fx.mustTask(t, 1, b.ID, title)
	}

	got, err := fx.service.Move(ctx, 1, false, moved.ID, b.ID, 2)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got.GroupID != b.ID || got.Position != 2 {
		t.Fatalf("landed at (%d,%d), want (%d,2)", got.GroupID, got.Position, b.ID)
	}

	if order := fx.groupOrder(t, a.ID); len(order) != 4 {
		t.Fatalf("group A = %v, want 4 tasks", order)
	}
	order := fx.groupOrder(t, b.ID)
	want := []string{"B1", "A3", "B2", "B3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("group B = %v, want %v", order, want)
		}
	}
}

func TestMove_ConcreteScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.mustGroup(t, 1, "A")
	b := fx.mustGroup(t, 1, "B")

	t1 := fx.mustTask(t, 1, a.ID, "T1")
	fx.mustTask(t, 1, a.ID, "T2")
	t3 := fx.mustTask(t, 1, a.ID, "T3")
	fx.mustTask(t, 1, b.ID, "T4")

	if _, err := fx.service.Move(ctx, 1, false, t1.ID, a.ID, 3); err != nil {
		t.Fatalf("move T1: %v", err)
	}
	order := fx.groupOrder(t, a.ID)
	want := []string{"T2", "T3", "T1"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("group A = %v, want %v", order, want)
		}
	}

	// append T3 to B
	if _, err := fx.service.Move(ctx, 1, false, t3.ID, b.ID, 0); err != nil {
		t.Fatalf("move T3: %v", err)
	}
	if order := fx.groupOrder(t, b.ID); order[0] != "T4" || order[1] != "T3" {
		t.Fatalf("group B = %v, want [T4 T3]", order)
	}
	if order := fx.groupOrder(t, a.ID); order[0] != "T2" || order[1] != "T1" {
		t.Fatalf("group A = %v, want [T2 T1]", order)
	}
}

func TestMove_EmitsStatusChange(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.mustGroup(t, 1, "Backlog")
	b := fx.mustGroup(t, 1, "Doing")
	task := fx.mustTask(t, 1, a.ID, "T")

	if _, err := fx.service.Move(ctx, 1, false, task.ID, b.ID, 0); err != nil {
		t.Fatalf("move: %v", err)
	}

	last := fx.events.events[len(fx.events.events)-1]
	if last.Action != models.ActionMoved {
		t.Fatalf("action = %q", last.Action)
	}
	details := string(last.Details)
	if !strings.Contains(details, "status_changed") ||
		!strings.Contains(details, "Backlog") ||
		!strings.Contains(details, "Doing") {
		t.Fatalf("details = %s", details)
	}
}

func TestUpdate_RelationsValidated(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	task := fx.mustTask(t, 1, g.ID, "main")
	other := fx.mustTask(t, 1, g.ID, "other")

	t.Run("self relation rejected", func(t *testing.T) {
		rels := []models.TaskRelation{{TaskID: task.ID, Type: "related"}}
		_, _, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{Relations: &rels})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("missing target rejected", func(t *testing.T) {
		rels := []models.TaskRelation{{TaskID: 999, Type: "related"}}
		_, _, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{Relations: &rels})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicates collapse and diff names the target", func(t *testing.T) {
		rels := []models.TaskRelation{
			{TaskID: other.ID, Type: "related"},
			{TaskID: other.ID, Type: "related"},
		}
		updated, diff, err := fx.service.Update(ctx, 1, false, task.ID, &models.TaskUpdate{Relations: &rels})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(updated.Relations) != 1 {
			t.Fatalf("relations = %+v, want one", updated.Relations)
		}
		if len(diff) != 1 || diff[0].Type != "relationships_added" ||
			len(diff[0].Tasks) != 1 || diff[0].Tasks[0].Title != "other" {
			t.Fatalf("diff = %+v", diff)
		}
	})
}

func TestArchive_ClosesGap(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	fx.mustTask(t, 1, g.ID, "T1")
	t2 := fx.mustTask(t, 1, g.ID, "T2")
	fx.mustTask(t, 1, g.ID, "T3")

	if err := fx.service.Archive(ctx, 1, false, t2.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	order := fx.groupOrder(t, g.ID)
	if len(order) != 2 || order[0] != "T1" || order[1] != "T3" {
		t.Fatalf("group = %v, want [T1 T3]", order)
	}

	t.Run("archived task is gone for mutations", func(t *testing.T) {
		prio := models.PriorityHigh
		_, _, err := fx.service.Update(ctx, 1, false, t2.ID, &models.TaskUpdate{Priority: &prio})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestStream_DeliveryToScopedSubscribers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	g := fx.mustGroup(t, 1, "Todo")
	watched := fx.mustTask(t, 1, g.ID, "watched")
	unrelated := fx.mustTask(t, 1, g.ID, "unrelated")

	// two subscribers watch the task, a third watches another one
	subA := fx.hub.Subscribe(1, false, watched.ID)
	subB := fx.hub.Subscribe(1, false, watched.ID)
	subC := fx.hub.Subscribe(1, false, unrelated.ID)
	defer subA.Close()
	defer subB.Close()
	defer subC.Close()

	prio := models.PriorityUrgent
	if _, _, err := fx.service.Update(ctx, 1, false, watched.ID, &models.TaskUpdate{Priority: &prio}); err != nil {
		t.Fatalf("update: %v", err)
	}

	select {
	case ev := <-subA.Events():
		if ev.Action != models.ActionUpdated || ev.TaskID != watched.ID {
			t.Fatalf("subscriber A got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber A got nothing")
	}
	select {
	case ev := <-subB.Events():
		if ev.TaskID != watched.ID {
			t.Fatalf("subscriber B got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber B got nothing")
	}
	select {
	case ev := <-subC.Events():
		t.Fatalf("unrelated subscriber got %+v", ev)
	default:
	}
}

func TestGroupReorder_ScopedToOwner(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	mine := fx.mustGroup(t, 1, "Mine")
	theirs := fx.mustGroup(t, 2, "Theirs")

	err := fx.boards.ReorderGroups(ctx, 1, []models.GroupPosition{
		{ID: mine.ID, Position: 1},
		{ID: theirs.ID, Position: 2},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound for another owner's group", err)
	}
}
