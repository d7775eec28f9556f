package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasktracker/internal/infra/persistence"
	"tasktracker/internal/infra/persistence/memory"
	"tasktracker/pkg/domain"
)

func TestDecoratorCommitsOnlyAcceptedMutations(t *testing.T) {
	ctx := context.Background()
	commits := 0
	d := persistence.Decorate(memory.NewStore(), func(context.Context) error {
		commits++
		return nil
	})
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	task, err := d.AddTask(ctx, domain.NewTask("a", "", start, time.Hour))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := d.AddTask(ctx, domain.NewTask("b", "", start, time.Hour)); !errors.Is(err, domain.ErrOverlap) {
		t.Fatalf("expected overlap, got %v", err)
	}
	if _, err := d.RemoveTask(ctx, 404); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := d.AddTask(ctx, nil); !errors.Is(err, domain.ErrMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
	d.Task(task.ID)
	d.Tasks()
	d.History()
	if commits != 1 {
		t.Fatalf("commits = %d, want 1", commits)
	}

	epic, err := d.AddEpic(ctx, domain.NewEpic("e", ""))
	if err != nil {
		t.Fatalf("add epic: %v", err)
	}
	st, err := d.AddSubtask(ctx, domain.NewSubtask("s", "", epic.ID, start.Add(2*time.Hour), time.Hour))
	if err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	st.Status = domain.StatusDone
	if _, err := d.UpdateSubtask(ctx, &st); err != nil {
		t.Fatalf("update subtask: %v", err)
	}
	if _, err := d.UpdateEpic(ctx, &epic); err != nil {
		t.Fatalf("update epic: %v", err)
	}
	if _, err := d.RemoveSubtask(ctx, st.ID); err != nil {
		t.Fatalf("remove subtask: %v", err)
	}
	if _, err := d.RemoveEpic(ctx, epic.ID); err != nil {
		t.Fatalf("remove epic: %v", err)
	}
	if err := d.ClearTasks(ctx); err != nil {
		t.Fatalf("clear tasks: %v", err)
	}
	if err := d.ClearSubtasks(ctx); err != nil {
		t.Fatalf("clear subtasks: %v", err)
	}
	if err := d.ClearEpics(ctx); err != nil {
		t.Fatalf("clear epics: %v", err)
	}
	if commits != 10 {
		t.Fatalf("commits = %d, want 10", commits)
	}
}

func TestDecoratorSurfacesCommitFailure(t *testing.T) {
	boom := errors.New("disk full")
	inner := memory.NewStore()
	d := persistence.Decorate(inner, func(context.Context) error { return boom })
	created, err := d.AddEpic(context.Background(), domain.NewEpic("e", ""))
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("committed value not returned alongside the error")
	}
	if _, ok := inner.Epic(created.ID); !ok {
		t.Fatalf("memory state rolled back")
	}
	if d.Inner() != domain.Manager(inner) {
		t.Fatalf("Inner returned a different manager")
	}
}

func TestCommitRunsInnerLayersFirst(t *testing.T) {
	var order []string
	inner := persistence.Decorate(memory.NewStore(), func(context.Context) error {
		order = append(order, "inner")
		return nil
	})
	outer := persistence.Decorate(inner, func(context.Context) error {
		order = append(order, "outer")
		return nil
	})
	if err := outer.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(order) != 2 || order[0] != "inner" || order[1] != "outer" {
		t.Fatalf("order = %v", order)
	}

	failing := persistence.Decorate(memory.NewStore(), func(context.Context) error { return domain.ErrSave })
	outer = persistence.Decorate(failing, func(context.Context) error {
		t.Fatalf("outer layer ran after inner failure")
		return nil
	})
	if err := outer.Commit(context.Background()); !errors.Is(err, domain.ErrSave) {
		t.Fatalf("expected ErrSave, got %v", err)
	}
}
