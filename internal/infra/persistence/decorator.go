// Package persistence holds the building block shared by the durable manager
// layers: a decorator that runs a commit hook after every mutation the wrapped
// manager accepted.
package persistence

import (
	"context"

	"tasktracker/pkg/domain"
)

var _ domain.Manager = (*Decorator)(nil)

// CommitFunc persists the state of the wrapped manager.
type CommitFunc func(ctx context.Context) error

// Decorator forwards reads to the wrapped manager untouched and calls commit
// after each mutating call that returned no error. Rejections and malformed
// input leave the state unchanged, so they are not persisted.
type Decorator struct {
	domain.Manager
	commit CommitFunc
}

// Decorate wraps inner with commit.
func Decorate(inner domain.Manager, commit CommitFunc) *Decorator {
	return &Decorator{Manager: inner, commit: commit}
}

// Inner returns the wrapped manager.
func (d *Decorator) Inner() domain.Manager { return d.Manager }

// Committer is implemented by managers that can persist on demand.
type Committer interface {
	Commit(ctx context.Context) error
}

// Commit persists the current state through every layer, innermost first.
// Reads never persist on their own; callers that want lookups recorded in
// the durable history call Commit afterwards.
func (d *Decorator) Commit(ctx context.Context) error {
	if inner, ok := d.Manager.(Committer); ok {
		if err := inner.Commit(ctx); err != nil {
			return err
		}
	}
	return d.commit(ctx)
}

func (d *Decorator) after(ctx context.Context, err error) error {
	if err != nil {
		return err
	}
	return d.commit(ctx)
}

func (d *Decorator) ClearTasks(ctx context.Context) error {
	return d.after(ctx, d.Manager.ClearTasks(ctx))
}

func (d *Decorator) AddTask(ctx context.Context, task *domain.Task) (domain.Task, error) {
	out, err := d.Manager.AddTask(ctx, task)
	return out, d.after(ctx, err)
}

func (d *Decorator) UpdateTask(ctx context.Context, task *domain.Task) (domain.Task, error) {
	out, err := d.Manager.UpdateTask(ctx, task)
	return out, d.after(ctx, err)
}

func (d *Decorator) RemoveTask(ctx context.Context, id int64) (domain.Task, error) {
	out, err := d.Manager.RemoveTask(ctx, id)
	return out, d.after(ctx, err)
}

func (d *Decorator) ClearEpics(ctx context.Context) error {
	return d.after(ctx, d.Manager.ClearEpics(ctx))
}

func (d *Decorator) AddEpic(ctx context.Context, epic *domain.Epic) (domain.Epic, error) {
	out, err := d.Manager.AddEpic(ctx, epic)
	return out, d.after(ctx, err)
}

func (d *Decorator) UpdateEpic(ctx context.Context, epic *domain.Epic) (domain.Epic, error) {
	out, err := d.Manager.UpdateEpic(ctx, epic)
	return out, d.after(ctx, err)
}

func (d *Decorator) RemoveEpic(ctx context.Context, id int64) (domain.Epic, error) {
	out, err := d.Manager.RemoveEpic(ctx, id)
	return out, d.after(ctx, err)
}

func (d *Decorator) ClearSubtasks(ctx context.Context) error {
	return d.after(ctx, d.Manager.ClearSubtasks(ctx))
}

func (d *Decorator) AddSubtask(ctx context.Context, subtask *domain.Subtask) (domain.Subtask, error) {
	out, err := d.Manager.AddSubtask(ctx, subtask)
	return out, d.after(ctx, err)
}

func (d *Decorator) UpdateSubtask(ctx context.Context, subtask *domain.Subtask) (domain.Subtask, error) {
	out, err := d.Manager.UpdateSubtask(ctx, subtask)
	return out, d.after(ctx, err)
}

func (d *Decorator) RemoveSubtask(ctx context.Context, id int64) (domain.Subtask, error) {
	out, err := d.Manager.RemoveSubtask(ctx, id)
	return out, d.after(ctx, err)
}
