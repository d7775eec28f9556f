package domain

import "context"

// Manager is the CRUD contract implemented by the in-memory store and by
// every persistence decorator wrapping it. Read methods never persist; the
// lookups still record the item in the recently viewed history.
//
// Mutating methods return ErrNotFound or ErrOverlap when the call is rejected
// (state unchanged), ErrMalformed for structurally invalid input, and
// ErrSave when a persistence layer failed after the in-memory commit.
type Manager interface {
	Tasks() []Task
	ClearTasks(ctx context.Context) error
	Task(id int64) (Task, bool)
	AddTask(ctx context.Context, task *Task) (Task, error)
	UpdateTask(ctx context.Context, task *Task) (Task, error)
	RemoveTask(ctx context.Context, id int64) (Task, error)

	Epics() []Epic
	ClearEpics(ctx context.Context) error
	Epic(id int64) (Epic, bool)
	AddEpic(ctx context.Context, epic *Epic) (Epic, error)
	UpdateEpic(ctx context.Context, epic *Epic) (Epic, error)
	RemoveEpic(ctx context.Context, id int64) (Epic, error)

	Subtasks() []Subtask
	ClearSubtasks(ctx context.Context) error
	Subtask(id int64) (Subtask, bool)
	AddSubtask(ctx context.Context, subtask *Subtask) (Subtask, error)
	UpdateSubtask(ctx context.Context, subtask *Subtask) (Subtask, error)
	RemoveSubtask(ctx context.Context, id int64) (Subtask, error)

	// EpicSubtasks lists the subtasks of an epic in insertion order. ok is
	// false when the epic does not exist.
	EpicSubtasks(epicID int64) (subtasks []Subtask, ok bool)
	// History returns the recently viewed items, most recent first.
	History() []Entity
	// Prioritized returns tasks and subtasks ordered by start time.
	Prioritized() []Schedulable
	// ExportState captures the full state for persistence layers.
	ExportState() Snapshot
}

// Snapshot is a point-in-time copy of the manager state. Slices are ordered
// by identifier; History lists identifiers most recent first.
type Snapshot struct {
	Tasks    []Task    `json:"tasks"`
	Epics    []Epic    `json:"epics"`
	Subtasks []Subtask `json:"subtasks"`
	History  []int64   `json:"history"`
}
