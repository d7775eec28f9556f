// Package domain defines the work items tracked by tasktracker, the manager
// contract shared by every persistence layer, and the error taxonomy callers
// inspect with errors.Is.
package domain

import (
	"fmt"
	"slices"
	"time"
)

// Kind identifies the concrete type of a stored work item. The string value is
// the discriminant written by the line codec.
type Kind string

// Supported work item kinds.
const (
	// KindTask identifies a standalone schedulable task.
	KindTask Kind = "TASK"
	// KindEpic identifies a container of subtasks.
	KindEpic Kind = "EPIC"
	// KindSubtask identifies a schedulable item owned by an epic.
	KindSubtask Kind = "SUBTASK"
)

// ParseKind converts a discriminant back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTask, KindEpic, KindSubtask:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrMalformed, s)
	}
}

// Status captures the lifecycle position of a work item.
type Status string

// Lifecycle statuses.
const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// ParseStatus converts a persisted status value back into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNew, StatusInProgress, StatusDone:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrMalformed, s)
	}
}

// Valid reports whether s is one of the known statuses. The empty status is
// accepted by the store and treated as NEW.
func (s Status) Valid() bool {
	switch s {
	case "", StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Entity is implemented by Task, Epic and Subtask.
type Entity interface {
	EntityID() int64
	Kind() Kind
}

// Schedulable is implemented by the items that own a time slot: Task and
// Subtask. Epics derive their schedule and are never indexed directly.
type Schedulable interface {
	Entity
	Start() time.Time
	End() time.Time
}

// Task is a leaf schedulable item whose status is set freely by the caller.
type Task struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
}

// NewTask returns an unsaved task with status NEW.
func NewTask(name, description string, start time.Time, duration time.Duration) *Task {
	return &Task{Name: name, Description: description, Status: StatusNew, StartTime: start, Duration: duration}
}

// EntityID implements Entity.
func (t Task) EntityID() int64 { return t.ID }

// Kind implements Entity.
func (Task) Kind() Kind { return KindTask }

// Start implements Schedulable.
func (t Task) Start() time.Time { return t.StartTime }

// End implements Schedulable.
func (t Task) End() time.Time { return t.StartTime.Add(t.Duration) }

// Equal compares identity and the user-visible fields.
func (t Task) Equal(o Task) bool {
	return t.ID == o.ID && t.Name == o.Name && t.Description == o.Description && t.Status == o.Status
}

func (t Task) String() string {
	return fmt.Sprintf("Task{id=%d, name=%q, description=%q, status=%s}", t.ID, t.Name, t.Description, t.Status)
}

// Epic groups subtasks. Status and schedule are derived from the subtasks and
// are recomputed by the store; values supplied by callers are ignored.
type Epic struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      Status  `json:"status"`
	SubtaskIDs  []int64 `json:"subtask_ids"`

	// Derived schedule. StartTime and EndTime are zero when the epic is empty.
	StartTime time.Time     `json:"start_time,omitzero"`
	Duration  time.Duration `json:"duration"`
	EndTime   time.Time     `json:"end_time,omitzero"`
}

// NewEpic returns an unsaved, empty epic.
func NewEpic(name, description string) *Epic {
	return &Epic{Name: name, Description: description, Status: StatusNew}
}

// EntityID implements Entity.
func (e Epic) EntityID() int64 { return e.ID }

// Kind implements Entity.
func (Epic) Kind() Kind { return KindEpic }

// Start returns the earliest subtask start; ok is false for an empty epic.
func (e Epic) Start() (time.Time, bool) { return e.StartTime, len(e.SubtaskIDs) > 0 }

// End returns the latest subtask end; ok is false for an empty epic.
func (e Epic) End() (time.Time, bool) { return e.EndTime, len(e.SubtaskIDs) > 0 }

// Equal compares the identifier and the set of subtask identifiers; order is
// ignored.
func (e Epic) Equal(o Epic) bool {
	if e.ID != o.ID || len(e.SubtaskIDs) != len(o.SubtaskIDs) {
		return false
	}
	a, b := slices.Clone(e.SubtaskIDs), slices.Clone(o.SubtaskIDs)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func (e Epic) String() string {
	return fmt.Sprintf("Epic{id=%d, name=%q, description=%q, status=%s}", e.ID, e.Name, e.Description, e.Status)
}

// Clone returns a deep copy of the epic.
func (e Epic) Clone() Epic {
	cp := e
	cp.SubtaskIDs = slices.Clone(e.SubtaskIDs)
	return cp
}

// Subtask is a schedulable item belonging to exactly one epic.
type Subtask struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      Status        `json:"status"`
	EpicID      int64         `json:"epic_id"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
}

// NewSubtask returns an unsaved subtask linked to the given epic id. The
// store appends it to the epic when the subtask is accepted.
func NewSubtask(name, description string, epicID int64, start time.Time, duration time.Duration) *Subtask {
	return &Subtask{Name: name, Description: description, Status: StatusNew, EpicID: epicID, StartTime: start, Duration: duration}
}

// EntityID implements Entity.
func (s Subtask) EntityID() int64 { return s.ID }

// Kind implements Entity.
func (Subtask) Kind() Kind { return KindSubtask }

// Start implements Schedulable.
func (s Subtask) Start() time.Time { return s.StartTime }

// End implements Schedulable.
func (s Subtask) End() time.Time { return s.StartTime.Add(s.Duration) }

// Equal compares identity, user-visible fields and the parent epic.
func (s Subtask) Equal(o Subtask) bool {
	return s.ID == o.ID && s.Name == o.Name && s.Description == o.Description &&
		s.Status == o.Status && s.EpicID == o.EpicID
}

func (s Subtask) String() string {
	return fmt.Sprintf("Subtask{id=%d, name=%q, description=%q, status=%s, epic=%d}", s.ID, s.Name, s.Description, s.Status, s.EpicID)
}

// Overlaps reports whether the half-open intervals [a.Start, a.End) and
// [b.Start, b.End) intersect.
func Overlaps(a, b Schedulable) bool {
	return a.Start().Before(b.End()) && b.Start().Before(a.End())
}

// EpicStatus derives an epic status from its subtask statuses. Rules are
// evaluated in order: empty, all NEW, all DONE, otherwise IN_PROGRESS.
func EpicStatus(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusNew
	}
	allNew, allDone := true, true
	for _, st := range statuses {
		if st != StatusNew && st != "" {
			allNew = false
		}
		if st != StatusDone {
			allDone = false
		}
	}
	switch {
	case allNew:
		return StatusNew
	case allDone:
		return StatusDone
	default:
		return StatusInProgress
	}
}
