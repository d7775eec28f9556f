// Package memory provides the in-memory task manager: the entity maps, the
// time-ordered schedule index and the recently viewed history. Persistence
// decorators wrap it to add durability.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"tasktracker/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store satisfies the manager contract.
var _ domain.Manager = (*Store)(nil)

// Store owns every task, epic and subtask by identifier. It is not safe for
// concurrent use; callers sharing a store must serialize access.
type Store struct {
	ids      IDGenerator
	history  *RecencyList
	tasks    map[int64]*domain.Task
	epics    map[int64]*domain.Epic
	subtasks map[int64]*domain.Subtask
	schedule timeIndex
}

// Option customizes a Store.
type Option func(*Store)

// WithIDGenerator replaces the default sequential generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.ids = gen
		}
	}
}

// WithHistoryCapacity bounds the recently viewed list.
func WithHistoryCapacity(capacity int) Option {
	return func(s *Store) { s.history = NewRecencyList(capacity) }
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		ids:      NewSequentialIDGenerator(),
		history:  NewRecencyList(DefaultHistoryCapacity),
		tasks:    make(map[int64]*domain.Task),
		epics:    make(map[int64]*domain.Epic),
		subtasks: make(map[int64]*domain.Subtask),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tasks lists every task in insertion order.
func (s *Store) Tasks() []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, id := range slices.Sorted(maps.Keys(s.tasks)) {
		out = append(out, *s.tasks[id])
	}
	return out
}

// ClearTasks removes every task.
func (s *Store) ClearTasks(context.Context) error {
	for id, t := range s.tasks {
		s.schedule.remove(entryOf(t))
		s.history.Remove(id)
	}
	clear(s.tasks)
	return nil
}

// Task returns the task and records the lookup in the history.
func (s *Store) Task(id int64) (domain.Task, bool) {
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	s.history.Touch(t)
	return *t, true
}

// AddTask stores a new task and assigns its identifier.
func (s *Store) AddTask(_ context.Context, task *domain.Task) (domain.Task, error) {
	if err := validateTask(task); err != nil {
		return domain.Task{}, err
	}
	if err := s.checkSlot(task); err != nil {
		return domain.Task{}, err
	}
	stored := *task
	stored.ID = s.ids.NextID()
	stored.Status = normalizeStatus(stored.Status)
	s.tasks[stored.ID] = &stored
	s.schedule.insert(entryOf(&stored))
	task.ID = stored.ID
	return stored, nil
}

// UpdateTask replaces a stored task, keeping the previous version when the
// new interval collides with another item.
func (s *Store) UpdateTask(_ context.Context, task *domain.Task) (domain.Task, error) {
	if err := validateTask(task); err != nil {
		return domain.Task{}, err
	}
	current, ok := s.tasks[task.ID]
	if !ok {
		return domain.Task{}, domain.NotFound(domain.KindTask, task.ID)
	}
	s.schedule.remove(entryOf(current))
	if err := s.checkSlot(task); err != nil {
		s.schedule.insert(entryOf(current))
		return domain.Task{}, err
	}
	*current = *task
	current.Status = normalizeStatus(current.Status)
	s.schedule.insert(entryOf(current))
	return *current, nil
}

// RemoveTask deletes a task.
func (s *Store) RemoveTask(_ context.Context, id int64) (domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.NotFound(domain.KindTask, id)
	}
	s.history.Remove(id)
	delete(s.tasks, id)
	s.schedule.remove(entryOf(t))
	return *t, nil
}

// Epics lists every epic in insertion order.
func (s *Store) Epics() []domain.Epic {
	out := make([]domain.Epic, 0, len(s.epics))
	for _, id := range slices.Sorted(maps.Keys(s.epics)) {
		out = append(out, s.epics[id].Clone())
	}
	return out
}

// ClearEpics removes every epic and, with them, every subtask.
func (s *Store) ClearEpics(ctx context.Context) error {
	if err := s.ClearSubtasks(ctx); err != nil {
		return err
	}
	for id := range s.epics {
		s.history.Remove(id)
	}
	clear(s.epics)
	return nil
}

// Epic returns the epic and records the lookup in the history: every subtask
// of the epic in membership order, then the epic itself.
func (s *Store) Epic(id int64) (domain.Epic, bool) {
	e, ok := s.epics[id]
	if !ok {
		return domain.Epic{}, false
	}
	for _, sid := range e.SubtaskIDs {
		if st, ok := s.subtasks[sid]; ok {
			s.history.Touch(st)
		}
	}
	s.history.Touch(e)
	return e.Clone(), true
}

// AddEpic stores a new, empty epic. Subtasks join it through AddSubtask.
func (s *Store) AddEpic(_ context.Context, epic *domain.Epic) (domain.Epic, error) {
	if epic == nil {
		return domain.Epic{}, fmt.Errorf("%w: nil epic", domain.ErrMalformed)
	}
	stored := &domain.Epic{ID: s.ids.NextID(), Name: epic.Name, Description: epic.Description}
	s.refreshEpic(stored)
	s.epics[stored.ID] = stored
	epic.ID = stored.ID
	epic.Status = stored.Status
	return stored.Clone(), nil
}

// UpdateEpic replaces the epic's name and description and re-derives its
// status. Status and subtask membership supplied by the caller are ignored.
func (s *Store) UpdateEpic(_ context.Context, epic *domain.Epic) (domain.Epic, error) {
	if epic == nil {
		return domain.Epic{}, fmt.Errorf("%w: nil epic", domain.ErrMalformed)
	}
	current, ok := s.epics[epic.ID]
	if !ok {
		return domain.Epic{}, domain.NotFound(domain.KindEpic, epic.ID)
	}
	current.Name = epic.Name
	current.Description = epic.Description
	s.refreshEpic(current)
	return current.Clone(), nil
}

// RemoveEpic deletes an epic after removing each of its subtasks. The
// returned epic reflects the state before the cascade.
func (s *Store) RemoveEpic(_ context.Context, id int64) (domain.Epic, error) {
	e, ok := s.epics[id]
	if !ok {
		return domain.Epic{}, domain.NotFound(domain.KindEpic, id)
	}
	removed := e.Clone()
	s.history.Remove(id)
	for len(e.SubtaskIDs) > 0 {
		s.removeSubtask(e.SubtaskIDs[len(e.SubtaskIDs)-1])
	}
	delete(s.epics, id)
	return removed, nil
}

// Subtasks lists every subtask in insertion order.
func (s *Store) Subtasks() []domain.Subtask {
	out := make([]domain.Subtask, 0, len(s.subtasks))
	for _, id := range slices.Sorted(maps.Keys(s.subtasks)) {
		out = append(out, *s.subtasks[id])
	}
	return out
}

// ClearSubtasks removes every subtask and resets every epic to empty/NEW.
func (s *Store) ClearSubtasks(context.Context) error {
	for id, st := range s.subtasks {
		s.schedule.remove(entryOf(st))
		s.history.Remove(id)
	}
	clear(s.subtasks)
	for _, e := range s.epics {
		e.SubtaskIDs = nil
		s.refreshEpic(e)
	}
	return nil
}

// Subtask returns the subtask and records the lookup in the history.
func (s *Store) Subtask(id int64) (domain.Subtask, bool) {
	st, ok := s.subtasks[id]
	if !ok {
		return domain.Subtask{}, false
	}
	s.history.Touch(st)
	return *st, true
}

// AddSubtask stores a new subtask, appends it to its epic and re-derives the
// epic status.
func (s *Store) AddSubtask(_ context.Context, subtask *domain.Subtask) (domain.Subtask, error) {
	if err := validateSubtask(subtask); err != nil {
		return domain.Subtask{}, err
	}
	epic, ok := s.epics[subtask.EpicID]
	if !ok {
		return domain.Subtask{}, domain.NotFound(domain.KindEpic, subtask.EpicID)
	}
	if err := s.checkSlot(subtask); err != nil {
		return domain.Subtask{}, err
	}
	stored := *subtask
	stored.ID = s.ids.NextID()
	stored.Status = normalizeStatus(stored.Status)
	s.subtasks[stored.ID] = &stored
	s.schedule.insert(entryOf(&stored))
	epic.SubtaskIDs = append(epic.SubtaskIDs, stored.ID)
	s.refreshEpic(epic)
	subtask.ID = stored.ID
	return stored, nil
}

// UpdateSubtask replaces a stored subtask and re-derives the status of its
// epic. Changing EpicID moves the subtask to the other epic.
func (s *Store) UpdateSubtask(_ context.Context, subtask *domain.Subtask) (domain.Subtask, error) {
	if err := validateSubtask(subtask); err != nil {
		return domain.Subtask{}, err
	}
	current, ok := s.subtasks[subtask.ID]
	if !ok {
		return domain.Subtask{}, domain.NotFound(domain.KindSubtask, subtask.ID)
	}
	target, ok := s.epics[subtask.EpicID]
	if !ok {
		return domain.Subtask{}, domain.NotFound(domain.KindEpic, subtask.EpicID)
	}
	s.schedule.remove(entryOf(current))
	if err := s.checkSlot(subtask); err != nil {
		s.schedule.insert(entryOf(current))
		return domain.Subtask{}, err
	}
	previousEpic := current.EpicID
	*current = *subtask
	current.Status = normalizeStatus(current.Status)
	s.schedule.insert(entryOf(current))
	if previousEpic != current.EpicID {
		if old, ok := s.epics[previousEpic]; ok {
			s.detach(old, current.ID)
			s.refreshEpic(old)
		}
		target.SubtaskIDs = append(target.SubtaskIDs, current.ID)
	}
	s.refreshEpic(target)
	return *current, nil
}

// RemoveSubtask deletes a subtask and detaches it from its epic.
func (s *Store) RemoveSubtask(_ context.Context, id int64) (domain.Subtask, error) {
	st, ok := s.removeSubtask(id)
	if !ok {
		return domain.Subtask{}, domain.NotFound(domain.KindSubtask, id)
	}
	return st, nil
}

// EpicSubtasks lists the subtasks of an epic in insertion order.
func (s *Store) EpicSubtasks(epicID int64) ([]domain.Subtask, bool) {
	e, ok := s.epics[epicID]
	if !ok {
		return nil, false
	}
	out := make([]domain.Subtask, 0, len(e.SubtaskIDs))
	for _, id := range e.SubtaskIDs {
		out = append(out, *s.subtasks[id])
	}
	return out, true
}

// History returns copies of the recently viewed items, most recent first.
func (s *Store) History() []domain.Entity {
	held := s.history.Snapshot()
	out := make([]domain.Entity, 0, len(held))
	for _, e := range held {
		switch v := e.(type) {
		case *domain.Task:
			out = append(out, *v)
		case *domain.Epic:
			out = append(out, v.Clone())
		case *domain.Subtask:
			out = append(out, *v)
		}
	}
	return out
}

// Prioritized returns tasks and subtasks ordered by start time.
func (s *Store) Prioritized() []domain.Schedulable {
	ids := s.schedule.ids()
	out := make([]domain.Schedulable, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.tasks[id]; ok {
			out = append(out, *t)
			continue
		}
		if st, ok := s.subtasks[id]; ok {
			out = append(out, *st)
		}
	}
	return out
}

// ExportState captures the full state, history most recent first.
func (s *Store) ExportState() domain.Snapshot {
	return domain.Snapshot{
		Tasks:    s.Tasks(),
		Epics:    s.Epics(),
		Subtasks: s.Subtasks(),
		History:  s.history.IDs(),
	}
}

// ImportState replaces the store contents with a snapshot. Epic membership
// is rebuilt from the subtasks in snapshot order, the history is replayed
// oldest first so the most recent entry ends up in front, and the
// identifier generator is advanced past every restored identifier.
func (s *Store) ImportState(snapshot domain.Snapshot) error {
	tasks := make(map[int64]*domain.Task, len(snapshot.Tasks))
	epics := make(map[int64]*domain.Epic, len(snapshot.Epics))
	subtasks := make(map[int64]*domain.Subtask, len(snapshot.Subtasks))
	seen := make(map[int64]domain.Kind)
	claim := func(kind domain.Kind, id int64) error {
		if id <= 0 {
			return fmt.Errorf("%w: %s without identifier", domain.ErrMalformed, kind)
		}
		if prev, dup := seen[id]; dup {
			return fmt.Errorf("%w: identifier %d used by %s and %s", domain.ErrMalformed, id, prev, kind)
		}
		seen[id] = kind
		return nil
	}
	for _, t := range snapshot.Tasks {
		if err := claim(domain.KindTask, t.ID); err != nil {
			return err
		}
		t.Status = normalizeStatus(t.Status)
		tasks[t.ID] = &t
	}
	for _, e := range snapshot.Epics {
		if err := claim(domain.KindEpic, e.ID); err != nil {
			return err
		}
		cp := e.Clone()
		cp.SubtaskIDs = nil
		epics[e.ID] = &cp
	}
	for _, st := range snapshot.Subtasks {
		if err := claim(domain.KindSubtask, st.ID); err != nil {
			return err
		}
		parent, ok := epics[st.EpicID]
		if !ok {
			return fmt.Errorf("%w: subtask %d references unknown epic %d", domain.ErrMalformed, st.ID, st.EpicID)
		}
		st.Status = normalizeStatus(st.Status)
		subtasks[st.ID] = &st
		parent.SubtaskIDs = append(parent.SubtaskIDs, st.ID)
	}

	s.tasks, s.epics, s.subtasks = tasks, epics, subtasks
	s.history = NewRecencyList(s.history.Capacity())
	s.schedule.reset()
	for _, e := range s.epics {
		s.refreshEpic(e)
	}
	for i := len(snapshot.History) - 1; i >= 0; i-- {
		s.history.Touch(s.lookup(snapshot.History[i]))
	}
	for _, t := range s.tasks {
		s.schedule.insert(entryOf(t))
	}
	for _, st := range s.subtasks {
		s.schedule.insert(entryOf(st))
	}
	for id := range seen {
		s.ids.Observe(id)
	}
	return nil
}

func (s *Store) lookup(id int64) domain.Entity {
	if t, ok := s.tasks[id]; ok {
		return t
	}
	if e, ok := s.epics[id]; ok {
		return e
	}
	if st, ok := s.subtasks[id]; ok {
		return st
	}
	return nil
}

func (s *Store) removeSubtask(id int64) (domain.Subtask, bool) {
	st, ok := s.subtasks[id]
	if !ok {
		return domain.Subtask{}, false
	}
	s.history.Remove(id)
	delete(s.subtasks, id)
	s.schedule.remove(entryOf(st))
	if e, ok := s.epics[st.EpicID]; ok {
		s.detach(e, id)
		s.refreshEpic(e)
	}
	return *st, true
}

func (s *Store) detach(e *domain.Epic, subtaskID int64) {
	e.SubtaskIDs = slices.DeleteFunc(e.SubtaskIDs, func(id int64) bool { return id == subtaskID })
}

// refreshEpic re-derives status and schedule from the current subtasks.
func (s *Store) refreshEpic(e *domain.Epic) {
	statuses := make([]domain.Status, 0, len(e.SubtaskIDs))
	e.StartTime, e.EndTime, e.Duration = zeroTime, zeroTime, 0
	for i, id := range e.SubtaskIDs {
		st := s.subtasks[id]
		statuses = append(statuses, st.Status)
		e.Duration += st.Duration
		if i == 0 || st.StartTime.Before(e.StartTime) {
			e.StartTime = st.StartTime
		}
		if end := st.End(); i == 0 || end.After(e.EndTime) {
			e.EndTime = end
		}
	}
	e.Status = domain.EpicStatus(statuses)
}

func (s *Store) checkSlot(item domain.Schedulable) error {
	if other, clash := s.schedule.conflict(item.Start(), item.End()); clash {
		return fmt.Errorf("%s conflicts with item %d: %w", item.Kind(), other, domain.ErrOverlap)
	}
	return nil
}
