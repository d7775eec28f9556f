package core

import (
	"context"
	"time"

	"tasktracker/pkg/domain"
)

var _ domain.Manager = (*Instrumented)(nil)

// Instrumented wraps a manager with logging, metrics and tracing of every
// mutating call. Reads pass through untouched.
type Instrumented struct {
	domain.Manager
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// Option customizes an Instrumented manager.
type Option func(*Instrumented)

// WithLogger sets the operation logger.
func WithLogger(l Logger) Option {
	return func(m *Instrumented) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(r MetricsRecorder) Option {
	return func(m *Instrumented) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(t Tracer) Option {
	return func(m *Instrumented) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithClock replaces time.Now for duration measurement.
func WithClock(now func() time.Time) Option {
	return func(m *Instrumented) {
		if now != nil {
			m.now = now
		}
	}
}

// Instrument wraps inner.
func Instrument(inner domain.Manager, opts ...Option) *Instrumented {
	m := &Instrumented{
		Manager: inner,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

// observe runs fn as operation op. Rejections count as successful calls:
// the manager answered and nothing broke.
func (m *Instrumented) observe(ctx context.Context, op string, id func() int64, fn func(context.Context) error) error {
	ctx, span := m.tracer.Start(ctx, op)
	start := m.now()
	err := fn(ctx)
	elapsed := m.now().Sub(start)
	span.End(err)
	m.metrics.Observe(ctx, op, err == nil || domain.IsRejection(err), elapsed)

	args := []any{"op", op, "duration", elapsed}
	if id != nil {
		args = append(args, "id", id())
	}
	switch status := statusLabel(err); status {
	case "success":
		m.logger.Debug("manager operation", args...)
	case "rejected":
		m.logger.Info("manager operation rejected", append(args, "err", err)...)
	default:
		m.logger.Error("manager operation failed", append(args, "err", err)...)
	}
	return err
}

func (m *Instrumented) ClearTasks(ctx context.Context) error {
	return m.observe(ctx, "clear_tasks", nil, m.Manager.ClearTasks)
}

func (m *Instrumented) AddTask(ctx context.Context, task *domain.Task) (out domain.Task, err error) {
	err = m.observe(ctx, "add_task", func() int64 { return out.ID }, func(ctx context.Context) error {
		out, err = m.Manager.AddTask(ctx, task)
		return err
	})
	return out, err
}

func (m *Instrumented) UpdateTask(ctx context.Context, task *domain.Task) (out domain.Task, err error) {
	err = m.observe(ctx, "update_task", func() int64 { return out.ID }, func(ctx context.Context) error {
		out, err = m.Manager.UpdateTask(ctx, task)
		return err
	})
	return out, err
}

func (m *Instrumented) RemoveTask(ctx context.Context, id int64) (out domain.Task, err error) {
	err = m.observe(ctx, "remove_task", func() int64 { return id }, func(ctx context.Context) error {
		out, err = m.Manager.RemoveTask(ctx, id)
		return err
	})
	return out, err
}

func (m *Instrumented) ClearEpics(ctx context.Context) error {
	return m.observe(ctx, "clear_epics", nil, m.Manager.ClearEpics)
}

func (m *Instrumented) AddEpic(ctx context.Context, epic *domain.Epic) (out domain.Epic, err error) {
	err = m.observe(ctx, "add_epic", func() int64 { return out.ID }, func(ctx context.Context) error {
		out, err = m.Manager.AddEpic(ctx, epic)
		return err
	})
	return out, err
}

func (m *Instrumented) UpdateEpic(ctx context.Context, epic *domain.Epic) (out domain.Epic, err error) {
	err = m.observe(ctx, "update_epic", func() int64 { return out.ID }, func(ctx context.Context) error {
		out, err = m.Manager.UpdateEpic(ctx, epic)
		return err
	})
	return out, err
}

func (m *Instrumented) RemoveEpic(ctx context.Context, id int64) (out domain.Epic, err error) {
	err = m.observe(ctx, "remove_epic", func() int64 { return id }, func(ctx context.Context) error {
		out, err = m.Manager.RemoveEpic(ctx, id)
		return err
	})
	return out, err
}

func (m *Instrumented) ClearSubtasks(ctx context.Context) error {
	return m.observe(ctx, "clear_subtasks", nil, m.Manager.ClearSubtasks)
}

func (m *Instrumented) AddSubtask(ctx context.Context, subtask *domain.Subtask) (out domain.Subtask, err error) {
	err = m.observe(ctx, "add_subtask", func() int64 { return out.ID }, func(ctx context.Context) error {
		out, err = m.Manager.AddSubtask(ctx, subtask)
		return err
	})
	return out, err
}

func (m *Instrumented) UpdateSubtask(ctx context.Context, subtask *domain.Subtask) (out domain.Subtask, err error) {
	err = m.observe(ctx, "update_subtask", func() int64 { return out.ID }, func(ctx context.Context) error {
		out, err = m.Manager.UpdateSubtask(ctx, subtask)
		return err
	})
	return out, err
}

func (m *Instrumented) RemoveSubtask(ctx context.Context, id int64) (out domain.Subtask, err error) {
	err = m.observe(ctx, "remove_subtask", func() int64 { return id }, func(ctx context.Context) error {
		out, err = m.Manager.RemoveSubtask(ctx, id)
		return err
	})
	return out, err
}
