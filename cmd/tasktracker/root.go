package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tasktracker/internal/codec"
	"tasktracker/internal/config"
	"tasktracker/internal/core"
	"tasktracker/internal/infra/persistence"
	"tasktracker/pkg/domain"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg     config.Config
	out     io.Writer
	errOut  io.Writer
	now     func() time.Time
	raw     domain.Manager
	manager domain.Manager
	closer  io.Closer
	tel     *telemetry
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{cfg: config.Load(), out: out, errOut: errOut, now: time.Now}
	root := &cobra.Command{
		Use:     "tasktracker",
		Short:   "Track tasks, epics and subtasks",
		Version: Version,
		Long: `Track tasks, epics and subtasks with schedule conflict detection.

Examples:
  tasktracker task add --name "write docs" --start 2024-05-01T09:00:00Z --duration 2h
  tasktracker epic add --name release
  tasktracker subtask add --epic 2 --name tag --start 2024-05-02T09:00:00Z --duration 30m
  tasktracker prioritized
  tasktracker --driver remote --kv-url http://localhost:8078 task list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.cfg.StorageDriver, "driver", a.cfg.StorageDriver, "storage driver (memory, file, remote)")
	f.StringVar(&a.cfg.FilePath, "file", a.cfg.FilePath, "state file path")
	f.IntVar(&a.cfg.HistoryCapacity, "history", a.cfg.HistoryCapacity, "recently viewed history capacity")
	f.StringVar(&a.cfg.KV.Driver, "kv-driver", a.cfg.KV.Driver, "kv backend for remote storage (http, memory, redis, s3, sqlite, postgres)")
	f.StringVar(&a.cfg.KV.URL, "kv-url", a.cfg.KV.URL, "kv service base url")
	f.StringVar(&a.cfg.KV.Key, "key", a.cfg.KV.Key, "kv key holding the state")
	f.StringVar(&a.cfg.KV.Token, "token", a.cfg.KV.Token, "reuse an issued kv token instead of registering")
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&a.cfg.Metrics, "metrics", a.cfg.Metrics, "print operation metrics on exit (prometheus, expvar, comma separated)")
	f.StringVar(&a.cfg.TraceFile, "trace", a.cfg.TraceFile, "append one JSON span per operation to this file")

	root.AddCommand(taskCmd(a), epicCmd(a), subtaskCmd(a), historyCmd(a), prioritizedCmd(a))
	closeOnError(a, root)
	return root
}

// closeOnError makes failing commands release the store and flush telemetry;
// cobra skips PersistentPostRunE when RunE returns an error.
func closeOnError(a *app, cmd *cobra.Command) {
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) error {
			err := run(c, args)
			if err == nil {
				return nil
			}
			if cerr := a.close(); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
	}
	for _, sub := range cmd.Commands() {
		closeOnError(a, sub)
	}
}

func (a *app) open(ctx context.Context) error {
	logger := slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: a.cfg.Level()}))
	tel, err := newTelemetry(a.cfg.Metrics, a.cfg.TraceFile)
	if err != nil {
		return err
	}
	m, closer, err := core.OpenManager(ctx, a.cfg, logger)
	if err != nil {
		return errors.Join(err, tel.flush(io.Discard))
	}
	a.raw, a.closer, a.tel = m, closer, tel
	a.manager = core.Instrument(m, append([]core.Option{core.WithLogger(logger)}, tel.opts...)...)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.tel != nil {
		errs = append(errs, a.tel.flush(a.errOut))
	}
	if a.closer != nil {
		errs = append(errs, a.closer.Close())
	}
	return errors.Join(errs...)
}

// commit persists lookups so the history survives between invocations.
func (a *app) commit(ctx context.Context) error {
	if c, ok := a.raw.(persistence.Committer); ok {
		return c.Commit(ctx)
	}
	return nil
}

func (a *app) println(line string) {
	fmt.Fprintln(a.out, line)
}

func (a *app) printEntity(e domain.Entity) {
	switch v := e.(type) {
	case domain.Task:
		a.println(codec.EncodeTask(v))
	case domain.Epic:
		a.println(codec.EncodeEpic(v))
	case domain.Subtask:
		a.println(codec.EncodeSubtask(v))
	}
}

func historyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show recently viewed items, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, e := range a.manager.History() {
				a.printEntity(e)
			}
			return nil
		},
	}
}

func prioritizedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prioritized",
		Short: "List tasks and subtasks by start time",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, item := range a.manager.Prioritized() {
				a.printEntity(item)
			}
			return nil
		},
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
