package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tasktracker/internal/codec"
	"tasktracker/pkg/domain"
)

// itemFlags holds the editable fields shared by the add and update commands.
// Only flags the user actually set are applied.
type itemFlags struct {
	name     string
	desc     string
	status   string
	start    string
	duration time.Duration
	epic     int64
}

func (f *itemFlags) bind(cmd *cobra.Command, schedulable bool) {
	cmd.Flags().StringVar(&f.name, "name", "", "item name")
	cmd.Flags().StringVar(&f.desc, "desc", "", "item description")
	if !schedulable {
		return
	}
	cmd.Flags().StringVar(&f.status, "status", "", "status (NEW, IN_PROGRESS, DONE)")
	cmd.Flags().StringVar(&f.start, "start", "", "start time, RFC 3339 (default now)")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "duration, e.g. 1h30m")
}

func (f *itemFlags) text(cmd *cobra.Command, name, desc *string) {
	if cmd.Flags().Changed("name") {
		*name = f.name
	}
	if cmd.Flags().Changed("desc") {
		*desc = f.desc
	}
}

func (f *itemFlags) slot(cmd *cobra.Command, status *domain.Status, start *time.Time, duration *time.Duration) error {
	if cmd.Flags().Changed("status") {
		st, err := domain.ParseStatus(strings.ToUpper(f.status))
		if err != nil {
			return err
		}
		*status = st
	}
	if cmd.Flags().Changed("start") {
		ts, err := time.Parse(time.RFC3339, f.start)
		if err != nil {
			return fmt.Errorf("%w: start %q: %w", domain.ErrMalformed, f.start, err)
		}
		*start = ts
	}
	if cmd.Flags().Changed("duration") {
		*duration = f.duration
	}
	return nil
}

func (a *app) defaultStart() time.Time { return a.now().UTC().Truncate(time.Second) }

func taskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage standalone tasks"}

	var add itemFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task; rejected when it overlaps a scheduled item",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			t := domain.NewTask("", "", a.defaultStart(), 0)
			add.text(c, &t.Name, &t.Description)
			if err := add.slot(c, &t.Status, &t.StartTime, &t.Duration); err != nil {
				return err
			}
			saved, err := a.manager.AddTask(c.Context(), t)
			if err != nil {
				return err
			}
			a.println(codec.EncodeTask(saved))
			return nil
		},
	}
	add.bind(addCmd, true)

	var upd itemFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the fields given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			t, ok := a.manager.Task(id)
			if !ok {
				return domain.NotFound(domain.KindTask, id)
			}
			upd.text(c, &t.Name, &t.Description)
			if err := upd.slot(c, &t.Status, &t.StartTime, &t.Duration); err != nil {
				return err
			}
			saved, err := a.manager.UpdateTask(c.Context(), &t)
			if err != nil {
				return err
			}
			a.println(codec.EncodeTask(saved))
			return nil
		},
	}
	upd.bind(updateCmd, true)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tasks",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				for _, t := range a.manager.Tasks() {
					a.println(codec.EncodeTask(t))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show a task and record the lookup in history",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				t, ok := a.manager.Task(id)
				if !ok {
					return domain.NotFound(domain.KindTask, id)
				}
				a.println(codec.EncodeTask(t))
				return a.commit(c.Context())
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a task",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				removed, err := a.manager.RemoveTask(c.Context(), id)
				if err != nil {
					return err
				}
				a.println(codec.EncodeTask(removed))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every task",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return a.manager.ClearTasks(c.Context())
			},
		},
		addCmd,
		updateCmd,
	)
	return cmd
}

func epicCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "epic", Short: "Manage epics; status and schedule follow their subtasks"}

	var add itemFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an empty epic",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			e := domain.NewEpic("", "")
			add.text(c, &e.Name, &e.Description)
			saved, err := a.manager.AddEpic(c.Context(), e)
			if err != nil {
				return err
			}
			a.println(codec.EncodeEpic(saved))
			return nil
		},
	}
	add.bind(addCmd, false)

	var upd itemFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or redescribe an epic",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, ok := a.manager.Epic(id)
			if !ok {
				return domain.NotFound(domain.KindEpic, id)
			}
			upd.text(c, &e.Name, &e.Description)
			saved, err := a.manager.UpdateEpic(c.Context(), &e)
			if err != nil {
				return err
			}
			a.println(codec.EncodeEpic(saved))
			return nil
		},
	}
	upd.bind(updateCmd, false)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List epics",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				for _, e := range a.manager.Epics() {
					a.println(codec.EncodeEpic(e))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show an epic and record the lookup in history",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				e, ok := a.manager.Epic(id)
				if !ok {
					return domain.NotFound(domain.KindEpic, id)
				}
				a.println(codec.EncodeEpic(e))
				return a.commit(c.Context())
			},
		},
		&cobra.Command{
			Use:   "subtasks <id>",
			Short: "List the subtasks of an epic",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				subs, ok := a.manager.EpicSubtasks(id)
				if !ok {
					return domain.NotFound(domain.KindEpic, id)
				}
				for _, st := range subs {
					a.println(codec.EncodeSubtask(st))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove an epic and its subtasks",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				removed, err := a.manager.RemoveEpic(c.Context(), id)
				if err != nil {
					return err
				}
				a.println(codec.EncodeEpic(removed))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every epic and subtask",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return a.manager.ClearEpics(c.Context())
			},
		},
		addCmd,
		updateCmd,
	)
	return cmd
}

func subtaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "subtask", Short: "Manage subtasks of epics"}

	var add itemFlags
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a subtask to --epic; rejected when it overlaps a scheduled item",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			st := domain.NewSubtask("", "", add.epic, a.defaultStart(), 0)
			add.text(c, &st.Name, &st.Description)
			if err := add.slot(c, &st.Status, &st.StartTime, &st.Duration); err != nil {
				return err
			}
			saved, err := a.manager.AddSubtask(c.Context(), st)
			if err != nil {
				return err
			}
			a.println(codec.EncodeSubtask(saved))
			return nil
		},
	}
	add.bind(addCmd, true)
	addCmd.Flags().Int64Var(&add.epic, "epic", 0, "parent epic id")
	_ = addCmd.MarkFlagRequired("epic")

	var upd itemFlags
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the fields given as flags; --epic moves the subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, ok := a.manager.Subtask(id)
			if !ok {
				return domain.NotFound(domain.KindSubtask, id)
			}
			upd.text(c, &st.Name, &st.Description)
			if err := upd.slot(c, &st.Status, &st.StartTime, &st.Duration); err != nil {
				return err
			}
			if c.Flags().Changed("epic") {
				st.EpicID = upd.epic
			}
			saved, err := a.manager.UpdateSubtask(c.Context(), &st)
			if err != nil {
				return err
			}
			a.println(codec.EncodeSubtask(saved))
			return nil
		},
	}
	upd.bind(updateCmd, true)
	updateCmd.Flags().Int64Var(&upd.epic, "epic", 0, "move to this epic")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List subtasks",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				for _, st := range a.manager.Subtasks() {
					a.println(codec.EncodeSubtask(st))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show a subtask and record the lookup in history",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				st, ok := a.manager.Subtask(id)
				if !ok {
					return domain.NotFound(domain.KindSubtask, id)
				}
				a.println(codec.EncodeSubtask(st))
				return a.commit(c.Context())
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a subtask",
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				removed, err := a.manager.RemoveSubtask(c.Context(), id)
				if err != nil {
					return err
				}
				a.println(codec.EncodeSubtask(removed))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every subtask",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				return a.manager.ClearSubtasks(c.Context())
			},
		},
		addCmd,
		updateCmd,
	)
	return cmd
}
