package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskpanel/internal/api"
	"taskpanel/internal/panel"
)

// taskFlags are the form inputs shared by add, edit and preview.
type taskFlags struct {
	name, script, typ, cron, start, end string
	disabled                            bool
}

func (f *taskFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.name, "name", "n", "", "task name")
	fs.StringVarP(&f.script, "script", "s", "", "script path (see `panelctl scripts`)")
	fs.StringVarP(&f.typ, "type", "t", "", "schedule type: cron or random")
	fs.StringVar(&f.cron, "cron", "", `cron expression, e.g. "0 3 * * *"`)
	fs.StringVar(&f.start, "start", "", "random window start (HH:MM)")
	fs.StringVar(&f.end, "end", "", "random window end (HH:MM)")
	fs.BoolVar(&f.disabled, "disabled", false, "create or leave the task disabled")
}

// apply copies the flags the operator actually set into form. Without
// --type, --cron selects cron and --start/--end select random.
func (f *taskFlags) apply(cmd *cobra.Command, form *panel.TaskForm) error {
	fs := cmd.Flags()
	if fs.Changed("name") {
		form.Name = f.name
	}
	if fs.Changed("script") {
		form.ScriptPath = f.script
	}
	hasCron := fs.Changed("cron")
	hasWindow := fs.Changed("start") || fs.Changed("end")
	if hasCron {
		form.CronExpression = f.cron
	}
	if fs.Changed("start") {
		form.RandomStart = f.start
	}
	if fs.Changed("end") {
		form.RandomEnd = f.end
	}
	switch {
	case fs.Changed("type"):
		st, err := api.ParseScheduleType(f.typ)
		if err != nil {
			return err
		}
		form.SetScheduleType(st)
	case hasCron && !hasWindow:
		form.SetScheduleType(api.ScheduleCron)
	case hasWindow && !hasCron:
		form.SetScheduleType(api.ScheduleRandom)
	}
	if fs.Changed("disabled") {
		form.Enabled = !f.disabled
	}
	return nil
}

func (f *taskFlags) anyChanged(cmd *cobra.Command) bool {
	for _, n := range []string{"name", "script", "type", "cron", "start", "end", "disabled"} {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func newTasksCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and manage scheduled tasks",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return e.printTasks(e.ctx(cmd))
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a task and its upcoming runs",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				t, err := e.ctrl.GetTask(e.ctx(cmd), id)
				if err != nil {
					return e.result(err)
				}
				pv, pvErr := panel.PreviewSchedule(t, e.previewN, e.rt.Now().In(e.loc))
				writeTask(e.rt.Out, t, pv, pvErr, e.loc)
				return nil
			},
		},
		newTaskAddCommand(e),
		newTaskEditCommand(e),
		newTaskPreviewCommand(e),
		&cobra.Command{
			Use:     "delete <id>",
			Aliases: []string{"rm"},
			Short:   "Delete a task (asks first)",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				return e.result(e.ctrl.DeleteTask(e.ctx(cmd), id))
			},
		},
		&cobra.Command{
			Use:   "run <id>",
			Short: "Run a task now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				return e.result(e.ctrl.RunTaskNow(e.ctx(cmd), id))
			},
		},
		&cobra.Command{
			Use:   "toggle <id>",
			Short: "Enable or disable a task",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				return e.result(e.ctrl.ToggleTask(e.ctx(cmd), id))
			},
		},
	)
	return cmd
}

func newTaskAddCommand(e *env) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a task",
		Example: `  panelctl tasks add backup --script downloads/backup.py --cron "0 3 * * *"
  panelctl tasks add ping -s autokey/ping.side --start 09:00 --end 10:30`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e.ctrl.OpenAddTask()
			form := e.ctrl.State().Form
			if len(args) > 0 {
				form.Name = strings.Join(args, " ")
			}
			if err := f.apply(cmd, &form); err != nil {
				e.ctrl.CloseTaskModal()
				return err
			}
			e.ctrl.SetScheduleType(form.ScheduleType())
			_, err := e.ctrl.CreateTask(e.ctx(cmd), form)
			return e.result(err)
		},
	}
	f.register(cmd)
	return cmd
}

func newTaskEditCommand(e *env) *cobra.Command {
	var f taskFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a task; only the given flags are updated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			if !f.anyChanged(cmd) {
				return fmt.Errorf("nothing to change; pass at least one of --name, --script, --type, --cron, --start, --end, --disabled")
			}
			ctx := e.ctx(cmd)
			form, err := e.ctrl.OpenEditTask(ctx, id)
			if err != nil {
				return e.result(err)
			}
			if err := f.apply(cmd, &form); err != nil {
				e.ctrl.CloseTaskModal()
				return err
			}
			e.ctrl.SetScheduleType(form.ScheduleType())
			return e.result(e.ctrl.SubmitTask(ctx, form))
		},
	}
	f.register(cmd)
	return cmd
}

// newTaskPreviewCommand previews a schedule without saving anything: either
// an existing task's or one described by flags.
func newTaskPreviewCommand(e *env) *cobra.Command {
	var f taskFlags
	var count int
	cmd := &cobra.Command{
		Use:   "preview [id]",
		Short: "Show upcoming runs for a task or a schedule",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t api.Task
			if len(args) == 1 {
				id, err := parseTaskID(args[0])
				if err != nil {
					return err
				}
				if t, err = e.ctrl.GetTask(e.ctx(cmd), id); err != nil {
					return e.result(err)
				}
			}
			form := panel.FormFromTask(t)
			if err := f.apply(cmd, &form); err != nil {
				return err
			}
			n := e.previewN
			if count > 0 {
				n = count
			}
			pv, err := panel.PreviewSchedule(form.Payload(), n, e.rt.Now().In(e.loc))
			writePreview(e.rt.Out, pv, err, e.loc)
			if err != nil {
				return errAlerted{err}
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "number of upcoming runs (default from config)")
	return cmd
}

func newScriptsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "List selectable script paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scripts, err := e.ctrl.ListScripts(e.ctx(cmd))
			if err != nil {
				return fmt.Errorf("list scripts: %w", err)
			}
			if len(scripts) == 0 {
				fmt.Fprintln(e.rt.Out, "No scripts found.")
				return nil
			}
			for _, s := range scripts {
				fmt.Fprintf(e.rt.Out, "%s\t%s\n", s.Path, s.Name)
			}
			return nil
		},
	}
}
