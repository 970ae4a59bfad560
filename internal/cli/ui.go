package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"taskpanel/internal/api"
	"taskpanel/internal/panel"
)

var errNotTerminal = errors.New("confirmation needs a terminal; pass --yes to proceed")

// promptConfirmer asks on the terminal unless --yes was given.
type promptConfirmer struct {
	yes bool
	in  io.ReadCloser
	out io.Writer
}

func (c *promptConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	if c.yes {
		return true, nil
	}
	if f, ok := c.in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return false, errNotTerminal
	}
	p := promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
		Stdin:     c.in,
		Stdout:    nopWriteCloser{c.out},
	}
	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort), errors.Is(err, promptui.ErrInterrupt):
		return false, nil
	default:
		return false, err
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// colorAlerter prints controller alerts: outcome notices in green,
// everything else in red.
type colorAlerter struct{ w io.Writer }

func (a colorAlerter) Alert(_ context.Context, msg string) {
	c := color.New(color.FgRed, color.Bold)
	switch msg {
	case panel.MsgTaskStarted, panel.MsgFileSaved:
		c = color.New(color.FgGreen)
	}
	_, _ = c.Fprintln(a.w, msg)
}

// taskTableReloader is the CLI's view reload: reprint the task table.
type taskTableReloader struct{ e *env }

func (r taskTableReloader) Reload(ctx context.Context) error {
	return r.e.printTasks(ctx)
}

func (e *env) printTasks(ctx context.Context) error {
	tasks, err := e.ctrl.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	writeTaskTable(e.rt.Out, tasks, e.loc)
	return nil
}

func writeTaskTable(w io.Writer, tasks []api.Task, loc *time.Location) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCHEDULE\tSCRIPT\tSTATE\tLAST RUN")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Name, scheduleText(t), t.ScriptPath, stateText(t.Enabled), fmtTime(t.LastRun, loc))
	}
	_ = tw.Flush()
}

func writeTask(w io.Writer, t api.Task, pv panel.Preview, pvErr error, loc *time.Location) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Task #%d\n", t.ID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Name\t%s\n", t.Name)
	fmt.Fprintf(tw, "  Script\t%s\n", t.ScriptPath)
	fmt.Fprintf(tw, "  Schedule\t%s\n", scheduleText(t))
	fmt.Fprintf(tw, "  State\t%s\n", stateText(t.Enabled))
	fmt.Fprintf(tw, "  Last run\t%s\n", fmtTime(t.LastRun, loc))
	fmt.Fprintf(tw, "  Created\t%s\n", fmtTime(t.CreatedAt, loc))
	_ = tw.Flush()
	fmt.Fprintln(w)
	writePreview(w, pv, pvErr, loc)
}

func writePreview(w io.Writer, pv panel.Preview, err error, loc *time.Location) {
	if err != nil {
		color.New(color.FgYellow).Fprintln(w, "Preview unavailable:", err)
		return
	}
	color.New(color.FgCyan).Fprintln(w, pv.Description)
	for _, n := range pv.Next {
		fmt.Fprintln(w, "  "+n.In(loc).Format("Mon 2006-01-02 15:04"))
	}
	for _, win := range pv.Windows {
		fmt.Fprintln(w, "  "+win.From.In(loc).Format("Mon 2006-01-02 15:04")+" - "+win.To.In(loc).Format("15:04"))
	}
}

func writeFiles(w io.Writer, folder panel.Folder, files []api.ScriptFile, loc *time.Location) {
	if len(files) == 0 {
		fmt.Fprintf(w, "%s is empty.\n", folder)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, strconv.FormatInt(f.Size, 10), fmtTime(&f.Modified, loc))
	}
	_ = tw.Flush()
}

func scheduleText(t api.Task) string {
	if t.ScheduleType == api.ScheduleRandom {
		return "random " + t.RandomStart + "-" + t.RandomEnd
	}
	return "cron " + t.CronExpression
}

func stateText(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func fmtTime(ts *api.Timestamp, loc *time.Location) string {
	if ts == nil || ts.IsZero() {
		return "never"
	}
	return ts.In(loc).Format("2006-01-02 15:04")
}
