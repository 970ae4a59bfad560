// Package cli is panelctl, the terminal front-end of the panel. Each
// invocation drives one panel.Controller: confirmations go through promptui,
// alerts are printed in color and the "reload the view" step reprints the
// task table.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"taskpanel/internal/api"
	"taskpanel/internal/config"
	"taskpanel/internal/panel"
	logx "taskpanel/pkg/logx"
)

// Runtime is the process surface the commands use. Zero fields fall back to
// the real terminal and the REST client from the config file.
type Runtime struct {
	In  io.ReadCloser
	Out io.Writer
	Err io.Writer

	// Backend replaces the REST client built from --config.
	Backend panel.Backend
	// Confirmer replaces the interactive prompt.
	Confirmer panel.Confirmer
	// Editor opens path for editing and returns when the editor exits.
	Editor func(ctx context.Context, path string) error
	Now    func() time.Time
}

type globalFlags struct {
	configPath string
	yes        bool
	verbose    bool
	noColor    bool
}

// env is built once per invocation by the root's PersistentPreRunE.
type env struct {
	rt    *Runtime
	flags *globalFlags

	log      logx.Logger
	ctrl     *panel.Controller
	loc      *time.Location
	previewN int
}

// errAlerted marks a failure the controller has already shown to the
// operator.
type errAlerted struct{ err error }

func (e errAlerted) Error() string { return e.err.Error() }
func (e errAlerted) Unwrap() error { return e.err }

// result maps a controller error to the command's exit: declined
// confirmations are not failures.
func (e *env) result(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, panel.ErrCancelled):
		fmt.Fprintln(e.rt.Out, "Cancelled.")
		return nil
	case errors.Is(err, errNotTerminal):
		// The confirmer failed before the controller could alert.
		return err
	default:
		return errAlerted{err}
	}
}

func (rt *Runtime) defaults() {
	if rt.In == nil {
		rt.In = os.Stdin
	}
	if rt.Out == nil {
		rt.Out = os.Stdout
	}
	if rt.Err == nil {
		rt.Err = os.Stderr
	}
	if rt.Editor == nil {
		rt.Editor = runEditor
	}
	if rt.Now == nil {
		rt.Now = time.Now
	}
}

// NewRootCommand builds the panelctl command tree.
func NewRootCommand(rt *Runtime) *cobra.Command {
	rt.defaults()
	flags := &globalFlags{}
	e := &env{rt: rt, flags: flags}

	root := &cobra.Command{
		Use:           "panelctl",
		Short:         "Manage the task scheduler from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(cmd.Context())
		},
	}
	root.SetIn(rt.In)
	root.SetOut(rt.Out)
	root.SetErr(rt.Err)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "./config.yaml", "path to config (yaml or json)")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "answer yes to confirmations")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log requests to stderr")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newTasksCommand(e), newScriptsCommand(e), newFilesCommand(e))
	return root
}

func (e *env) init(ctx context.Context) error {
	if e.flags.noColor {
		color.NoColor = true
	}
	level := "WARN"
	if e.flags.verbose {
		level = "DEBUG"
	}
	e.log = logx.NewWriter(e.rt.Err, level).With(logx.String("comp", "panelctl"))

	backend := e.rt.Backend
	e.loc, e.previewN = time.Local, 5
	defaultFolder := panel.FolderDownloads
	if backend == nil {
		cfg, err := config.NewManager(e.flags.configPath).Load()
		if err != nil {
			return err
		}
		client, err := api.New(cfg.Backend.BaseURL,
			api.WithTimeout(cfg.BackendTimeout()),
			api.WithLogger(e.log.With(logx.String("comp", "api"))),
			api.WithCredentials(cfg.Backend.Username, cfg.Backend.Password),
		)
		if err != nil {
			return err
		}
		backend = client
		e.loc, e.previewN = cfg.Location(), cfg.PreviewCount()
		if f, err := panel.ParseFolder(cfg.DefaultFolder()); err == nil {
			defaultFolder = f
		}
	}

	confirm := e.rt.Confirmer
	if confirm == nil {
		confirm = &promptConfirmer{yes: e.flags.yes, in: e.rt.In, out: e.rt.Out}
	}
	e.ctrl = panel.New(backend,
		panel.Ports{
			Confirmer: confirm,
			Alerter:   colorAlerter{w: e.rt.Out},
			Reloader:  taskTableReloader{e: e},
		},
		panel.WithLogger(e.log),
		panel.WithDefaultFolder(defaultFolder),
		panel.WithClock(e.rt.Now),
	)
	return nil
}

// ctx attaches the local operator to cmd's context for action events.
func (e *env) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a := panel.Actor{}
	if u, err := user.Current(); err == nil {
		a.Username = u.Username
	}
	return panel.WithActor(ctx, a)
}

// Execute runs panelctl with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	rt := &Runtime{}
	root := NewRootCommand(rt)
	if err := root.ExecuteContext(ctx); err != nil {
		var alerted errAlerted
		if !errors.As(err, &alerted) {
			color.New(color.FgRed).Fprintln(rt.Err, "Error:", err)
		}
		return 1
	}
	return 0
}
