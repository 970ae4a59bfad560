package panel

import (
	"context"

	"taskpanel/internal/api"
)

// Backend is the part of *api.Client the controller drives.
type Backend interface {
	ListTasks(ctx context.Context) ([]api.Task, error)
	GetTask(ctx context.Context, id int64) (api.Task, error)
	CreateTask(ctx context.Context, t api.Task) (int64, error)
	UpdateTask(ctx context.Context, id int64, t api.Task) error
	DeleteTask(ctx context.Context, id int64) error
	RunTask(ctx context.Context, id int64) error
	ToggleTask(ctx context.Context, id int64) error
	ListScripts(ctx context.Context) ([]api.Script, error)
	ListFiles(ctx context.Context, folder string) ([]api.ScriptFile, error)
	DeleteFile(ctx context.Context, folder, filename string) error
	ReadFile(ctx context.Context, folder, filename string) (string, error)
	SaveFile(ctx context.Context, folder, filename, content string) error
}

// Confirmer asks the operator a yes/no question before a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Alerter shows a blocking message.
type Alerter interface {
	Alert(ctx context.Context, msg string)
}

// Reloader re-renders the whole view after a successful mutation.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Ports bundles the front-end callbacks. Nil ports fall back to: confirm
// nothing, drop alerts, skip reloads.
type Ports struct {
	Confirmer Confirmer
	Alerter   Alerter
	Reloader  Reloader
}

type denyAll struct{}

func (denyAll) Confirm(context.Context, string) (bool, error) { return false, nil }

type dropAlerts struct{}

func (dropAlerts) Alert(context.Context, string) {}

type noReload struct{}

func (noReload) Reload(context.Context) error { return nil }
