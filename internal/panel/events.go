package panel

import (
	"context"
	"time"
)

// Actor identifies who triggered an operation. Front-ends attach it to the
// request context; it ends up in action events and the audit log.
type Actor struct {
	ID       int64
	Username string
	ChatID   int64
	ThreadID int
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ActionEvent is published on the bus as eventbus.TypePanelAction after
// every backend request the controller makes.
type ActionEvent struct {
	Action string
	Target string
	OK     bool
	Err    string
	Took   time.Duration
	Actor  Actor
}

// Action names.
const (
	ActionTaskGet    = "task.get"
	ActionTaskCreate = "task.create"
	ActionTaskUpdate = "task.update"
	ActionTaskDelete = "task.delete"
	ActionTaskRun    = "task.run"
	ActionTaskToggle = "task.toggle"
	ActionTaskList   = "task.list"
	ActionScriptList = "script.list"
	ActionFileList   = "file.list"
	ActionFileRead   = "file.read"
	ActionFileSave   = "file.save"
	ActionFileDelete = "file.delete"
)
