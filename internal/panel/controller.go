package panel

import (
	"context"
	"strconv"
	"time"

	"taskpanel/internal/eventbus"
	logx "taskpanel/pkg/logx"
)

type Controller struct {
	backend Backend
	confirm Confirmer
	alert   Alerter
	reload  Reloader

	bus eventbus.Bus
	log logx.Logger
	now func() time.Time

	state State
}

type Option func(*Controller)

func WithBus(b eventbus.Bus) Option { return func(c *Controller) { c.bus = b } }

func WithLogger(log logx.Logger) Option { return func(c *Controller) { c.log = log } }

// WithDefaultFolder sets the folder the file manager starts on.
func WithDefaultFolder(f Folder) Option {
	return func(c *Controller) {
		if f != "" {
			c.state.CurrentFolder = f
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func New(backend Backend, ports Ports, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		confirm: ports.Confirmer,
		alert:   ports.Alerter,
		reload:  ports.Reloader,
		log:     logx.Nop(),
		now:     time.Now,
		state:   State{CurrentFolder: FolderDownloads, Form: NewTaskForm()},
	}
	if c.confirm == nil {
		c.confirm = denyAll{}
	}
	if c.alert == nil {
		c.alert = dropAlerts{}
	}
	if c.reload == nil {
		c.reload = noReload{}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns a copy of the session state. The Files slice is shared.
func (c *Controller) State() State { return c.state }

// call runs one backend request and publishes its action event.
func (c *Controller) call(ctx context.Context, action, target string, fn func(ctx context.Context) error) error {
	start := c.now()
	err := fn(ctx)
	took := c.now().Sub(start)

	ev := ActionEvent{Action: action, Target: target, OK: err == nil, Took: took}
	if err != nil {
		ev.Err = err.Error()
	}
	ev.Actor, _ = ActorFrom(ctx)
	if c.bus != nil {
		c.bus.Publish(eventbus.Event{Type: eventbus.TypePanelAction, Time: start, Data: ev})
	}
	if err != nil {
		c.log.Debug("panel action failed", logx.String("action", action), logx.String("target", target), logx.Err(err))
	}
	return err
}

func (c *Controller) doReload(ctx context.Context) {
	if err := c.reload.Reload(ctx); err != nil {
		c.log.Warn("view reload failed", logx.Err(err))
	}
}

func taskTarget(id int64) string { return "task:" + strconv.FormatInt(id, 10) }

func fileTarget(folder Folder, name string) string { return string(folder) + "/" + name }
