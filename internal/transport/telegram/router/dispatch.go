package router

import (
	"context"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rtsup "taskpanel/internal/runtime/supervisor"
	kit "taskpanel/internal/transport"
	logx "taskpanel/pkg/logx"
)

const (
	jobQueueSize = 256
	menuTimeout  = 5 * time.Second
	drainTimeout = 3 * time.Second

	replyUnknown = "unknown command. try /help"
	replyDenied  = "unauthorized"
	replyBusy    = "busy, try again"
)

// CommandManager owns the registry and the worker pool that runs
// handlers.
type CommandManager struct {
	log     logx.Logger
	adapter kit.Adapter
	workers int
	jobs    chan func()

	routes atomic.Pointer[table]

	mu             sync.RWMutex
	owners         []int64
	defaultTimeout time.Duration
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64) *CommandManager {
	m := &CommandManager{
		log:            log,
		adapter:        adapter,
		workers:        max(2, runtime.NumCPU()),
		jobs:           make(chan func(), jobQueueSize),
		owners:         slices.Clone(owners),
		defaultTimeout: 30 * time.Second,
	}
	m.routes.Store(buildTable(nil, nil))
	return m
}

// SetOwners replaces the owner list; used on config reload.
func (m *CommandManager) SetOwners(owners []int64) {
	m.mu.Lock()
	m.owners = slices.Clone(owners)
	m.mu.Unlock()
}

// SetDefaultTimeout bounds handlers whose route sets no Timeout.
func (m *CommandManager) SetDefaultTimeout(d time.Duration) {
	m.mu.Lock()
	m.defaultTimeout = d
	m.mu.Unlock()
}

func (m *CommandManager) IsOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

func (m *CommandManager) timeoutFor(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultTimeout
}

// SetRegistry replaces all commands and callback routes. /help (aliases
// /h and /start) is always added. Adapters that publish a command menu get
// it refreshed in the background.
func (m *CommandManager) SetRegistry(ctx context.Context, cmds []Command, cbs []CallbackRoute) {
	cmds = append(slices.Clip(cmds), Command{
		Route:       "help",
		Aliases:     []string{"h", "start"},
		Description: "show help",
		Usage:       "/help [cmd] [sub...]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Reply(ctx, m.helpText(req.Args))
			return err
		},
	})
	t := buildTable(cmds, cbs)
	m.routes.Store(t)

	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := menuCommands(t)
	go func() {
		uctx, cancel := context.WithTimeout(ctx, menuTimeout)
		defer cancel()
		if err := up.UpdateMenuCommands(uctx, menu); err != nil && uctx.Err() == nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
	}()
}

// DispatchLoop feeds updates to the worker pool until ctx ends or updates
// is closed. Queued jobs get a short grace period on the way out.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(m.log.With(logx.String("comp", "router"))))
	for i := range m.workers {
		sup.GoRestart("router.worker."+strconv.Itoa(i), m.work,
			rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
		)
	}
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("queue", cap(m.jobs)))
	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := sup.Wait(wctx); err != nil {
			m.log.Warn("command workers did not stop cleanly", logx.Err(err))
		}
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			switch up.Kind {
			case kit.UpdateMessage:
				m.onMessage(ctx, up)
			case kit.UpdateCallback:
				m.onCallback(ctx, up)
			}
		}
	}
}

func (m *CommandManager) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-m.jobs:
			job()
		}
	}
}

func (m *CommandManager) onMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil || !strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		return
	}
	words := tokenizeCommandLine(msg.Text)
	if len(words) == 0 {
		return
	}
	word := strings.TrimPrefix(words[0], "/")
	word, _, _ = strings.Cut(word, "@") // "/tasks@panel_bot" in groups
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	n, path, raw := m.routes.Load().lookup(word, words[1:])
	switch {
	case n == nil:
		_, _ = m.adapter.SendText(ctx, chat, replyUnknown, nil)
		return
	case n.cmd == nil:
		_, _ = m.adapter.SendText(ctx, chat, m.helpText(path), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
		return
	}
	cmd := *n.cmd
	if cmd.Access == AccessOwnerOnly && !m.IsOwner(msg.FromID) {
		_, _ = m.adapter.SendText(ctx, chat, replyDenied, nil)
		return
	}

	pos, flags, bools := parseFlags(raw)
	req := m.newRequest(up, chat, msg.FromID, msg.FromUsername)
	req.Path, req.Command = path, cmd.Route
	req.Args, req.RawArgs, req.Flags, req.BoolFlags = pos, raw, flags, bools

	if !m.submit(ctx, req, cmd.Handle, cmd.Timeout, nil) {
		_, _ = m.adapter.SendText(ctx, chat, replyBusy, nil)
	}
}

func (m *CommandManager) onCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	route, payload, ok := m.routes.Load().callback(cb.Data)
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if route.Access == AccessOwnerOnly && !m.IsOwner(cb.FromID) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}

	req := m.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, cb.FromUsername)
	req.Command = "cb:" + route.Scope + ":" + route.Action
	req.Payload, req.MessageID = payload, cb.MessageID

	h := func(ctx context.Context, r *Request) error { return route.Handle(ctx, r, payload) }
	// Answering stops the button's loading spinner.
	answer := func() { _ = m.adapter.AnswerCallback(ctx, cb.ID, "") }
	if !m.submit(ctx, req, h, route.Timeout, answer) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (m *CommandManager) newRequest(up kit.Update, chat kit.ChatTarget, fromID int64, username string) *Request {
	rid := newReqID()
	return &Request{
		Update:       up,
		Chat:         chat,
		FromID:       fromID,
		FromUsername: username,
		ReqID:        rid,
		Adapter:      m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", fromID),
		),
	}
}

// submit queues h wrapped in the standard middleware. It reports false
// when the queue is full.
func (m *CommandManager) submit(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration, after func()) bool {
	run := Chain(h, Recover(m.log), LogRequests(m.log), Timeout(m.timeoutFor(timeout)))
	job := func() {
		_ = run(ctx, req)
		if after != nil {
			after()
		}
	}
	select {
	case m.jobs <- job:
		return true
	default:
		return false
	}
}
