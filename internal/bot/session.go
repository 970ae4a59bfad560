package bot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"taskpanel/internal/panel"
	kit "taskpanel/internal/transport"
	"taskpanel/internal/transport/telegram/router"
	logx "taskpanel/pkg/logx"
	"taskpanel/pkg/tgui"
)

// session is one chat's panel. Handlers hold mu for their whole run, so a
// chat's controller only ever sees one request at a time.
type session struct {
	mu   sync.Mutex
	bot  *Bot
	chat kit.ChatTarget
	ctrl *panel.Controller

	// alerts stay under Telegram's per-chat limit.
	alerts *rate.Limiter

	// listRef is the task list card that Reload edits in place; zero means
	// the next reload sends a fresh card.
	listRef  kit.MessageRef
	listPage int
}

func (b *Bot) session(chat kit.ChatTarget) *session {
	b.sessMu.Lock()
	defer b.sessMu.Unlock()
	if s, ok := b.sessions.Get(chat); ok {
		// Get does not extend the TTL; re-adding does.
		b.sessions.Add(chat, s)
		return s
	}
	s := &session{
		bot:    b,
		chat:   chat,
		alerts: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	o := b.options()
	s.ctrl = panel.New(b.backend,
		panel.Ports{Confirmer: s, Alerter: s, Reloader: s},
		panel.WithBus(b.bus),
		panel.WithLogger(b.log.With(logx.Int64("chat_id", chat.ChatID))),
		panel.WithDefaultFolder(o.DefaultFolder),
		panel.WithClock(b.now),
	)
	b.sessions.Add(chat, s)
	return s
}

type sessionHandler func(ctx context.Context, s *session, req *router.Request) error

type sessionCallback func(ctx context.Context, s *session, req *router.Request, payload string) error

func actorOf(req *router.Request) panel.Actor {
	return panel.Actor{ID: req.FromID, Username: req.FromUsername, ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID}
}

func (b *Bot) withSession(h sessionHandler) router.HandlerFunc {
	return func(ctx context.Context, req *router.Request) error {
		s := b.session(req.Chat)
		s.mu.Lock()
		defer s.mu.Unlock()
		return h(panel.WithActor(ctx, actorOf(req)), s, req)
	}
}

func (b *Bot) withSessionCB(h sessionCallback) router.CallbackHandlerFunc {
	return func(ctx context.Context, req *router.Request, payload string) error {
		s := b.session(req.Chat)
		s.mu.Lock()
		defer s.mu.Unlock()
		return h(panel.WithActor(ctx, actorOf(req)), s, req, payload)
	}
}

type confirmedKey struct{}

// withConfirmed marks ctx as carrying the operator's "yes" from a confirm
// card.
func withConfirmed(ctx context.Context) context.Context {
	return context.WithValue(ctx, confirmedKey{}, true)
}

// Confirm answers the controller's question from the context: chat
// confirmations are asynchronous, so the question was already asked by a
// confirm card and only its "yes" callback carries approval.
func (s *session) Confirm(ctx context.Context, _ string) (bool, error) {
	ok, _ := ctx.Value(confirmedKey{}).(bool)
	return ok, nil
}

func (s *session) Alert(ctx context.Context, msg string) {
	if err := s.alerts.Wait(ctx); err != nil {
		return
	}
	if _, err := s.bot.adapter.SendText(ctx, s.chat, tgui.Esc(msg).String(), htmlOpt()); err != nil {
		s.bot.log.Warn("alert send failed", logx.Int64("chat_id", s.chat.ChatID), logx.Err(err))
	}
}

// Reload re-renders the task list card.
func (s *session) Reload(ctx context.Context) error {
	return s.showTasks(ctx, s.listPage, s.listRef)
}

// editOrSend edits the card a callback came from, or sends msg as a new
// message for text commands.
func (s *session) editOrSend(ctx context.Context, req *router.Request, msg tgui.Message) error {
	if req.MessageID != 0 {
		ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
		return msg.Edit(ctx, s.bot.adapter, ref, req.Chat)
	}
	_, err := msg.Send(ctx, s.bot.adapter, req.Chat)
	return err
}

func htmlOpt() *kit.SendOptions {
	return &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
}
