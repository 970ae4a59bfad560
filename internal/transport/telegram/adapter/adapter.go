// Package adapter connects the panel to the Telegram Bot API through
// telebot. It converts incoming messages and button presses to
// transport.Update values and implements transport.Adapter for output.
package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	rtsup "taskpanel/internal/runtime/supervisor"
	kit "taskpanel/internal/transport"
	logx "taskpanel/pkg/logx"
)

const (
	defaultPollTimeout = 10 * time.Second
	defaultSendRate    = 20
	dropReportEvery    = 5 * time.Second
	stopGrace          = 2 * time.Second
)

type Config struct {
	Token       string
	PollTimeout time.Duration
	// SendRate caps outgoing Bot API calls per second (0 means 20).
	SendRate float64
}

type Adapter struct {
	log     logx.Logger
	bot     *tele.Bot
	limiter *rate.Limiter

	mu  sync.Mutex
	out chan<- kit.Update
	sup *rtsup.Supervisor

	// dropped counts updates lost to a full consumer channel; it is
	// reported in batches.
	dropped atomic.Uint64

	menuMu  sync.Mutex
	menuSum uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: poll},
	})
	if err != nil {
		return nil, err
	}
	rps := cfg.SendRate
	if rps <= 0 {
		rps = defaultSendRate
	}
	a := &Adapter{
		log:     log,
		bot:     b,
		limiter: rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
	}
	b.Handle(tele.OnText, a.onText)
	b.Handle(tele.OnCallback, a.onCallback)
	return a, nil
}

func (a *Adapter) onText(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Sender == nil {
		return nil
	}
	a.deliver(kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		Text:         m.Text,
	}})
	return nil
}

func (a *Adapter) onCallback(c tele.Context) error {
	cb, m := c.Callback(), c.Message()
	if cb == nil || cb.Sender == nil || m == nil {
		return nil
	}
	a.deliver(kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID:           cb.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		MessageID:    m.ID,
		FromID:       cb.Sender.ID,
		FromUsername: cb.Sender.Username,
		Data:         strings.TrimSpace(cb.Data),
	}})
	return nil
}

// deliver never blocks the poller; updates that do not fit are counted and
// dropped.
func (a *Adapter) deliver(up kit.Update) {
	a.mu.Lock()
	out := a.out
	a.mu.Unlock()
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		a.dropped.Add(1)
	}
}

// Start begins long polling and delivers updates to out until ctx ends or
// Stop is called. A second Start while running is a no-op.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.mu.Lock()
	if a.sup != nil {
		a.mu.Unlock()
		return nil
	}
	sup := rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "telegram"))))
	a.sup, a.out = sup, out
	a.mu.Unlock()

	sup.Go0("telegram.drops", func(c context.Context) { a.reportDrops(c, cap(out)) })
	sup.Go0("telegram.unblock", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// bot.Start blocks until bot.Stop; an early return means polling died.
	sup.GoRestart("telegram.poll", func(context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		return nil
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

func (a *Adapter) reportDrops(ctx context.Context, capacity int) {
	t := time.NewTicker(dropReportEvery)
	defer t.Stop()
	for {
		done := false
		select {
		case <-ctx.Done():
			done = true
		case <-t.C:
		}
		if n := a.dropped.Swap(0); n > 0 {
			a.log.Warn("incoming updates dropped (consumer full)", logx.Uint64("count", n), logx.Int("capacity", capacity))
		}
		if done {
			return
		}
	}
}

// Stop ends polling. A pending long poll is given at most a short grace
// period, bounded further by ctx.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	sup := a.sup
	a.sup, a.out = nil, nil
	a.mu.Unlock()
	if sup == nil {
		return nil
	}

	a.log.Info("stopping")
	sup.Cancel()
	go a.bot.Stop()

	wctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop incomplete", logx.Err(err))
	}
	return nil
}
