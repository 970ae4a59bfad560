package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	kit "taskpanel/internal/transport"
)

const (
	alertQueueSize = 256
	alertMaxLen    = 3500
	alertFieldLen  = 600
)

// alertSink forwards records at or above minLevel to a Telegram chat. It is
// rate limited and never blocks the caller: when the queue is full the
// record is dropped.
type alertSink struct {
	sender kit.Adapter
	queue  chan alert

	mu       sync.Mutex
	to       kit.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter
	cancel   context.CancelFunc
	done     chan struct{}
}

type alert struct {
	to   kit.ChatTarget
	text string
}

func newAlertSink(sender kit.Adapter) *alertSink {
	return &alertSink{
		sender:   sender,
		queue:    make(chan alert, alertQueueSize),
		minLevel: zerolog.WarnLevel,
		limiter:  rate.NewLimiter(1, 1),
	}
}

func (a *alertSink) configure(cfg TelegramConfig) {
	rps := max(1, cfg.RatePerSec)
	a.mu.Lock()
	a.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	if cfg.ThreadID != 0 {
		a.to.ThreadID = cfg.ThreadID
	}
	a.mu.Unlock()
}

func (a *alertSink) setTarget(chatID int64, threadID int) {
	a.mu.Lock()
	a.to.ChatID = chatID
	if threadID != 0 {
		a.to.ThreadID = threadID
	}
	a.mu.Unlock()
}

func (a *alertSink) hasTarget() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.to.ChatID != 0
}

// start launches the delivery worker once.
func (a *alertSink) start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil || a.sender == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel, a.done = cancel, make(chan struct{})
	go a.run(ctx, a.done)
}

func (a *alertSink) stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (a *alertSink) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-a.queue:
			_, _ = a.sender.SendText(ctx, it.to, it.text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
		}
	}
}

func (a *alertSink) Write(p []byte) (int, error) { return a.WriteLevel(zerolog.InfoLevel, p) }

func (a *alertSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	a.mu.Lock()
	to, minLevel, lim, running := a.to, a.minLevel, a.limiter, a.cancel != nil
	a.mu.Unlock()

	if !running || to.ChatID == 0 || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	select {
	case a.queue <- alert{to: to, text: renderAlert(p)}:
	default:
	}
	return len(p), nil
}

var levelIcons = map[string]string{
	"warn":  "⚠️",
	"error": "🛑",
	"fatal": "🛑",
	"panic": "🛑",
}

// renderAlert turns one JSON record into an HTML message: a level and
// message headline, then one escaped key=value line per field in key order.
func renderAlert(p []byte) string {
	raw := strings.TrimSpace(string(p))
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return html.EscapeString(clip(raw, alertMaxLen))
	}

	lvl, _ := rec[zerolog.LevelFieldName].(string)
	msg, _ := rec[zerolog.MessageFieldName].(string)
	delete(rec, zerolog.LevelFieldName)
	delete(rec, zerolog.MessageFieldName)
	delete(rec, zerolog.TimestampFieldName)

	var b strings.Builder
	if icon := levelIcons[lvl]; icon != "" {
		b.WriteString(icon + " ")
	}
	if lvl != "" {
		b.WriteString("<b>" + strings.ToUpper(lvl) + "</b> ")
	}
	b.WriteString(html.EscapeString(clip(msg, alertFieldLen)))

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := "\n<code>" + html.EscapeString(k) + "</code>=" + html.EscapeString(clip(fmt.Sprint(rec[k]), alertFieldLen))
		if b.Len()+len(line) > alertMaxLen {
			b.WriteString("\n…")
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// clip shortens s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
