package tgui

import (
	"context"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	kit "taskpanel/internal/transport"
)

// Message is a rendered card: HTML text plus send options. More holds
// follow-up messages (long file bodies split into Telegram-sized chunks).
type Message struct {
	Text string
	Opt  *kit.SendOptions
	More []string
}

// Send sends the card. Markup is attached to the first message only.
func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	ref, err := ad.SendText(ctx, to, m.Text, m.Opt)
	if err != nil {
		return ref, err
	}
	return ref, m.sendMore(ctx, ad, to)
}

// Edit replaces the message at ref in place. Follow-ups are sent as new
// messages.
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef, to kit.ChatTarget) error {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	if err := ad.EditText(ctx, ref, m.Text, m.Opt); err != nil {
		return err
	}
	return m.sendMore(ctx, ad, to)
}

func (m Message) sendMore(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) error {
	if len(m.More) == 0 {
		return nil
	}
	opt := *m.Opt
	opt.ReplyMarkupAdapter = nil
	for _, t := range m.More {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if _, err := ad.SendText(ctx, to, t, &opt); err != nil {
			return err
		}
	}
	return nil
}

// Builder assembles an HTML card line by line. Text passed to Line, KV,
// Bullets and Title is escaped.
type Builder struct {
	rm    *tele.ReplyMarkup
	lines []string
	more  []string
}

func New() *Builder { return &Builder{} }

// Inline attaches a keyboard; nil or empty removes it.
func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil || kb.Len() == 0 {
		b.rm = nil
		return b
	}
	b.rm = kb.Markup()
	return b
}

func (b *Builder) Title(emoji, title string) *Builder {
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if e := strings.TrimSpace(emoji); e != "" {
		b.lines = append(b.lines, Esc(e).String()+" "+B(t).String())
	} else {
		b.lines = append(b.lines, B(t).String())
	}
	return b
}

func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// HTML appends pre-escaped content.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			b.Line("• " + it)
		}
	}
	return b
}

// KV adds "• <b>key</b>: value".
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	if key == "" {
		return b
	}
	b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(strings.TrimSpace(value)).String())
	return b
}

// PreMulti renders content as <pre> blocks, splitting on rune count so
// every message stays under Telegram's 4096 limit. The first chunk joins
// the card; the rest become follow-up messages.
func (b *Builder) PreMulti(content string, chunkLimit int) *Builder {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return b
	}
	if chunkLimit <= 0 {
		chunkLimit = 3500
	}
	const wrapperOverhead = len("<pre><code></code></pre>")
	eff := max(chunkLimit-wrapperOverhead, 128)

	first := true
	start := 0
	for start < len(content) {
		runes, end := 0, start
		lastNL, lastNLRunes := -1, 0
		for end < len(content) && runes < eff {
			r, size := utf8.DecodeRuneInString(content[end:])
			if r == '\n' {
				lastNL, lastNLRunes = end+size, runes+1
			}
			runes++
			end += size
		}
		// Prefer a line boundary if one is reasonably close to the cut.
		if end < len(content) && lastNL != -1 && lastNLRunes >= eff/3 {
			end = lastNL
		}
		chunk := Pre(strings.TrimRight(content[start:end], "\n")).String()
		if first {
			b.lines = append(b.lines, chunk)
			first = false
		} else {
			b.more = append(b.more, chunk)
		}
		start = end
		for start < len(content) && content[start] == '\n' {
			start++
		}
	}
	return b
}

// Build produces a card with ParseMode HTML and link previews off.
func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if b.rm != nil {
		opt.ReplyMarkupAdapter = b.rm
	}
	return Message{Text: text, Opt: opt, More: append([]string(nil), b.more...)}
}
