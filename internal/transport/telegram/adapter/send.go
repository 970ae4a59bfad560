package adapter

import (
	"context"
	"hash/fnv"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "taskpanel/internal/transport"
	logx "taskpanel/pkg/logx"
)

// Bot API limits for setMyCommands.
const (
	menuMaxCommands = 100
	menuMaxDesc     = 256
)

func sendOptions(opt *kit.SendOptions, threadID int, markup bool) *tele.SendOptions {
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              threadID,
	}
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok && markup {
		so.ReplyMarkup = rm
	}
	return so
}

// SendText sends text, split into several messages if it is too long for
// one. Markup goes on the first message, whose ref is returned.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID}
	chat := &tele.Chat{ID: to.ChatID}
	for i, part := range splitText(text, textLimit, isHTML(opt.ParseMode)) {
		if err := a.limiter.Wait(ctx); err != nil {
			return ref, err
		}
		m, err := a.bot.Send(chat, part, sendOptions(opt, to.ThreadID, i == 0))
		if err != nil {
			return ref, err
		}
		if i == 0 {
			ref.MessageID = m.ID
		}
	}
	return ref, nil
}

// EditText replaces the message at ref with the first part of text; any
// overflow is sent as new messages. Editing to identical content succeeds.
func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	parts := splitText(text, textLimit, isHTML(opt.ParseMode))
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	target := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.Edit(target, parts[0], sendOptions(opt, 0, true)); err != nil && !notModified(err) {
		return err
	}
	for _, part := range parts[1:] {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := a.bot.Send(target.Chat, part, sendOptions(opt, ref.ThreadID, false)); err != nil {
			return err
		}
	}
	return nil
}

func notModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

// UpdateMenuCommands publishes the bot's command menu. It does nothing when
// the list matches the last one published.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	menu := make([]tele.Command, 0, min(len(cmds), menuMaxCommands))
	h := fnv.New64a()
	for _, c := range cmds {
		if c.Command == "" {
			continue
		}
		if len(menu) == menuMaxCommands {
			break
		}
		desc := c.Description
		if desc == "" {
			desc = c.Command
		}
		if r := []rune(desc); len(r) > menuMaxDesc {
			desc = string(r[:menuMaxDesc])
		}
		menu = append(menu, tele.Command{Text: c.Command, Description: desc})
		_, _ = h.Write([]byte(c.Command + "\x00" + desc + "\x00"))
	}
	sum := h.Sum64()

	a.menuMu.Lock()
	defer a.menuMu.Unlock()
	if sum == a.menuSum {
		return nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := a.bot.SetCommands(menu); err != nil {
		return err
	}
	a.menuSum = sum
	a.log.Info("menu commands updated", logx.Int("count", len(menu)))
	return nil
}
