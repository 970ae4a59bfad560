package tgui

import tele "gopkg.in/telebot.v4"

// Inline builds an inline keyboard row by row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends a row; empty rows are skipped.
func (i *Inline) Row(btn ...Button) *Inline {
	if len(btn) == 0 {
		return i
	}
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

func (i *Inline) Len() int { return len(i.rows) }

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Button is an inline keyboard button.
type Button = tele.Btn

// Btn creates a callback button with raw callback_data.
func Btn(text, data string) Button {
	return Button{Text: text, Data: data}
}

// ConfirmInline builds the yes/no keyboard of a confirm card.
func ConfirmInline(yesData, noData string) *Inline {
	return NewInline().Row(Btn("✅ Yes", yesData), Btn("✖️ No", noData))
}
