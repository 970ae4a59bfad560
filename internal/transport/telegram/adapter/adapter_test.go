package adapter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	kit "taskpanel/internal/transport"
	logx "taskpanel/pkg/logx"
)

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{Token: "  "}, logx.Nop())
	require.Error(t, err)
}

func TestSendOptionsMarkupOnlyWhenAsked(t *testing.T) {
	t.Parallel()

	rm := &tele.ReplyMarkup{}
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyMarkupAdapter: rm}

	first := sendOptions(opt, 7, true)
	assert.EqualValues(t, "HTML", first.ParseMode)
	assert.True(t, first.DisableWebPagePreview)
	assert.Equal(t, 7, first.ThreadID)
	assert.Same(t, rm, first.ReplyMarkup)

	assert.Nil(t, sendOptions(opt, 7, false).ReplyMarkup)
	assert.Nil(t, sendOptions(&kit.SendOptions{ReplyMarkupAdapter: "not markup"}, 0, true).ReplyMarkup)
}

func TestNotModified(t *testing.T) {
	t.Parallel()

	assert.True(t, notModified(errors.New("telegram: Bad Request: message is not modified (400)")))
	assert.False(t, notModified(errors.New("chat not found")))
}
