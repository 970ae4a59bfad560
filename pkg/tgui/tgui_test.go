package tgui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()

	d := Data("task", "run", "12")
	assert.Equal(t, "task:run:12", d)
	scope, action, payload := ParseData(d)
	assert.Equal(t, []string{"task", "run", "12"}, []string{scope, action, payload})

	_, _, payload = ParseData("file:del:a:b")
	assert.Equal(t, "a:b", payload)

	scope, action, payload = ParseData("noop")
	assert.Equal(t, "noop", scope)
	assert.Empty(t, action)
	assert.Empty(t, payload)

	assert.NoError(t, CheckData(d))
	assert.ErrorIs(t, CheckData(strings.Repeat("x", 65)), ErrCallbackDataTooLong)
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	s := NewTokenStore(2, time.Minute)
	a := s.Put("downloads/a very long file name.py")
	assert.True(t, strings.HasPrefix(a, "~"))
	assert.NotContains(t, a, ":")

	v, ok := s.Get(a)
	require.True(t, ok)
	assert.Equal(t, "downloads/a very long file name.py", v)

	b := s.Put("b")
	c := s.Put("c")
	assert.Equal(t, 2, s.Len())
	_, ok = s.Get(a)
	assert.False(t, ok, "oldest entry evicted")

	v, ok = s.Take(b)
	require.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = s.Get(b)
	assert.False(t, ok)
	_, ok = s.Get(c)
	assert.True(t, ok)
}

func TestTokenStoreExpires(t *testing.T) {
	t.Parallel()

	s := NewTokenStore(10, 20*time.Millisecond)
	tok := s.Put("x")
	time.Sleep(60 * time.Millisecond)
	_, ok := s.Get(tok)
	assert.False(t, ok)
}

func TestBuilderEscapesAndSplits(t *testing.T) {
	t.Parallel()

	msg := New().Title("📋", "Tasks <2>").KV("cron", "*/5 * * * *").Line("a & b").Build()
	assert.Equal(t, "📋 <b>Tasks &lt;2&gt;</b>\n• <b>cron</b>: */5 * * * *\na &amp; b", msg.Text)
	assert.Equal(t, "HTML", msg.Opt.ParseMode)
	assert.Nil(t, msg.Opt.ReplyMarkupAdapter)

	long := strings.Repeat("line of code\n", 100)
	msg = New().PreMulti(long, 300).Build()
	require.NotEmpty(t, msg.More)
	for _, part := range append([]string{msg.Text}, msg.More...) {
		assert.True(t, strings.HasPrefix(part, "<pre><code>"))
		assert.True(t, strings.HasSuffix(part, "</code></pre>"))
		assert.LessOrEqual(t, len([]rune(part)), 300)
	}

	kb := ConfirmInline("task:del:1", "task:cancel")
	msg = New().Line("Delete?").Inline(kb).Build()
	assert.NotNil(t, msg.Opt.ReplyMarkupAdapter)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	items := make([]int, 25)
	p := Paginate(items, 1, 10)
	assert.Len(t, p.Items, 10)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)
	assert.Equal(t, "Page 2/3 • 11–20 of 25", p.Label())

	p = Paginate(items, 9, 10)
	assert.Equal(t, 2, p.Index)
	assert.Len(t, p.Items, 5)
	assert.False(t, p.HasNext)

	assert.Equal(t, "Page 1/1", Paginate([]int{}, 0, 10).Label())
}

func TestTextHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ab…", TruncRunes("abc", 2))
	assert.Equal(t, "abc", TruncRunes("abc", 3))
	assert.Equal(t, "512 B", HumanBytes(512))
	assert.Equal(t, "1.5 KiB", HumanBytes(1536))
}
