package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "taskpanel/internal/transport"
	logx "taskpanel/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []string
	answered []string
	menu     chan []kit.BotCommand
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) AnswerCallback(ctx context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, text)
	return nil
}

func (f *fakeAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	if f.menu != nil {
		f.menu <- cmds
	}
	return nil
}

func (f *fakeAdapter) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func msg(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 1, FromID: from, Text: text}}
}

func TestTokenizeCommandLine(t *testing.T) {
	t.Parallel()

	got := tokenizeCommandLine(`/task add "nightly backup" --cron '0 3 * * *' a\ b ""`)
	assert.Equal(t, []string{"/task", "add", "nightly backup", "--cron", "0 3 * * *", "a b", ""}, got)
	assert.Nil(t, tokenizeCommandLine("   "))
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	pos, flags, bools := parseFlags([]string{"7", "--name=x", "--type", "random", "--disabled", "-y", "-s", "a.py", "--", "--raw"})
	assert.Equal(t, []string{"7", "--raw"}, pos)
	assert.Equal(t, map[string]string{"name": "x", "type": "random", "s": "a.py"}, flags)
	assert.Equal(t, map[string]bool{"disabled": true, "y": true}, bools)
}

func TestNewReqID(t *testing.T) {
	t.Parallel()

	a, b := newReqID(), newReqID()
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "task_add", sanitizeCommand("Task Add"))
	assert.Equal(t, "file_show", sanitizeCommand("file-show"))
	assert.Equal(t, "cmd_1x", sanitizeCommand("1x"))
	assert.Equal(t, "", sanitizeCommand("!!"))
}

func startManager(t *testing.T, m *CommandManager) chan<- kit.Update {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates
}

func TestDispatchRoutesSubcommandsAndAliases(t *testing.T) {
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, []int64{42})
	got := make(chan *Request, 4)
	handle := func(ctx context.Context, req *Request) error {
		got <- req
		return nil
	}
	m.SetRegistry(context.Background(), []Command{
		{Route: "task add", Handle: handle},
		{Route: "tasks", Aliases: []string{"ls"}, Handle: handle},
	}, nil)
	updates := startManager(t, m)

	updates <- msg(42, `/task add "my job" --script a.py`)
	req := <-got
	assert.Equal(t, []string{"task", "add"}, req.Path)
	assert.Equal(t, []string{"my job"}, req.Args)
	v, ok := req.Flag("script", "s")
	assert.True(t, ok)
	assert.Equal(t, "a.py", v)
	assert.NotEmpty(t, req.ReqID)

	updates <- msg(42, "/task_add")
	assert.Equal(t, "task add", (<-got).Command)

	updates <- msg(42, "/ls@panel_bot")
	assert.Equal(t, "tasks", (<-got).Command)
}

func TestDispatchRejectsNonOwnersAndUnknown(t *testing.T) {
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, []int64{42})
	m.SetRegistry(context.Background(), []Command{{Route: "tasks", Handle: func(ctx context.Context, req *Request) error {
		t.Error("handler must not run")
		return nil
	}}}, nil)
	updates := startManager(t, m)

	updates <- msg(7, "/tasks")
	updates <- msg(7, "/nope")
	require.Eventually(t, func() bool { return len(ad.Sent()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"unauthorized", "unknown command. try /help"}, ad.Sent())
}

func TestGroupWithoutHandlerShowsHelp(t *testing.T) {
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, []int64{42})
	m.SetRegistry(context.Background(), []Command{
		{Route: "file show", Description: "print a file", Handle: func(context.Context, *Request) error { return nil }},
	}, nil)
	updates := startManager(t, m)

	updates <- msg(42, "/file")
	require.Eventually(t, func() bool { return len(ad.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	out := ad.Sent()[0]
	assert.Contains(t, out, "/file show")
	assert.Contains(t, out, "print a file")
}

func TestCallbackRouting(t *testing.T) {
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, []int64{42})
	payloads := make(chan string, 1)
	m.SetRegistry(context.Background(), nil, []CallbackRoute{{
		Scope:  "task",
		Action: "run",
		Handle: func(ctx context.Context, req *Request, payload string) error {
			payloads <- payload
			return nil
		},
	}})
	updates := startManager(t, m)

	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c1", FromID: 7, Data: "task:run:3"}}
	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c2", FromID: 42, Data: "task:run:3:x"}}
	assert.Equal(t, "3:x", <-payloads)
	require.Eventually(t, func() bool {
		ad.mu.Lock()
		defer ad.mu.Unlock()
		return len(ad.answered) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "forbidden", ad.answered[0])
}

func TestTimeoutAndPanicMiddleware(t *testing.T) {
	t.Parallel()

	h := Chain(func(ctx context.Context, req *Request) error {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), dl, 500*time.Millisecond)
		panic("boom")
	}, Recover(logx.Nop()), LogRequests(logx.Nop()), Timeout(time.Second))

	err := h(context.Background(), &Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMenuCommands(t *testing.T) {
	ad := &fakeAdapter{menu: make(chan []kit.BotCommand, 1)}
	m := NewCommandManager(logx.Nop(), ad, nil)
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry(context.Background(), []Command{
		{Route: "tasks", Description: "list tasks", Handle: noop},
		{Route: "task add", Description: "create a task", Handle: noop},
	}, nil)

	var menu []kit.BotCommand
	select {
	case menu = <-ad.menu:
	case <-time.After(time.Second):
		t.Fatal("menu not published")
	}
	names := make([]string, 0, len(menu))
	for _, c := range menu {
		names = append(names, c.Command)
	}
	assert.Equal(t, []string{"help", "task", "tasks", "task_add"}, names)
	assert.Equal(t, "🔒 list tasks", menu[2].Description)
}

func TestHelpText(t *testing.T) {
	t.Parallel()

	m := NewCommandManager(logx.Nop(), &fakeAdapter{}, nil)
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry(context.Background(), []Command{
		{Route: "task show", Description: "show one task", Usage: "/task show <id>", Handle: noop},
	}, nil)

	top := m.helpText(nil)
	assert.Contains(t, top, "<code>/help</code>")
	assert.Contains(t, top, "🔒 <code>/task</code>")
	assert.Contains(t, top, "Type <code>/help &lt;cmd&gt;</code> for details.")

	node := m.helpText([]string{"task", "show"})
	assert.True(t, strings.HasPrefix(node, "📚 <b>Help</b> <code>/task show</code>\n"), node)
	assert.Contains(t, node, "show one task")
	assert.Contains(t, node, "🔒 <i>Owner only</i>")
	assert.Contains(t, node, "<code>/task show &lt;id&gt;</code>")
	assert.Contains(t, node, "• <code>/task_show</code>")

	group := m.helpText([]string{"task"})
	assert.Contains(t, group, "Command group.")
	assert.Contains(t, group, "🔒 <i>Owner only</i>")

	unknown := m.helpText([]string{"bogus"})
	assert.Contains(t, unknown, "Unknown command")
	assert.Contains(t, unknown, "Type <code>/help</code> for the command list.")
}
