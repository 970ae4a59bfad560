package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/api"
	"taskpanel/internal/eventbus"
	"taskpanel/internal/panel"
	"taskpanel/internal/storage"
	kit "taskpanel/internal/transport"
	"taskpanel/internal/transport/telegram/router"
	logx "taskpanel/pkg/logx"
)

const (
	ownerID = int64(1)
	chatID  = int64(100)
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   []string
	tasks   map[int64]api.Task
	scripts []api.Script
	files   map[string][]api.ScriptFile
	saved   [3]string
	created api.Task
	nextID  int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tasks:  map[int64]api.Task{},
		files:  map[string][]api.ScriptFile{},
		nextID: 1,
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]api.Task, error) {
	f.record("GET /api/tasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeBackend) GetTask(ctx context.Context, id int64) (api.Task, error) {
	f.record("GET /api/tasks/%d", id)
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return api.Task{}, &api.APIError{Op: "get_task", Status: 404, Message: "Task not found"}
	}
	return t, nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, t api.Task) (int64, error) {
	f.record("POST /api/tasks")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = t
	t.ID = f.nextID
	f.nextID++
	f.tasks[t.ID] = t
	return t.ID, nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id int64, t api.Task) error {
	f.record("PUT /api/tasks/%d", id)
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = id
	f.tasks[id] = t
	return nil
}

func (f *fakeBackend) DeleteTask(ctx context.Context, id int64) error {
	f.record("DELETE /api/tasks/%d", id)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return nil
}

func (f *fakeBackend) RunTask(ctx context.Context, id int64) error {
	f.record("POST /api/tasks/%d/run", id)
	return nil
}

func (f *fakeBackend) ToggleTask(ctx context.Context, id int64) error {
	f.record("POST /api/tasks/%d/toggle", id)
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tasks[id]
	t.Enabled = !t.Enabled
	f.tasks[id] = t
	return nil
}

func (f *fakeBackend) ListScripts(ctx context.Context) ([]api.Script, error) {
	f.record("GET /api/scripts")
	return f.scripts, nil
}

func (f *fakeBackend) ListFiles(ctx context.Context, folder string) ([]api.ScriptFile, error) {
	f.record("GET /api/files?folder=%s", folder)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[folder], nil
}

func (f *fakeBackend) DeleteFile(ctx context.Context, folder, filename string) error {
	f.record("DELETE /api/files %s/%s", folder, filename)
	return nil
}

func (f *fakeBackend) ReadFile(ctx context.Context, folder, filename string) (string, error) {
	f.record("GET /api/files/content %s/%s", folder, filename)
	return "print('hi')", nil
}

func (f *fakeBackend) SaveFile(ctx context.Context, folder, filename, content string) error {
	f.record("POST /api/files %s/%s", folder, filename)
	f.mu.Lock()
	f.saved = [3]string{folder, filename, content}
	f.mu.Unlock()
	return nil
}

type fakeAdapter struct {
	mu   sync.Mutex
	next int
	out  []string
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                         { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.out = append(a.out, text)
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: a.next}, nil
}

func (a *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out = append(a.out, "[edit] "+text)
	return nil
}

func (a *fakeAdapter) AnswerCallback(ctx context.Context, id, text string) error { return nil }

func (a *fakeAdapter) Out() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.out...)
}

type harness struct {
	t       *testing.T
	be      *fakeBackend
	ad      *fakeAdapter
	bot     *Bot
	bus     eventbus.Bus
	updates chan kit.Update
}

func newHarness(t *testing.T, store storage.Store) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		be:      newFakeBackend(),
		ad:      &fakeAdapter{},
		bus:     eventbus.New(),
		updates: make(chan kit.Update, 8),
	}
	h.bot = New(Deps{Backend: h.be, Adapter: h.ad, Bus: h.bus, Store: store, Logger: logx.Nop()}, Options{Location: time.UTC})
	m := router.NewCommandManager(logx.Nop(), h.ad, []int64{ownerID})

	ctx, cancel := context.WithCancel(context.Background())
	h.bot.Register(ctx, m)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, h.updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) say(text string) {
	h.updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chatID, FromID: ownerID, FromUsername: "op", Text: text}}
}

func (h *harness) press(data string, messageID int) {
	h.updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb", ChatID: chatID, FromID: ownerID, MessageID: messageID, Data: data}}
}

// waitOut waits until some output contains substr and returns it.
func (h *harness) waitOut(substr string) string {
	h.t.Helper()
	var hit string
	require.Eventually(h.t, func() bool {
		for _, o := range h.ad.Out() {
			if strings.Contains(o, substr) {
				hit = o
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond, "no output containing %q; got %q", substr, h.ad.Out())
	return hit
}

func TestTaskAddCronAndReload(t *testing.T) {
	h := newHarness(t, nil)

	h.say(`/task add backup --script scripts/backup.py --cron "0 3 * * *"`)
	card := h.waitOut("backup")
	assert.Contains(t, card, "cron 0 3 * * *")

	h.be.mu.Lock()
	created := h.be.created
	h.be.mu.Unlock()
	assert.Equal(t, api.ScheduleCron, created.ScheduleType)
	assert.Equal(t, "scripts/backup.py", created.ScriptPath)
	assert.Empty(t, created.RandomStart)
	assert.True(t, created.Enabled)
}

func TestTaskAddRandomIsInferredFromWindow(t *testing.T) {
	h := newHarness(t, nil)

	h.say(`/task add "morning ping" -s ping.py --start 09:00 --end 10:30 --disabled`)
	h.waitOut("morning ping")

	h.be.mu.Lock()
	created := h.be.created
	h.be.mu.Unlock()
	assert.Equal(t, api.ScheduleRandom, created.ScheduleType)
	assert.Empty(t, created.CronExpression)
	assert.Equal(t, "09:00", created.RandomStart)
	assert.Equal(t, "10:30", created.RandomEnd)
	assert.False(t, created.Enabled)
}

func TestTaskAddMissingFieldsAlertsWithoutRequest(t *testing.T) {
	h := newHarness(t, nil)

	h.say("/task add nameless")
	out := h.waitOut("missing required field")
	assert.Contains(t, out, "script_path")
	assert.Zero(t, h.be.count("POST /api/tasks"))
}

func TestTaskDeleteNeedsConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	h.be.tasks[3] = api.Task{ID: 3, Name: "old", ScheduleType: api.ScheduleCron, CronExpression: "@daily"}

	h.say("/task delete 3")
	h.waitOut("Delete this task?")
	assert.Zero(t, h.be.count("DELETE /api/tasks/3"))

	h.press("ui:cancel", 1)
	h.waitOut("Cancelled.")
	assert.Zero(t, h.be.count("DELETE /api/tasks/3"))

	// A bare id is not a valid confirmation.
	h.press("task:delok:3", 1)
	h.waitOut("This button has expired. Send /tasks again.")
	assert.Zero(t, h.be.count("DELETE /api/tasks/3"))

	tok := h.bot.tokens.Put("3")
	h.press("task:delok:"+tok, 1)
	require.Eventually(t, func() bool { return h.be.count("DELETE /api/tasks/3") == 1 }, 2*time.Second, 5*time.Millisecond)
	h.waitOut("[edit] 📋 <b>Tasks</b>")

	// A second tap on the same button sends nothing.
	h.press("task:delok:"+tok, 1)
	require.Eventually(t, func() bool {
		n := 0
		for _, o := range h.ad.Out() {
			if strings.Contains(o, "This button has expired. Send /tasks again.") {
				n++
			}
		}
		return n == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.be.count("DELETE /api/tasks/3"))
}

func TestTaskRunAlertsStarted(t *testing.T) {
	h := newHarness(t, nil)

	h.say("/task run 4")
	h.waitOut("Task started")
	assert.Equal(t, 1, h.be.count("POST /api/tasks/4/run"))
	assert.Zero(t, h.be.count("GET /api/tasks"))
}

func TestTaskShowIncludesPreview(t *testing.T) {
	h := newHarness(t, nil)
	h.be.tasks[2] = api.Task{ID: 2, Name: "hourly", ScriptPath: "a.py", ScheduleType: api.ScheduleCron, CronExpression: "0 * * * *", Enabled: true}

	h.say("/task show 2")
	card := h.waitOut("Task #2")
	assert.Contains(t, card, "cron 0 * * * *")
	runs := 0
	for _, line := range strings.Split(card, "\n") {
		if strings.HasPrefix(line, "• ") && strings.HasSuffix(line, ":00") {
			runs++
		}
	}
	assert.Equal(t, 5, runs)
}

func TestScriptsAreCached(t *testing.T) {
	h := newHarness(t, nil)
	h.be.scripts = []api.Script{{Name: "backup.py", Path: "downloads/backup.py"}}

	h.say("/scripts")
	h.waitOut("downloads/backup.py")
	h.say("/scripts")
	require.Eventually(t, func() bool { return len(h.ad.Out()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.be.count("GET /api/scripts"))

	h.say("/scripts --refresh")
	require.Eventually(t, func() bool { return h.be.count("GET /api/scripts") == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestFileSaveNormalizesAndRelists(t *testing.T) {
	h := newHarness(t, nil)

	h.say("/file save autokey notes\nprint(1)\nprint(2)")
	h.waitOut("File saved")

	h.be.mu.Lock()
	saved := h.be.saved
	h.be.mu.Unlock()
	assert.Equal(t, [3]string{"autokey", "notes.py", "print(1)\nprint(2)"}, saved)
	// The listing refreshed is the current folder, not the saved one.
	assert.Equal(t, 1, h.be.count("GET /api/files?folder=downloads"))
}

func TestFilesSwitchFetchesOneFolder(t *testing.T) {
	h := newHarness(t, nil)
	h.be.files["autokey"] = []api.ScriptFile{{Name: "macro.side", Size: 2048}}

	h.say("/files autokey")
	card := h.waitOut("macro.side")
	assert.Contains(t, card, "Files: autokey")
	assert.Contains(t, card, "2.0 KiB")
	assert.Equal(t, []string{"GET /api/files?folder=autokey"}, h.be.Calls())
}

func TestFileDeleteTokenIsSingleUse(t *testing.T) {
	h := newHarness(t, nil)
	tok := h.bot.tokens.Put("autokey/macro.side")

	h.press("file:delok:"+tok, 7)
	require.Eventually(t, func() bool { return h.be.count("DELETE /api/files autokey/macro.side") == 1 }, 2*time.Second, 5*time.Millisecond)

	h.press("file:delok:"+tok, 7)
	h.waitOut("This button has expired.")
	assert.Equal(t, 1, h.be.count("DELETE /api/files autokey/macro.side"))
}

func TestAuditRecordsActions(t *testing.T) {
	store, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "panel")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := newHarness(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = RunAudit(ctx, h.bus, store, logx.Nop()) }()
	// Let the subscriber attach before the first event.
	time.Sleep(50 * time.Millisecond)

	h.say("/task run 9")
	h.waitOut("Task started")

	var entries []storage.AuditEntry
	require.Eventually(t, func() bool {
		entries, err = store.RecentAudit(context.Background(), 5)
		return err == nil && len(entries) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "task.run", entries[0].Action)
	assert.Equal(t, "task:9", entries[0].Target)
	assert.Equal(t, ownerID, entries[0].ActorID)
	assert.Equal(t, "op", entries[0].ActorUsername)
	assert.True(t, entries[0].OK)

	h.say("/audit")
	out := h.waitOut("Recent actions")
	assert.Contains(t, out, "task.run task:9 @op")
}

func TestAuditDisabled(t *testing.T) {
	h := newHarness(t, nil)
	h.say("/audit")
	h.waitOut("Audit log is disabled")
}

func TestActiveSessionOutlivesIdleWindow(t *testing.T) {
	b := New(Deps{Backend: newFakeBackend(), Adapter: &fakeAdapter{}, Bus: eventbus.New(), Logger: logx.Nop()}, Options{Location: time.UTC})
	b.sessions = newSessionCache(300 * time.Millisecond)
	chat := kit.ChatTarget{ChatID: chatID}

	s := b.session(chat)
	_, err := s.ctrl.SwitchFolder(context.Background(), panel.FolderAutokey)
	require.NoError(t, err)

	// Twice the idle window, touched more often than it.
	for i := 0; i < 12; i++ {
		time.Sleep(50 * time.Millisecond)
		require.Same(t, s, b.session(chat), "session dropped after %d touches", i+1)
	}
	assert.Equal(t, panel.FolderAutokey, b.session(chat).ctrl.State().CurrentFolder)

	time.Sleep(600 * time.Millisecond)
	fresh := b.session(chat)
	assert.NotSame(t, s, fresh)
	assert.Equal(t, panel.FolderDownloads, fresh.ctrl.State().CurrentFolder)
}
