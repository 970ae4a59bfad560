package panel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/api"
	"taskpanel/internal/eventbus"
)

func filledForm() TaskForm {
	f := NewTaskForm()
	f.Name = "daily"
	f.ScriptPath = "/d/a.side"
	f.CronExpression = "0 8 * * *"
	return f
}

func TestOpenAddTaskResetsModal(t *testing.T) {
	t.Parallel()

	c := New(newFakeBackend(), Ports{})
	c.state.CurrentTaskID = 9
	c.state.Form.Name = "stale"
	c.OpenAddTask()

	st := c.State()
	assert.True(t, st.TaskModalOpen)
	assert.Equal(t, TitleAddTask, st.TaskModalTitle)
	assert.Equal(t, int64(0), st.CurrentTaskID)
	assert.Empty(t, st.Form.Name)
	assert.Equal(t, api.ScheduleCron, st.Form.ScheduleType())

	c.CloseTaskModal()
	assert.False(t, c.State().TaskModalOpen)
}

func TestSubmitCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	ui := &fakeUI{}
	c := New(be, ui.ports())
	ctx := context.Background()

	c.OpenAddTask()
	require.NoError(t, c.SubmitTask(ctx, filledForm()))
	assert.Equal(t, []string{"POST /api/tasks"}, be.Calls())
	assert.Equal(t, 1, ui.reloads)
	assert.False(t, c.State().TaskModalOpen)
	assert.Equal(t, "daily", be.created.Name)

	form, err := c.OpenEditTask(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, TitleEditTask, c.State().TaskModalTitle)
	assert.Equal(t, int64(1), c.State().CurrentTaskID)
	form.Name = "renamed"
	require.NoError(t, c.SubmitTask(ctx, form))
	assert.Equal(t, []string{"POST /api/tasks", "GET /api/tasks/1", "PUT /api/tasks/1"}, be.Calls())
	assert.Equal(t, "renamed", be.updated.Name)
	assert.Equal(t, 2, ui.reloads)
}

func TestSubmitInvalidFormSendsNothing(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	ui := &fakeUI{}
	c := New(be, ui.ports())
	c.OpenAddTask()

	f := filledForm()
	f.SetScheduleType(api.ScheduleRandom)
	err := c.SubmitTask(context.Background(), f)
	require.ErrorIs(t, err, ErrMissingField)
	assert.Empty(t, be.Calls())
	require.Len(t, ui.alerts, 1)
	assert.Contains(t, ui.alerts[0], "random_start")
	assert.True(t, c.State().TaskModalOpen)
}

func TestFailedMutationAlertsServerErrorWithoutReload(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	be.failWith = &api.APIError{Op: "create_task", Status: 200, Message: "invalid cron expression"}
	ui := &fakeUI{}
	c := New(be, ui.ports())
	c.OpenAddTask()

	err := c.SubmitTask(context.Background(), filledForm())
	require.Error(t, err)
	assert.Equal(t, 0, ui.reloads)
	assert.Equal(t, []string{"Save failed: invalid cron expression"}, ui.alerts)
	assert.True(t, c.State().TaskModalOpen)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	be := newFakeBackend()
	ui := &fakeUI{answer: false}
	c := New(be, ui.ports())
	require.ErrorIs(t, c.DeleteTask(ctx, 3), ErrCancelled)
	require.ErrorIs(t, c.DeleteFile(ctx, FolderDownloads, "a.py"), ErrCancelled)
	assert.Empty(t, be.Calls())
	assert.Equal(t, []string{MsgConfirmDelete, MsgConfirmDeleteFile}, ui.prompts)
	assert.Equal(t, 0, ui.reloads)

	ui.answer = true
	require.NoError(t, c.DeleteTask(ctx, 3))
	assert.Equal(t, []string{"DELETE /api/tasks/3"}, be.Calls())
	assert.Equal(t, 1, ui.reloads)

	require.NoError(t, c.DeleteFile(ctx, FolderAutokey, "b.py"))
	assert.Equal(t, []string{
		"DELETE /api/tasks/3",
		"DELETE /api/files?folder=autokey&filename=b.py",
		"GET /api/files?folder=downloads",
	}, be.Calls())
}

func TestDeleteWithoutConfirmerSendsNothing(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	c := New(be, Ports{})
	require.ErrorIs(t, c.DeleteTask(context.Background(), 1), ErrCancelled)
	assert.Empty(t, be.Calls())
}

func TestRunTaskNowOnlyReportsOutcome(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	ui := &fakeUI{}
	c := New(be, ui.ports())
	ctx := context.Background()

	require.NoError(t, c.RunTaskNow(ctx, 5))
	assert.Equal(t, []string{MsgTaskStarted}, ui.alerts)
	assert.Equal(t, 0, ui.reloads)

	be.failWith = errors.New("run_task: dial tcp: connection refused")
	require.Error(t, c.RunTaskNow(ctx, 5))
	assert.Equal(t, "Run failed: run_task: dial tcp: connection refused", ui.alerts[1])
	assert.Equal(t, []string{"POST /api/tasks/5/run", "POST /api/tasks/5/run"}, be.Calls())

	require.ErrorIs(t, c.RunTaskNow(ctx, 0), ErrNoTask)
}

func TestToggleReloadsOnSuccess(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	ui := &fakeUI{}
	c := New(be, ui.ports())
	require.NoError(t, c.ToggleTask(context.Background(), 2))
	assert.Equal(t, []string{"POST /api/tasks/2/toggle"}, be.Calls())
	assert.Equal(t, 1, ui.reloads)
}

func TestSwitchFolderFetchesOnlyThatFolder(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	be.files["downloads"] = []api.ScriptFile{{Name: "a.side"}}
	be.files["autokey"] = []api.ScriptFile{{Name: "k.py"}, {Name: "j.py"}}
	c := New(be, Ports{})
	ctx := context.Background()
	assert.Equal(t, FolderDownloads, c.State().CurrentFolder)

	_, err := c.SwitchFolder(ctx, FolderDownloads)
	require.NoError(t, err)
	assert.Equal(t, []api.ScriptFile{{Name: "a.side"}}, c.State().Files)

	files, err := c.SwitchFolder(ctx, FolderAutokey)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, FolderAutokey, c.State().CurrentFolder)
	assert.Equal(t, files, c.State().Files)
	assert.Equal(t, []string{"GET /api/files?folder=downloads", "GET /api/files?folder=autokey"}, be.Calls())
}

func TestSwitchFolderFailureClearsListing(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	be.files["downloads"] = []api.ScriptFile{{Name: "a.side"}}
	ui := &fakeUI{}
	c := New(be, ui.ports())
	ctx := context.Background()
	_, err := c.SwitchFolder(ctx, FolderDownloads)
	require.NoError(t, err)

	be.failWith = errors.New("list_files: timeout")
	_, err = c.SwitchFolder(ctx, FolderAutokey)
	require.Error(t, err)
	assert.Nil(t, c.State().Files)
	assert.Equal(t, []string{"Load files failed: list_files: timeout"}, ui.alerts)
}

func TestEditorSaveNormalizesAndRelists(t *testing.T) {
	t.Parallel()

	be := newFakeBackend()
	be.body["autokey/k.py"] = "print('k')"
	ui := &fakeUI{}
	c := New(be, ui.ports(), WithDefaultFolder(FolderAutokey))
	ctx := context.Background()

	sess, err := c.OpenFile(ctx, FolderAutokey, "k.py")
	require.NoError(t, err)
	assert.Equal(t, "print('k')", sess.Content)
	assert.True(t, c.State().EditorOpen)

	require.NoError(t, c.SaveEditor(ctx, "k2", "print(2)"))
	assert.Equal(t, [3]string{"autokey", "k2.py", "print(2)"}, be.saved)
	assert.False(t, c.State().EditorOpen)
	assert.Empty(t, c.State().Editor.Content)
	assert.Equal(t, []string{MsgFileSaved}, ui.alerts)
	assert.Equal(t, []string{
		"GET /api/files/content?folder=autokey&filename=k.py",
		"POST /api/files autokey/k2.py",
		"GET /api/files?folder=autokey",
	}, be.Calls())

	c.OpenNewFile()
	require.NoError(t, c.SaveEditor(ctx, "flow.side", ""))
	assert.Equal(t, "flow.side", be.saved[1])

	require.ErrorIs(t, c.SaveFile(ctx, FolderDownloads, "  ", "x"), ErrNoFile)
}

func TestActionsPublishEvents(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8, eventbus.TypePanelAction)
	defer unsub()

	be := newFakeBackend()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(10 * time.Millisecond)
		return tick
	}
	c := New(be, Ports{Alerter: &fakeUI{}}, WithBus(bus), WithClock(clock))
	ctx := WithActor(context.Background(), Actor{ID: 42, Username: "op"})

	require.NoError(t, c.RunTaskNow(ctx, 7))
	be.failWith = errors.New("boom")
	require.Error(t, c.ToggleTask(ctx, 7))

	ev := (<-ch).Data.(ActionEvent)
	assert.Equal(t, ActionTaskRun, ev.Action)
	assert.Equal(t, "task:7", ev.Target)
	assert.True(t, ev.OK)
	assert.Equal(t, 10*time.Millisecond, ev.Took)
	assert.Equal(t, int64(42), ev.Actor.ID)

	ev = (<-ch).Data.(ActionEvent)
	assert.Equal(t, ActionTaskToggle, ev.Action)
	assert.False(t, ev.OK)
	assert.Equal(t, "boom", ev.Err)
}
