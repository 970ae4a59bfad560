package panel

import (
	"context"
	"fmt"
	"sync"

	"taskpanel/internal/api"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	tasks map[int64]api.Task
	files map[string][]api.ScriptFile
	body  map[string]string

	created api.Task
	updated api.Task
	saved   [3]string

	failWith error
	nextID   int64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tasks:  map[int64]api.Task{},
		files:  map[string][]api.ScriptFile{},
		body:   map[string]string{},
		nextID: 1,
	}
}

func (f *fakeBackend) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.failWith
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]api.Task, error) {
	if err := f.record("GET /api/tasks"); err != nil {
		return nil, err
	}
	out := make([]api.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeBackend) GetTask(ctx context.Context, id int64) (api.Task, error) {
	if err := f.record("GET /api/tasks/%d", id); err != nil {
		return api.Task{}, err
	}
	t, ok := f.tasks[id]
	if !ok {
		return api.Task{}, &api.APIError{Op: "get_task", Status: 404, Message: "get_task: 404 Not Found"}
	}
	return t, nil
}

func (f *fakeBackend) CreateTask(ctx context.Context, t api.Task) (int64, error) {
	if err := f.record("POST /api/tasks"); err != nil {
		return 0, err
	}
	f.created = t
	id := f.nextID
	f.nextID++
	t.ID = id
	f.tasks[id] = t
	return id, nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, id int64, t api.Task) error {
	if err := f.record("PUT /api/tasks/%d", id); err != nil {
		return err
	}
	f.updated = t
	return nil
}

func (f *fakeBackend) DeleteTask(ctx context.Context, id int64) error {
	return f.record("DELETE /api/tasks/%d", id)
}

func (f *fakeBackend) RunTask(ctx context.Context, id int64) error {
	return f.record("POST /api/tasks/%d/run", id)
}

func (f *fakeBackend) ToggleTask(ctx context.Context, id int64) error {
	return f.record("POST /api/tasks/%d/toggle", id)
}

func (f *fakeBackend) ListScripts(ctx context.Context) ([]api.Script, error) {
	if err := f.record("GET /api/scripts"); err != nil {
		return nil, err
	}
	return []api.Script{{Name: "a.side", Path: "/d/a.side"}}, nil
}

func (f *fakeBackend) ListFiles(ctx context.Context, folder string) ([]api.ScriptFile, error) {
	if err := f.record("GET /api/files?folder=%s", folder); err != nil {
		return nil, err
	}
	return f.files[folder], nil
}

func (f *fakeBackend) DeleteFile(ctx context.Context, folder, filename string) error {
	return f.record("DELETE /api/files?folder=%s&filename=%s", folder, filename)
}

func (f *fakeBackend) ReadFile(ctx context.Context, folder, filename string) (string, error) {
	if err := f.record("GET /api/files/content?folder=%s&filename=%s", folder, filename); err != nil {
		return "", err
	}
	return f.body[folder+"/"+filename], nil
}

func (f *fakeBackend) SaveFile(ctx context.Context, folder, filename, content string) error {
	if err := f.record("POST /api/files %s/%s", folder, filename); err != nil {
		return err
	}
	f.saved = [3]string{folder, filename, content}
	return nil
}

type fakeUI struct {
	answer  bool
	prompts []string
	alerts  []string
	reloads int
}

func (u *fakeUI) Confirm(ctx context.Context, prompt string) (bool, error) {
	u.prompts = append(u.prompts, prompt)
	return u.answer, nil
}

func (u *fakeUI) Alert(ctx context.Context, msg string) { u.alerts = append(u.alerts, msg) }

func (u *fakeUI) Reload(ctx context.Context) error {
	u.reloads++
	return nil
}

func (u *fakeUI) ports() Ports { return Ports{Confirmer: u, Alerter: u, Reloader: u} }
