package panel

import (
	"context"

	"taskpanel/internal/api"
)

const (
	MsgTaskStarted   = "Task started"
	MsgConfirmDelete = "Delete this task?"
)

// OpenAddTask shows the modal with a blank cron form.
func (c *Controller) OpenAddTask() {
	c.state.CurrentTaskID = 0
	c.state.Form = NewTaskForm()
	c.state.TaskModalTitle = TitleAddTask
	c.state.TaskModalOpen = true
}

// GetTask fetches one task. A failure is alerted as "Load failed".
func (c *Controller) GetTask(ctx context.Context, id int64) (api.Task, error) {
	if id <= 0 {
		return api.Task{}, ErrNoTask
	}
	var t api.Task
	err := c.call(ctx, ActionTaskGet, taskTarget(id), func(ctx context.Context) (err error) {
		t, err = c.backend.GetTask(ctx, id)
		return err
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Load failed", err))
		return api.Task{}, err
	}
	return t, nil
}

// OpenEditTask fetches the task and shows it in the modal.
func (c *Controller) OpenEditTask(ctx context.Context, id int64) (TaskForm, error) {
	t, err := c.GetTask(ctx, id)
	if err != nil {
		return TaskForm{}, err
	}
	c.state.CurrentTaskID = id
	c.state.Form = FormFromTask(t)
	c.state.TaskModalTitle = TitleEditTask
	c.state.TaskModalOpen = true
	return c.state.Form, nil
}

func (c *Controller) CloseTaskModal() {
	c.state.TaskModalOpen = false
}

// SetScheduleType flips the open form's toggle. No request is made.
func (c *Controller) SetScheduleType(st api.ScheduleType) {
	c.state.Form.SetScheduleType(st)
}

// SubmitTask creates a task when the modal was opened for a new one and
// updates CurrentTaskID otherwise.
func (c *Controller) SubmitTask(ctx context.Context, f TaskForm) error {
	c.state.Form = f
	if c.state.CurrentTaskID == 0 {
		_, err := c.CreateTask(ctx, f)
		return err
	}
	return c.UpdateTask(ctx, c.state.CurrentTaskID, f)
}

// CreateTask posts the form and reloads the view on success. It returns the
// new task id when the backend reports one.
func (c *Controller) CreateTask(ctx context.Context, f TaskForm) (int64, error) {
	if err := f.Validate(); err != nil {
		c.alert.Alert(ctx, err.Error())
		return 0, err
	}
	var id int64
	err := c.call(ctx, ActionTaskCreate, f.Payload().Name, func(ctx context.Context) (err error) {
		id, err = c.backend.CreateTask(ctx, f.Payload())
		return err
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Save failed", err))
		return 0, err
	}
	c.CloseTaskModal()
	c.doReload(ctx)
	return id, nil
}

func (c *Controller) UpdateTask(ctx context.Context, id int64, f TaskForm) error {
	if id <= 0 {
		return ErrNoTask
	}
	if err := f.Validate(); err != nil {
		c.alert.Alert(ctx, err.Error())
		return err
	}
	err := c.call(ctx, ActionTaskUpdate, taskTarget(id), func(ctx context.Context) error {
		return c.backend.UpdateTask(ctx, id, f.Payload())
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Save failed", err))
		return err
	}
	c.CloseTaskModal()
	c.doReload(ctx)
	return nil
}

// DeleteTask asks first; a declined or failed confirmation sends nothing.
func (c *Controller) DeleteTask(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNoTask
	}
	ok, err := c.confirm.Confirm(ctx, MsgConfirmDelete)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	err = c.call(ctx, ActionTaskDelete, taskTarget(id), func(ctx context.Context) error {
		return c.backend.DeleteTask(ctx, id)
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Delete failed", err))
		return err
	}
	c.doReload(ctx)
	return nil
}

// RunTaskNow triggers an immediate run and reports only whether the
// backend accepted it.
func (c *Controller) RunTaskNow(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNoTask
	}
	err := c.call(ctx, ActionTaskRun, taskTarget(id), func(ctx context.Context) error {
		return c.backend.RunTask(ctx, id)
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Run failed", err))
		return err
	}
	c.alert.Alert(ctx, MsgTaskStarted)
	return nil
}

func (c *Controller) ToggleTask(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNoTask
	}
	err := c.call(ctx, ActionTaskToggle, taskTarget(id), func(ctx context.Context) error {
		return c.backend.ToggleTask(ctx, id)
	})
	if err != nil {
		c.alert.Alert(ctx, alertText("Toggle failed", err))
		return err
	}
	c.doReload(ctx)
	return nil
}

// ListTasks feeds the front-end's view reload. It does not alert; the
// caller renders the error in place of the list.
func (c *Controller) ListTasks(ctx context.Context) ([]api.Task, error) {
	var out []api.Task
	err := c.call(ctx, ActionTaskList, "", func(ctx context.Context) (err error) {
		out, err = c.backend.ListTasks(ctx)
		return err
	})
	return out, err
}

// ListScripts returns the selectable script paths for the task form.
func (c *Controller) ListScripts(ctx context.Context) ([]api.Script, error) {
	var out []api.Script
	err := c.call(ctx, ActionScriptList, "", func(ctx context.Context) (err error) {
		out, err = c.backend.ListScripts(ctx)
		return err
	})
	return out, err
}
