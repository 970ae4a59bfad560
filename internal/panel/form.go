package panel

import (
	"fmt"
	"strings"

	"taskpanel/internal/api"
)

// Field names a task form input.
type Field string

const (
	FieldName        Field = "name"
	FieldScriptPath  Field = "script_path"
	FieldCron        Field = "cron_expression"
	FieldRandomStart Field = "random_start"
	FieldRandomEnd   Field = "random_end"
)

// TaskForm is the add/edit task modal. The schedule type switch decides
// which of the two schedule input groups is shown and required.
type TaskForm struct {
	Name           string
	ScriptPath     string
	CronExpression string
	RandomStart    string
	RandomEnd      string
	Enabled        bool

	scheduleType api.ScheduleType
}

// NewTaskForm returns the blank form: cron schedule, enabled.
func NewTaskForm() TaskForm {
	return TaskForm{Enabled: true, scheduleType: api.ScheduleCron}
}

// FormFromTask fills a form from a fetched task, including the toggle.
func FormFromTask(t api.Task) TaskForm {
	f := TaskForm{
		Name:           t.Name,
		ScriptPath:     t.ScriptPath,
		CronExpression: t.CronExpression,
		RandomStart:    t.RandomStart,
		RandomEnd:      t.RandomEnd,
		Enabled:        t.Enabled,
	}
	f.SetScheduleType(t.ScheduleType)
	return f
}

func (f TaskForm) ScheduleType() api.ScheduleType {
	if f.scheduleType == "" {
		return api.ScheduleCron
	}
	return f.scheduleType
}

// SetScheduleType flips the toggle. Anything but random is cron. Values
// typed into the hidden group are kept so toggling back restores them.
func (f *TaskForm) SetScheduleType(st api.ScheduleType) {
	if st == api.ScheduleRandom {
		f.scheduleType = api.ScheduleRandom
		return
	}
	f.scheduleType = api.ScheduleCron
}

// Visible reports whether the input is shown for the current toggle.
func (f TaskForm) Visible(field Field) bool {
	switch field {
	case FieldCron:
		return f.ScheduleType() == api.ScheduleCron
	case FieldRandomStart, FieldRandomEnd:
		return f.ScheduleType() == api.ScheduleRandom
	default:
		return true
	}
}

// Required reports whether the input must be non-empty to submit.
func (f TaskForm) Required(field Field) bool {
	switch field {
	case FieldName, FieldScriptPath:
		return true
	default:
		return f.Visible(field)
	}
}

func (f TaskForm) value(field Field) string {
	switch field {
	case FieldName:
		return f.Name
	case FieldScriptPath:
		return f.ScriptPath
	case FieldCron:
		return f.CronExpression
	case FieldRandomStart:
		return f.RandomStart
	case FieldRandomEnd:
		return f.RandomEnd
	}
	return ""
}

var formFields = []Field{FieldName, FieldScriptPath, FieldCron, FieldRandomStart, FieldRandomEnd}

// Missing lists required inputs that are empty.
func (f TaskForm) Missing() []Field {
	var out []Field
	for _, field := range formFields {
		if f.Required(field) && strings.TrimSpace(f.value(field)) == "" {
			out = append(out, field)
		}
	}
	return out
}

// Validate checks required fields only; everything else is the backend's
// call.
func (f TaskForm) Validate() error {
	missing := f.Missing()
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, m := range missing {
		names[i] = string(m)
	}
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(names, ", "))
}

// Payload serializes the form. Only the visible schedule group is sent;
// the hidden one goes out empty.
func (f TaskForm) Payload() api.Task {
	t := api.Task{
		Name:         strings.TrimSpace(f.Name),
		ScriptPath:   strings.TrimSpace(f.ScriptPath),
		ScheduleType: f.ScheduleType(),
		Enabled:      f.Enabled,
	}
	if t.ScheduleType == api.ScheduleRandom {
		t.RandomStart = strings.TrimSpace(f.RandomStart)
		t.RandomEnd = strings.TrimSpace(f.RandomEnd)
	} else {
		t.CronExpression = strings.TrimSpace(f.CronExpression)
	}
	return t
}
