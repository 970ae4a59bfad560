package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ScheduleType string

const (
	ScheduleCron   ScheduleType = "cron"
	ScheduleRandom ScheduleType = "random"
)

// ParseScheduleType maps user input to a ScheduleType. Empty means cron.
func ParseScheduleType(s string) (ScheduleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cron":
		return ScheduleCron, nil
	case "random":
		return ScheduleRandom, nil
	default:
		return "", fmt.Errorf("unknown schedule type %q (want cron or random)", s)
	}
}

// Task is the backend's job definition. The client only ever holds a
// short-lived copy.
type Task struct {
	ID             int64        `json:"id,omitempty"`
	Name           string       `json:"name"`
	ScriptPath     string       `json:"script_path"`
	ScheduleType   ScheduleType `json:"schedule_type"`
	CronExpression string       `json:"cron_expression"`
	RandomStart    string       `json:"random_start"`
	RandomEnd      string       `json:"random_end"`
	Enabled        bool         `json:"enabled"`

	// Read-only; ignored by the backend on write.
	LastRun   *Timestamp `json:"last_run,omitempty"`
	CreatedAt *Timestamp `json:"created_at,omitempty"`
}

// normalize fills defaults the backend leaves implicit. Rows created before
// random schedules existed carry no schedule_type and are cron tasks.
func (t *Task) normalize() {
	if strings.TrimSpace(string(t.ScheduleType)) == "" {
		t.ScheduleType = ScheduleCron
	}
}

// Script is a selectable script_path value.
type Script struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ScriptFile is one entry of a file-manager folder listing.
type ScriptFile struct {
	Name     string    `json:"name"`
	Path     string    `json:"path,omitempty"`
	Size     int64     `json:"size"`
	Modified Timestamp `json:"modified"`
}

// Result is the mutation envelope.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	TaskID  int64  `json:"task_id,omitempty"`
}

type fileList struct {
	Files []ScriptFile `json:"files"`
}

type fileContent struct {
	Content string `json:"content"`
}

type saveFileRequest struct {
	Folder   string `json:"folder"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Timestamp accepts the shapes the backend emits for times: RFC3339,
// naive ISO-8601 (Python isoformat without zone, read as UTC), unix seconds
// as a number, or null.
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	if b[0] != '"' {
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		sec := int64(f)
		ts.Time = time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.Time = t
		return nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}
