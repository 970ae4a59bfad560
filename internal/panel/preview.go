package panel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"taskpanel/internal/api"
)

// cronParser accepts the 5-field crontab dialect plus @descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Window is one day's random run window.
type Window struct {
	From time.Time
	To   time.Time
}

// Preview describes upcoming runs of a task. It is informative only.
type Preview struct {
	Type        api.ScheduleType
	Description string
	// Next holds cron fire times.
	Next []time.Time
	// Windows holds the next random-run windows.
	Windows []Window
}

// PreviewSchedule computes the next n runs of t after now, in now's
// location.
func PreviewSchedule(t api.Task, n int, now time.Time) (Preview, error) {
	if n <= 0 {
		n = 5
	}
	if t.ScheduleType == api.ScheduleRandom {
		return previewRandom(t.RandomStart, t.RandomEnd, n, now)
	}
	return previewCron(t.CronExpression, n, now)
}

func previewCron(expr string, n int, now time.Time) (Preview, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Preview{}, errors.New("cron expression is empty")
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return Preview{}, fmt.Errorf("parse cron expr: %w", err)
	}
	p := Preview{Type: api.ScheduleCron, Description: "cron " + expr}
	next := now
	for i := 0; i < n; i++ {
		next = sched.Next(next)
		if next.IsZero() {
			break
		}
		p.Next = append(p.Next, next)
	}
	return p, nil
}

// previewRandom lists the next n daily windows. An end before the start
// means the window crosses midnight.
func previewRandom(start, end string, n int, now time.Time) (Preview, error) {
	from, err := ParseClock(start)
	if err != nil {
		return Preview{}, fmt.Errorf("random_start: %w", err)
	}
	to, err := ParseClock(end)
	if err != nil {
		return Preview{}, fmt.Errorf("random_end: %w", err)
	}
	span := to - from
	if span <= 0 {
		span += 24 * time.Hour
	}

	p := Preview{
		Type:        api.ScheduleRandom,
		Description: fmt.Sprintf("once a day at a random time between %s and %s", formatClock(from), formatClock(to)),
	}
	loc := now.Location()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	// Yesterday's window may still be open when it crosses midnight.
	day = day.AddDate(0, 0, -1)
	for len(p.Windows) < n {
		w := Window{From: addClock(day, from)}
		w.To = w.From.Add(span)
		if w.To.After(now) {
			p.Windows = append(p.Windows, w)
		}
		day = day.AddDate(0, 0, 1)
	}
	return p, nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

func addClock(day time.Time, d time.Duration) time.Time {
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}
