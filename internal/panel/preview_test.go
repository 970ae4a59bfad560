package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpanel/internal/api"
)

func TestPreviewCron(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)
	p, err := PreviewSchedule(api.Task{ScheduleType: api.ScheduleCron, CronExpression: "0 8 * * *"}, 3, now)
	require.NoError(t, err)
	assert.Equal(t, api.ScheduleCron, p.Type)
	assert.Equal(t, []time.Time{
		time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC),
	}, p.Next)

	p, err = PreviewSchedule(api.Task{CronExpression: "@hourly"}, 2, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), p.Next[0])

	_, err = PreviewSchedule(api.Task{CronExpression: "0 8 * *"}, 1, now)
	assert.Error(t, err)
	_, err = PreviewSchedule(api.Task{CronExpression: "0 0 8 * * *"}, 1, now)
	assert.Error(t, err, "seconds field is not part of the crontab dialect")
	_, err = PreviewSchedule(api.Task{}, 1, now)
	assert.Error(t, err)
}

func TestPreviewRandomWindows(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	p, err := PreviewSchedule(api.Task{ScheduleType: api.ScheduleRandom, RandomStart: "08:00", RandomEnd: "09:00"}, 2, now)
	require.NoError(t, err)
	assert.Equal(t, "once a day at a random time between 08:00 and 09:00", p.Description)
	require.Len(t, p.Windows, 2)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), p.Windows[0].From)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), p.Windows[0].To)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), p.Windows[1].From)
}

func TestPreviewRandomAcrossMidnight(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	p, err := PreviewSchedule(api.Task{ScheduleType: api.ScheduleRandom, RandomStart: "23:00", RandomEnd: "01:00"}, 1, now)
	require.NoError(t, err)
	require.Len(t, p.Windows, 1)
	assert.Equal(t, time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), p.Windows[0].From)
	assert.Equal(t, time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC), p.Windows[0].To)

	_, err = PreviewSchedule(api.Task{ScheduleType: api.ScheduleRandom, RandomStart: "8am", RandomEnd: "09:00"}, 1, now)
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	d, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+5*time.Minute, d)
	assert.Equal(t, "07:05", formatClock(d))
	_, err = ParseClock("25:00")
	assert.Error(t, err)
}
