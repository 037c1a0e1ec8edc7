package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad/core/internal/domain/entities"
)

func at(day time.Time, hh, mm int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hh, mm, 0, 0, day.Location())
}

func TestAddCourseSchedulesOneReminder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	courses, err := env.attendance.AddCourse(ctx, "2101", " Algoritma ", "IF101")
	require.NoError(t, err)
	require.Len(t, courses, 1)

	c := courses[0]
	assert.Equal(t, "Algoritma", c.Name)
	assert.Equal(t, "2101", c.OwnerNIM)
	assert.Empty(t, c.Attendances)
	require.True(t, c.HasReminder())
	assert.True(t, env.notifier.isLive(c.NotificationID))

	live := env.notifier.liveWithTitle(reminderTitle)
	require.Len(t, live, 1)
	assert.Equal(t, "Belum presensi: Algoritma", live[0].content.Body)
	assert.Equal(t, 8, live[0].trigger.Hour)
	assert.True(t, live[0].trigger.Repeats)

	_, err = env.attendance.AddCourse(ctx, "2101", "  ", "")
	assert.ErrorIs(t, err, entities.ErrCourseNameRequired)
}

func TestMarkAttendanceMovesReminderPastToday(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.clock.set(at(monday9, 7, 0))

	courses, err := env.attendance.AddCourse(ctx, "2101", "Algoritma", "")
	require.NoError(t, err)
	id := courses[0].ID

	live := env.notifier.liveWithTitle(reminderTitle)
	require.Len(t, live, 1)
	assert.Equal(t, at(monday9, 8, 0), live[0].trigger.NotBefore)

	for i := 0; i < 2; i++ {
		courses, err = env.attendance.MarkAttendance(ctx, "2101", id)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, courses[0].AttendanceCount())
	live = env.notifier.liveWithTitle(reminderTitle)
	require.Len(t, live, 1)
	assert.Equal(t, at(monday9, 8, 0).AddDate(0, 0, 1), live[0].trigger.NotBefore)
	assert.True(t, env.notifier.isLive(courses[0].NotificationID))

	_, err = env.attendance.MarkAttendance(ctx, "2101", "missing")
	assert.ErrorIs(t, err, entities.ErrCourseNotFound)
}

func TestAttendanceIsPerUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	courses, err := env.attendance.AddCourse(ctx, "2101", "Algoritma", "")
	require.NoError(t, err)
	_, err = env.attendance.MarkAttendance(ctx, "2101", courses[0].ID)
	require.NoError(t, err)

	assert.Empty(t, env.attendance.Courses(ctx, "2102"))
	assert.Len(t, env.attendance.Courses(ctx, "2101"), 1)
}

func TestRemoveCourseCancelsReminder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	courses, err := env.attendance.AddCourse(ctx, "2101", "Algoritma", "")
	require.NoError(t, err)
	handle := courses[0].NotificationID

	left, err := env.attendance.RemoveCourse(ctx, "2101", courses[0].ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.False(t, env.notifier.isLive(handle))
	assert.Empty(t, env.notifier.liveWithTitle(reminderTitle))

	_, err = env.attendance.RemoveCourse(ctx, "2101", courses[0].ID)
	assert.ErrorIs(t, err, entities.ErrCourseNotFound)
}

func TestSetReminderTimeReschedulesEveryCourse(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.attendance.AddCourse(ctx, "2101", "Algoritma", "")
	require.NoError(t, err)
	_, err = env.attendance.AddCourse(ctx, "2101", "Basis Data", "")
	require.NoError(t, err)

	courses, err := env.attendance.SetReminderTime(ctx, "2101", "7:05")
	require.NoError(t, err)
	require.Len(t, courses, 2)

	hh, mm := env.attendance.ReminderTime(ctx)
	assert.Equal(t, []int{7, 5}, []int{hh, mm})

	live := env.notifier.liveWithTitle(reminderTitle)
	require.Len(t, live, 2)
	for _, s := range live {
		assert.Equal(t, 7, s.trigger.Hour)
		assert.Equal(t, 5, s.trigger.Minute)
	}

	_, err = env.attendance.SetReminderTime(ctx, "2101", "pagi")
	assert.ErrorIs(t, err, entities.ErrInvalidReminderTime)
}

func TestSuspendRemindersCancelsHandles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.attendance.AddCourse(ctx, "2101", "Algoritma", "")
	require.NoError(t, err)

	env.attendance.SuspendReminders(ctx, "2101")
	assert.Empty(t, env.notifier.liveWithTitle(reminderTitle))
	assert.False(t, env.attendance.Courses(ctx, "2101")[0].HasReminder())

	restored := env.attendance.RestoreReminders(ctx, "2101")
	require.Len(t, restored, 1)
	assert.True(t, restored[0].HasReminder())
	assert.Len(t, env.notifier.liveWithTitle(reminderTitle), 1)
}

func TestDailySummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first := env.attendance.ScheduleDailySummary(ctx)
	second := env.attendance.ScheduleDailySummary(ctx)
	require.NotEmpty(t, second)
	assert.False(t, env.notifier.isLive(first))

	live := env.notifier.liveWithTitle(summaryTitle)
	require.Len(t, live, 1)
	assert.Equal(t, "Anda ada 2 perkuliahan hari ini: Algoritma, Matematika", live[0].content.Body)

	// Tuesday has no classes in the sample schedule
	env.clock.set(monday9.AddDate(0, 0, 1))
	assert.Empty(t, env.attendance.ScheduleDailySummary(ctx))
	assert.Empty(t, env.notifier.liveWithTitle(summaryTitle))
}

func TestScheduleEditsRefreshSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sched, err := env.attendance.AddScheduleItem(ctx, 1, entities.ScheduleItem{CourseName: "Jaringan", TimeRange: "13:00-14:00"})
	require.NoError(t, err)
	require.Len(t, sched.Day(1), 3)
	assert.NotEmpty(t, sched.Day(1)[0].ID)

	live := env.notifier.liveWithTitle(summaryTitle)
	require.Len(t, live, 1)
	assert.Equal(t, "Anda ada 3 perkuliahan hari ini: Jaringan, Algoritma, Matematika", live[0].content.Body)

	_, err = env.attendance.RemoveScheduleItem(ctx, 1, "s1")
	require.NoError(t, err)
	assert.Len(t, env.attendance.Schedule(ctx).Day(1), 2)

	_, err = env.attendance.RemoveScheduleItem(ctx, 1, "s1")
	assert.ErrorIs(t, err, entities.ErrScheduleItemMissing)
	_, err = env.attendance.AddScheduleItem(ctx, 6, entities.ScheduleItem{CourseName: "x"})
	assert.ErrorIs(t, err, entities.ErrInvalidDay)
	_, err = env.attendance.AddScheduleItem(ctx, 2, entities.ScheduleItem{})
	assert.ErrorIs(t, err, entities.ErrCourseNameRequired)
}

func TestScheduleStatus(t *testing.T) {
	env := newTestEnv(t)

	items, err := env.attendance.ScheduleStatus(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, entities.TimeStatusOngoing, items[0].Status)
	assert.Equal(t, entities.TimeStatusUpcoming, items[1].Status)

	items, err = env.attendance.ScheduleStatus(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, entities.TimeStatusNone, items[0].Status)

	_, err = env.attendance.ScheduleStatus(context.Background(), 0)
	assert.ErrorIs(t, err, entities.ErrInvalidDay)
}

func TestSummaryContentListsFiveNames(t *testing.T) {
	items := make([]entities.ScheduleItem, 0, 7)
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		items = append(items, entities.ScheduleItem{CourseName: n})
	}
	items = append(items, entities.ScheduleItem{})

	got := SummaryContent(items)
	assert.Equal(t, summaryTitle, got.Title)
	assert.Equal(t, "Anda ada 8 perkuliahan hari ini: A, B, C, D, E", got.Body)
}

func TestParseReminderTime(t *testing.T) {
	tests := []struct {
		in     string
		hh, mm int
	}{
		{"", 8, 0},
		{"07:30", 7, 30},
		{"7:5", 7, 5},
		{"29:75", 23, 59},
		{"-1:10", 0, 10},
		{"malam", 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hh, mm := ParseReminderTime(tt.in)
			assert.Equal(t, tt.hh, hh)
			assert.Equal(t, tt.mm, mm)
		})
	}
}

func TestNextFire(t *testing.T) {
	assert.Equal(t, at(monday9, 10, 0), NextFire(monday9, 10, 0))
	assert.Equal(t, at(monday9, 8, 0).AddDate(0, 0, 1), NextFire(monday9, 8, 0))
	assert.Equal(t, at(monday9, 9, 0).AddDate(0, 0, 1), NextFire(monday9, 9, 0))
}
