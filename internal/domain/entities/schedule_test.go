package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeTimeStatus(t *testing.T) {
	// Monday 4 March 2024
	monday := func(hh, mm int) time.Time {
		return time.Date(2024, 3, 4, hh, mm, 0, 0, time.Local)
	}

	tests := []struct {
		name string
		rng  string
		day  int
		now  time.Time
		want TimeStatus
	}{
		{"before start", "08:00-09:40", 1, monday(7, 30), TimeStatusUpcoming},
		{"at start", "08:00-09:40", 1, monday(8, 0), TimeStatusOngoing},
		{"inside", "08:00-09:40", 1, monday(9, 0), TimeStatusOngoing},
		{"at end", "08:00-09:40", 1, monday(9, 40), TimeStatusOngoing},
		{"after end", "08:00-09:40", 1, monday(10, 0), TimeStatusFinished},
		{"other day", "08:00-09:40", 3, monday(9, 0), TimeStatusNone},
		{"malformed", "pagi", 1, monday(9, 0), TimeStatusNone},
		{"bad clock", "08:xx-09:40", 1, monday(9, 0), TimeStatusNone},
		{"weekend maps to monday", "08:00-09:40", 1, time.Date(2024, 3, 9, 9, 0, 0, 0, time.Local), TimeStatusOngoing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTimeStatus(tt.rng, tt.day, tt.now))
		})
	}
}

func TestMappedWeekday(t *testing.T) {
	assert.Equal(t, 1, MappedWeekday(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, MappedWeekday(time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, MappedWeekday(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestScheduleDayNeverNil(t *testing.T) {
	s := Schedule{}
	assert.NotNil(t, s.Day(2))
	assert.Empty(t, s.Day(2))

	sample := SampleSchedule()
	assert.Len(t, sample.Day(1), 2)

	clone := sample.Clone()
	clone[1][0].CourseName = "changed"
	assert.Equal(t, "Algoritma", sample[1][0].CourseName)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Algoritma", ScheduleItem{CourseName: " Algoritma "}.DisplayName())
	assert.Equal(t, "Mata Kuliah", ScheduleItem{}.DisplayName())
}
