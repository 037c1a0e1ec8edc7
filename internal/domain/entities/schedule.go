package entities

import (
	"strconv"
	"strings"
	"time"
)

// TimeStatus is the badge shown next to a schedule item.
type TimeStatus string

const (
	TimeStatusNone     TimeStatus = "none"
	TimeStatusUpcoming TimeStatus = "upcoming"
	TimeStatusOngoing  TimeStatus = "ongoing"
	TimeStatusFinished TimeStatus = "finished"
)

// ScheduleItem represents one class slot
type ScheduleItem struct {
	ID         string `json:"id"`
	CourseName string `json:"mk"`
	TimeRange  string `json:"jam"`
	Room       string `json:"ruang"`
	Lecturer   string `json:"dosen"`
}

// DisplayName is the course name used in digests.
func (s ScheduleItem) DisplayName() string {
	if name := strings.TrimSpace(s.CourseName); name != "" {
		return name
	}
	return "Mata Kuliah"
}

// Schedule maps weekday index 1 (Monday) .. 5 (Friday) to its classes.
type Schedule map[int][]ScheduleItem

// Day returns the items of day, never nil.
func (s Schedule) Day(day int) []ScheduleItem {
	if items, ok := s[day]; ok && items != nil {
		return items
	}
	return []ScheduleItem{}
}

// Clone deep-copies the schedule.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for day, items := range s {
		out[day] = append([]ScheduleItem(nil), items...)
	}
	return out
}

// ValidDay reports whether day is a weekday index.
func ValidDay(day int) bool {
	return day >= 1 && day <= 5
}

// SampleSchedule is shown until the student saves a schedule of their own.
func SampleSchedule() Schedule {
	return Schedule{
		1: {
			{ID: "s1", CourseName: "Algoritma", TimeRange: "08:00-09:40", Room: "R101", Lecturer: "Dr. A"},
			{ID: "s2", CourseName: "Matematika", TimeRange: "10:00-11:30", Room: "R102", Lecturer: "Dr. B"},
		},
		2: {},
		3: {
			{ID: "s3", CourseName: "Basis Data", TimeRange: "13:00-14:40", Room: "R201", Lecturer: "Ibu C"},
		},
		4: {},
		5: {},
	}
}

// MappedWeekday maps Monday..Friday to 1..5. Weekends fall back to Monday.
func MappedWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd >= 1 && wd <= 5 {
		return wd
	}
	return 1
}

// ComputeTimeStatus places now relative to a "HH:MM-HH:MM" range. It only
// answers for the mapped weekday of now; any other day, or a malformed range,
// yields TimeStatusNone.
func ComputeTimeStatus(timeRange string, day int, now time.Time) TimeStatus {
	if day != MappedWeekday(now) {
		return TimeStatusNone
	}
	startStr, endStr, ok := strings.Cut(timeRange, "-")
	if !ok {
		return TimeStatusNone
	}
	start, ok := clockOn(now, startStr)
	if !ok {
		return TimeStatusNone
	}
	end, ok := clockOn(now, endStr)
	if !ok {
		return TimeStatusNone
	}

	switch {
	case now.After(end):
		return TimeStatusFinished
	case !now.Before(start):
		return TimeStatusOngoing
	default:
		return TimeStatusUpcoming
	}
}

// clockOn resolves "HH:MM" to that wall clock time on the date of base.
func clockOn(base time.Time, hhmm string) (time.Time, bool) {
	hh, mm, ok := ParseClock(hhmm)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := base.Date()
	return time.Date(y, m, d, hh, mm, 0, 0, base.Location()), true
}

// ParseClock parses "HH:MM" without range checks beyond what Atoi accepts.
func ParseClock(s string) (int, int, bool) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, false
	}
	mm, err := strconv.Atoi(strings.TrimSpace(ms))
	if err != nil {
		return 0, 0, false
	}
	return hh, mm, true
}
