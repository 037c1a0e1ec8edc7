package entities

import (
	"time"
)

const dayKeyLayout = "2006-01-02"

// DayKey formats the local calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// AttendanceEntry is the composite per-user key stored in Course.Attendances.
func AttendanceEntry(day time.Time, nim string) string {
	if nim == "" {
		nim = DefaultOwnerNIM
	}
	return DayKey(day) + "|" + nim
}

// AttendedOn reports whether nim attended on day. Bare date entries written
// before attendance became per-user still count.
func (c *Course) AttendedOn(day time.Time, nim string) bool {
	key := DayKey(day)
	entry := AttendanceEntry(day, nim)
	for _, a := range c.Attendances {
		if a == key || a == entry {
			return true
		}
	}
	return false
}

// MarkAttendance appends today's entry for nim unless it is already present.
// It reports whether an entry was added.
func (c *Course) MarkAttendance(day time.Time, nim string) bool {
	entry := AttendanceEntry(day, nim)
	for _, a := range c.Attendances {
		if a == entry {
			return false
		}
	}
	c.Attendances = append(c.Attendances, entry)
	return true
}

// AttendanceCount is the number of recorded attendances.
func (c *Course) AttendanceCount() int {
	return len(c.Attendances)
}
