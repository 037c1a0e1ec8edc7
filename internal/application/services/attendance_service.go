package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/infrastructure/metrics"
	"github.com/siakad/core/internal/ports"
)

const (
	reminderTitle   = "Ingat Presensi"
	summaryTitle    = "Jadwal Hari Ini"
	summaryMaxNames = 5
)

var reminderTimePattern = regexp.MustCompile(`^[0-2]?\d:[0-5]\d$`)

// ScheduledItem is a class slot with its status relative to now.
type ScheduledItem struct {
	entities.ScheduleItem
	Status entities.TimeStatus `json:"status"`
}

// AttendanceService tracks per-course attendance and keeps one live daily
// reminder per course plus the daily schedule digest.
type AttendanceService struct {
	store    *Store
	notifier ports.Notifier
	clock    ports.Clock
	ids      *entities.IDGenerator
	logger   *logger.Logger
	metrics  *metrics.Metrics

	// mu serializes read-modify-write cycles of the course list and the summary handle.
	mu sync.Mutex
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(store *Store, notifier ports.Notifier, clock ports.Clock, ids *entities.IDGenerator, log *logger.Logger, m *metrics.Metrics) *AttendanceService {
	return &AttendanceService{
		store:    store,
		notifier: notifier,
		clock:    clock,
		ids:      ids,
		logger:   log.WithComponent("attendance"),
		metrics:  m,
	}
}

// Courses returns the courses of nim.
func (s *AttendanceService) Courses(ctx context.Context, nim string) []entities.Course {
	courses, ok := loadScoped[entities.Course](ctx, s.store, entities.KeyCourses, ownerOrLocal(nim))
	if !ok {
		return []entities.Course{}
	}
	return courses
}

// AddCourse prepends a course and schedules its daily reminder.
func (s *AttendanceService) AddCourse(ctx context.Context, nim, name, code string) ([]entities.Course, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, entities.ErrCourseNameRequired
	}
	nim = ownerOrLocal(nim)

	s.mu.Lock()
	defer s.mu.Unlock()

	course := entities.Course{
		ID:          s.ids.NextValue(),
		OwnerNIM:    nim,
		Name:        name,
		Code:        strings.TrimSpace(code),
		Attendances: []string{},
	}
	s.reschedule(ctx, &course, s.clock.Now())

	courses := append([]entities.Course{course}, s.Courses(ctx, nim)...)
	saveScoped(ctx, s.store, entities.KeyCourses, nim, courses)

	s.logger.LogUserAction(nim, "add_course", map[string]interface{}{"course_id": course.ID, "name": name})
	return courses, nil
}

// MarkAttendance records today's attendance of nim and moves the course
// reminder past today. Marking twice on one day adds nothing.
func (s *AttendanceService) MarkAttendance(ctx context.Context, nim, courseID string) ([]entities.Course, error) {
	nim = ownerOrLocal(nim)

	s.mu.Lock()
	defer s.mu.Unlock()

	courses := s.Courses(ctx, nim)
	i := courseIndex(courses, courseID)
	if i < 0 {
		return nil, fmt.Errorf("mark attendance %s: %w", courseID, entities.ErrCourseNotFound)
	}

	now := s.clock.Now()
	added := courses[i].MarkAttendance(now, nim)
	saveScoped(ctx, s.store, entities.KeyCourses, nim, courses)

	s.reschedule(ctx, &courses[i], now)
	saveScoped(ctx, s.store, entities.KeyCourses, nim, courses)

	s.logger.LogUserAction(nim, "mark_attendance", map[string]interface{}{"course_id": courseID, "added": added})
	return courses, nil
}

// RemoveCourse cancels the course reminder and deletes the course.
func (s *AttendanceService) RemoveCourse(ctx context.Context, nim, courseID string) ([]entities.Course, error) {
	nim = ownerOrLocal(nim)

	s.mu.Lock()
	defer s.mu.Unlock()

	courses := s.Courses(ctx, nim)
	i := courseIndex(courses, courseID)
	if i < 0 {
		return nil, fmt.Errorf("remove course %s: %w", courseID, entities.ErrCourseNotFound)
	}

	s.cancel(ctx, courses[i].NotificationID)
	courses = append(courses[:i], courses[i+1:]...)
	saveScoped(ctx, s.store, entities.KeyCourses, nim, courses)

	s.logger.LogUserAction(nim, "remove_course", map[string]interface{}{"course_id": courseID})
	return courses, nil
}

// RestoreReminders reschedules every course reminder of nim and the daily
// summary. Handles persisted by an earlier process are not live in this one.
func (s *AttendanceService) RestoreReminders(ctx context.Context, nim string) []entities.Course {
	nim = ownerOrLocal(nim)

	s.mu.Lock()
	courses := s.Courses(ctx, nim)
	now := s.clock.Now()
	for i := range courses {
		s.reschedule(ctx, &courses[i], now)
	}
	if len(courses) > 0 {
		saveScoped(ctx, s.store, entities.KeyCourses, nim, courses)
	}
	s.mu.Unlock()

	s.ScheduleDailySummary(ctx)
	return courses
}

// SuspendReminders cancels the course reminders of nim, used when another
// user takes over the device.
func (s *AttendanceService) SuspendReminders(ctx context.Context, nim string) {
	nim = ownerOrLocal(nim)

	s.mu.Lock()
	defer s.mu.Unlock()

	courses := s.Courses(ctx, nim)
	changed := false
	for i := range courses {
		if courses[i].HasReminder() {
			s.cancel(ctx, courses[i].NotificationID)
			courses[i].NotificationID = ""
			changed = true
		}
	}
	if changed {
		saveScoped(ctx, s.store, entities.KeyCourses, nim, courses)
	}
}

// ReminderTime returns the preferred reminder time, 08:00 when unset or unreadable.
func (s *AttendanceService) ReminderTime(ctx context.Context) (int, int) {
	var pref string
	if !s.store.Load(ctx, entities.KeyReminderTime, &pref) {
		return ParseReminderTime("")
	}
	return ParseReminderTime(pref)
}

// SetReminderTime stores a new HH:MM preference and moves every reminder to it.
func (s *AttendanceService) SetReminderTime(ctx context.Context, nim, hhmm string) ([]entities.Course, error) {
	hhmm = strings.TrimSpace(hhmm)
	if !reminderTimePattern.MatchString(hhmm) {
		return nil, entities.ErrInvalidReminderTime
	}
	hh, mm := ParseReminderTime(hhmm)
	normalized := fmt.Sprintf("%02d:%02d", hh, mm)

	if !s.store.Save(ctx, entities.KeyReminderTime, normalized) {
		return nil, fmt.Errorf("reminder time not saved")
	}

	s.logger.Infow("Reminder time changed", "time", normalized)
	return s.RestoreReminders(ctx, nim), nil
}

// Schedule returns the weekly schedule, falling back to the sample schedule.
func (s *AttendanceService) Schedule(ctx context.Context) entities.Schedule {
	var sched entities.Schedule
	if !s.store.Load(ctx, entities.KeySchedule, &sched) || sched == nil {
		return entities.SampleSchedule()
	}
	return sched
}

// ScheduleStatus lists the items of day with their time status.
func (s *AttendanceService) ScheduleStatus(ctx context.Context, day int) ([]ScheduledItem, error) {
	if !entities.ValidDay(day) {
		return nil, entities.ErrInvalidDay
	}
	now := s.clock.Now()
	items := s.Schedule(ctx).Day(day)

	out := make([]ScheduledItem, 0, len(items))
	for _, it := range items {
		out = append(out, ScheduledItem{ScheduleItem: it, Status: entities.ComputeTimeStatus(it.TimeRange, day, now)})
	}
	return out, nil
}

// AddScheduleItem prepends item to day and recomputes the digest.
func (s *AttendanceService) AddScheduleItem(ctx context.Context, day int, item entities.ScheduleItem) (entities.Schedule, error) {
	if !entities.ValidDay(day) {
		return nil, entities.ErrInvalidDay
	}
	if strings.TrimSpace(item.CourseName) == "" {
		return nil, entities.ErrCourseNameRequired
	}

	s.mu.Lock()
	sched := s.Schedule(ctx).Clone()
	if item.ID == "" {
		item.ID = s.ids.NextValue()
	}
	sched[day] = append([]entities.ScheduleItem{item}, sched.Day(day)...)
	s.store.Save(ctx, entities.KeySchedule, sched)
	s.mu.Unlock()

	s.ScheduleDailySummary(ctx)
	return sched, nil
}

// RemoveScheduleItem deletes the item with id from day and recomputes the digest.
func (s *AttendanceService) RemoveScheduleItem(ctx context.Context, day int, id string) (entities.Schedule, error) {
	if !entities.ValidDay(day) {
		return nil, entities.ErrInvalidDay
	}

	s.mu.Lock()
	sched := s.Schedule(ctx).Clone()
	items := sched.Day(day)
	kept := make([]entities.ScheduleItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		s.mu.Unlock()
		return nil, entities.ErrScheduleItemMissing
	}
	sched[day] = kept
	s.store.Save(ctx, entities.KeySchedule, sched)
	s.mu.Unlock()

	s.ScheduleDailySummary(ctx)
	return sched, nil
}

// ScheduleDailySummary replaces the digest reminder listing today's classes.
// With no classes today the digest is cleared. Failures are logged only.
func (s *AttendanceService) ScheduleDailySummary(ctx context.Context) entities.ReminderHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev entities.ReminderHandle
	if s.store.Load(ctx, entities.KeySummaryHandle, &prev) {
		s.cancel(ctx, prev)
	}

	now := s.clock.Now()
	todays := s.Schedule(ctx).Day(entities.MappedWeekday(now))
	if len(todays) == 0 {
		s.store.Save(ctx, entities.KeySummaryHandle, nil)
		return ""
	}

	hh, mm := s.ReminderTime(ctx)
	handle, err := s.notifier.Schedule(ctx, SummaryContent(todays), entities.DailyTrigger{
		Hour:      hh,
		Minute:    mm,
		Repeats:   true,
		NotBefore: NextFire(now, hh, mm),
	})
	if err != nil {
		s.logger.Warnw("Daily summary not scheduled", "error", err)
		s.store.Save(ctx, entities.KeySummaryHandle, nil)
		return ""
	}
	s.metrics.ReminderScheduled("summary")

	s.store.Save(ctx, entities.KeySummaryHandle, handle)
	return handle
}

// reschedule cancels the course's current reminder and schedules a new one.
// When the course was attended today the first firing moves to tomorrow.
// On failure the course is left without a handle.
func (s *AttendanceService) reschedule(ctx context.Context, c *entities.Course, now time.Time) {
	s.cancel(ctx, c.NotificationID)
	c.NotificationID = ""

	hh, mm := s.ReminderTime(ctx)
	from := now
	if c.AttendedOn(now, ownerOrLocal(c.OwnerNIM)) {
		y, m, d := now.Date()
		from = time.Date(y, m, d, 23, 59, 59, 0, now.Location())
	}

	handle, err := s.notifier.Schedule(ctx, ReminderContent(c.Name), entities.DailyTrigger{
		Hour:      hh,
		Minute:    mm,
		Repeats:   true,
		NotBefore: NextFire(from, hh, mm),
	})
	if err != nil {
		s.logger.Warnw("Course reminder not scheduled", "course_id", c.ID, "error", err)
		return
	}
	s.metrics.ReminderScheduled("course")
	c.NotificationID = handle
}

func (s *AttendanceService) cancel(ctx context.Context, handle entities.ReminderHandle) {
	if handle == "" {
		return
	}
	if err := s.notifier.Cancel(ctx, handle); err != nil {
		s.logger.Warnw("Reminder not cancelled", "handle", handle, "error", err)
		return
	}
	s.metrics.ReminderCancelled()
}

// ReminderContent is the per-course reminder.
func ReminderContent(courseName string) entities.NotificationContent {
	return entities.NotificationContent{
		Title: reminderTitle,
		Body:  "Belum presensi: " + courseName,
	}
}

// SummaryContent is the digest of today's classes. At most five names are listed.
func SummaryContent(todays []entities.ScheduleItem) entities.NotificationContent {
	names := make([]string, 0, summaryMaxNames)
	for _, it := range todays {
		if len(names) == summaryMaxNames {
			break
		}
		names = append(names, it.DisplayName())
	}
	return entities.NotificationContent{
		Title: summaryTitle,
		Body:  fmt.Sprintf("Anda ada %d perkuliahan hari ini: %s", len(todays), strings.Join(names, ", ")),
	}
}

// ParseReminderTime reads an HH:MM preference. Out of range parts are clamped;
// anything unparsable yields 08:00.
func ParseReminderTime(pref string) (int, int) {
	hh, mm, ok := entities.ParseClock(pref)
	if !ok {
		return 8, 0
	}
	return clamp(hh, 0, 23), clamp(mm, 0, 59)
}

// NextFire is today at hh:mm, or tomorrow when that moment is not after now.
func NextFire(now time.Time, hh, mm int) time.Time {
	y, m, d := now.Date()
	first := time.Date(y, m, d, hh, mm, 0, 0, now.Location())
	if !first.After(now) {
		first = first.AddDate(0, 0, 1)
	}
	return first
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func courseIndex(courses []entities.Course, id string) int {
	for i := range courses {
		if courses[i].ID == id {
			return i
		}
	}
	return -1
}

func ownerOrLocal(nim string) string {
	if nim == "" {
		return entities.DefaultOwnerNIM
	}
	return nim
}
