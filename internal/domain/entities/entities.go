package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrKeyNotFound         = errors.New("key not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrCourseNameRequired  = errors.New("course name is required")
	ErrTaskTitleRequired   = errors.New("task title is required")
	ErrMessageTextRequired = errors.New("message text is required")
	ErrScheduleItemMissing = errors.New("schedule item not found")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrRecipientRequired   = errors.New("message recipient is required")
	ErrNotLoggedIn         = errors.New("no user is logged in")
	ErrInvalidReminderTime = errors.New("invalid reminder time, use HH:MM")
	ErrInvalidDay          = errors.New("day must be between 1 (Monday) and 5 (Friday)")
	ErrInvalidTheme        = errors.New("invalid theme preference")
	ErrTransport           = errors.New("remote request failed")
)

// APIError is a non-2xx answer from the remote API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote api returned status %d: %s", e.StatusCode, e.Message)
}

// Persisted keys in the local store
const (
	KeyTasks          = "siakad_tasks"
	KeyMessages       = "siakad_messages"
	KeyCourses        = "siakad_courses"
	KeySchedule       = "siakad_schedule"
	KeyOutbox         = "siakad_outbox"
	KeyUser           = "user"
	KeyTheme          = "pref_theme"
	KeyReminderTime   = "notif_time"
	KeySummaryHandle  = "notif_summary_id"
	DefaultOwnerNIM   = "local"
	SystemSenderName  = "Sistem"
	DefaultReminderAt = "08:00"
)

// Theme is the persisted color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	default:
		return false
	}
}

// RegistrationType is the enrollment track a student registers with.
type RegistrationType string

const (
	RegistrationRegular  RegistrationType = "reguler"
	RegistrationEmployee RegistrationType = "karyawan"
)

// User represents the logged in student
type User struct {
	ID       ID               `json:"id"`
	NIM      string           `json:"nim"`
	Name     string           `json:"name"`
	Email    string           `json:"email,omitempty"`
	Type     RegistrationType `json:"type,omitempty"`
	FCMToken string           `json:"fcm_token,omitempty"`
}

// Record is implemented by every entity the reconciliation engine merges.
type Record interface {
	Key() ID
}

// Task represents a to-do item of a student
type Task struct {
	ID       ID     `json:"id"`
	OwnerNIM string `json:"owner_nim"`
	Title    string `json:"title"`
	Done     bool   `json:"done"`
}

func (t Task) Key() ID { return t.ID }

func (t Task) Owner() string { return t.OwnerNIM }

func (t Task) WithOwner(nim string) Task {
	t.OwnerNIM = nim
	return t
}

// Message represents an inbox or outbox message
type Message struct {
	ID        ID     `json:"id"`
	OwnerNIM  string `json:"owner_nim"`
	UserNIM   string `json:"user_nim,omitempty"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Read      bool   `json:"read"`
	LocalOnly bool   `json:"local_only,omitempty"` // mirrors are never pushed
}

func (m Message) Key() ID { return m.ID }

func (m Message) Owner() string { return m.OwnerNIM }

func (m Message) WithOwner(nim string) Message {
	m.OwnerNIM = nim
	return m
}

// ContainsKeyword reports whether title or body mention keyword, ignoring case.
func ContainsKeyword(title, body, keyword string) bool {
	k := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(title), k) || strings.Contains(strings.ToLower(body), k)
}

// ReminderHandle identifies a scheduled local notification.
type ReminderHandle string

// Course represents a course tracked for attendance
type Course struct {
	ID             string         `json:"id"`
	OwnerNIM       string         `json:"owner_nim"`
	Name           string         `json:"name"`
	Code           string         `json:"code,omitempty"`
	Attendances    []string       `json:"attendances"`
	NotificationID ReminderHandle `json:"notificationId,omitempty"`
}

func (c Course) Owner() string { return c.OwnerNIM }

func (c Course) WithOwner(nim string) Course {
	c.OwnerNIM = nim
	return c
}

// HasReminder reports whether the course holds a live reminder handle.
func (c *Course) HasReminder() bool {
	return c.NotificationID != ""
}

// NotificationContent is what a reminder shows.
type NotificationContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DailyTrigger fires every day at Hour:Minute local time. Firings before
// NotBefore are skipped.
type DailyTrigger struct {
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	Repeats   bool      `json:"repeats"`
	NotBefore time.Time `json:"not_before,omitempty"`
}

// DeliveredNotification is reported by the delivery collaborator once a reminder fired.
type DeliveredNotification struct {
	Handle  ReminderHandle      `json:"handle,omitempty"`
	Content NotificationContent `json:"content"`
}

// OwnedBy reports whether a record with owner belongs to nim. Records without an
// owner predate explicit ownership and belong to whoever is logged in.
func OwnedBy(owner, nim string) bool {
	return owner == "" || owner == nim
}
