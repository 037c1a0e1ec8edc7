package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/infrastructure/metrics"
	"github.com/siakad/core/internal/ports"
)

const (
	mirrorKeyword      = "presensi"
	welcomeTaskTitle   = "Tugas Pemrograman: Buat komponen"
	welcomeMessageFrom = "Pak Dosen"
	welcomeMessageText = "Reminder UTS minggu depan"
	defaultPollEvery   = 8 * time.Second
)

// StateOptions tunes the background refresh.
type StateOptions struct {
	PollInterval time.Duration
	MessageLimit int
}

// Snapshot is a consistent copy of the application state.
type Snapshot struct {
	User                 *entities.User     `json:"user"`
	Tasks                []entities.Task    `json:"tasks"`
	Messages             []entities.Message `json:"messages"`
	Courses              []entities.Course  `json:"courses"`
	IncompleteTasksCount int                `json:"incomplete_tasks_count"`
	UnreadMessagesCount  int                `json:"unread_messages_count"`
	PendingWrites        int                `json:"pending_writes"`
	Theme                entities.Theme     `json:"theme"`
}

// AppState owns the in-memory task, message and course lists of the logged in
// student. Every mutation is applied under one lock and written through to the
// store; network calls run outside the lock.
type AppState struct {
	auth       *AuthService
	sync       *SyncService
	attendance *AttendanceService
	remote     ports.RemoteClient
	store      *Store
	notifier   ports.Notifier
	ids        *entities.IDGenerator
	logger     *logger.Logger
	metrics    *metrics.Metrics
	opts       StateOptions

	mu       sync.Mutex
	loaded   bool
	user     *entities.User
	tasks    []entities.Task
	messages []entities.Message
	courses  []entities.Course
	theme    entities.Theme

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	subscribeOnce sync.Once
	unsubscribe   []func()
}

// NewAppState wires the state on top of the services
func NewAppState(auth *AuthService, syncer *SyncService, attendance *AttendanceService, remote ports.RemoteClient, store *Store, notifier ports.Notifier, ids *entities.IDGenerator, log *logger.Logger, m *metrics.Metrics, opts StateOptions) *AppState {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollEvery
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AppState{
		auth:       auth,
		sync:       syncer,
		attendance: attendance,
		remote:     remote,
		store:      store,
		notifier:   notifier,
		ids:        ids,
		logger:     log.WithComponent("state"),
		metrics:    m,
		opts:       opts,
		tasks:      []entities.Task{},
		messages:   []entities.Message{},
		courses:    []entities.Course{},
		theme:      entities.ThemeSystem,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Init loads every list, subscribes to login, theme and delivered
// notification changes, and restores the reminders of the current user.
func (s *AppState) Init(ctx context.Context) {
	s.subscribeOnce.Do(func() {
		s.unsubscribe = append(s.unsubscribe,
			s.store.Subscribe(entities.KeyUser, s.onUserChanged),
			s.store.Subscribe(entities.KeyTheme, s.onThemeChanged),
			s.notifier.OnDelivered(s.onDelivered),
		)
	})

	theme := s.Theme(ctx)
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()

	s.reload(ctx)
}

// Run refreshes messages and drains the outbox every poll interval until ctx is done.
// Tasks are only fetched on start and on login changes.
func (s *AppState) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.logger.Infow("Background refresh started", "interval", s.opts.PollInterval)

	for {
		select {
		case <-ticker.C:
			s.RefreshMessages(ctx)
			s.drain(ctx)
		case <-ctx.Done():
			s.logger.Info("Background refresh stopped")
			return ctx.Err()
		}
	}
}

// Wait blocks until async pushes and reloads have finished.
func (s *AppState) Wait() {
	s.wg.Wait()
}

// Close unsubscribes, cancels async work and waits for it.
func (s *AppState) Close() {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *AppState) reload(ctx context.Context) {
	user := s.auth.CurrentUser(ctx)
	nim := ownerOf(user)

	tasks := s.initialTasks(ctx, user, nim)
	messages := s.initialMessages(ctx, user, nim)

	s.mu.Lock()
	loaded, previous := s.loaded, ownerOf(s.user)
	s.mu.Unlock()

	if loaded && previous != nim {
		s.attendance.SuspendReminders(ctx, previous)
	}
	courses := s.attendance.RestoreReminders(ctx, nim)

	s.mu.Lock()
	s.loaded = true
	s.user = user
	s.tasks = tasks
	s.messages = messages
	s.courses = courses
	s.mu.Unlock()

	s.logger.Infow("State loaded", "nim", nim, "tasks", len(tasks), "messages", len(messages), "courses", len(courses))
	s.goDrain()
}

func (s *AppState) initialTasks(ctx context.Context, user *entities.User, nim string) []entities.Task {
	local, _ := loadScoped[entities.Task](ctx, s.store, entities.KeyTasks, nim)

	if remote, ok := s.sync.FetchTasks(ctx, user); ok {
		return s.sync.MergeAndSaveTasks(ctx, nim, remote, local)
	}
	if len(local) > 0 {
		return local
	}

	seed := []entities.Task{{ID: s.ids.Next(), OwnerNIM: nim, Title: welcomeTaskTitle}}
	saveScoped(ctx, s.store, entities.KeyTasks, nim, seed)
	return seed
}

func (s *AppState) initialMessages(ctx context.Context, user *entities.User, nim string) []entities.Message {
	local, _ := loadScoped[entities.Message](ctx, s.store, entities.KeyMessages, nim)

	if remote, ok := s.sync.FetchMessages(ctx, user, s.opts.MessageLimit); ok {
		return s.sync.MergeAndSaveMessages(ctx, nim, remote, local)
	}
	if len(local) > 0 {
		return local
	}

	seed := []entities.Message{{
		ID:        s.ids.Next(),
		OwnerNIM:  nim,
		From:      welcomeMessageFrom,
		Text:      welcomeMessageText,
		LocalOnly: true,
	}}
	saveScoped(ctx, s.store, entities.KeyMessages, nim, seed)
	return seed
}

// RefreshMessages re-fetches messages and merges them into the live list.
func (s *AppState) RefreshMessages(ctx context.Context) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	remote, ok := s.sync.FetchMessages(ctx, user, s.opts.MessageLimit)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ownerOf(s.user) != ownerOf(user) {
		return
	}
	s.messages = s.sync.MergeAndSaveMessages(ctx, ownerOf(user), remote, s.messages)
}

// Tasks

// AddTask prepends an optimistic task and queues its push.
func (s *AppState) AddTask(ctx context.Context, title string) (entities.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return entities.Task{}, entities.ErrTaskTitleRequired
	}

	s.mu.Lock()
	nim := ownerOf(s.user)
	task := entities.Task{ID: s.ids.Next(), OwnerNIM: nim, Title: title}
	s.tasks = append([]entities.Task{task}, s.tasks...)
	s.persistTasks(ctx)
	s.sync.Outbox().Enqueue(ctx, nim, entities.KindTask, entities.ActionCreate, task.ID)
	s.mu.Unlock()

	s.logger.LogUserAction(nim, "add_task", map[string]interface{}{"task_id": task.ID.String()})
	s.goDrain()
	return task, nil
}

// ToggleTask flips the done flag of a task.
func (s *AppState) ToggleTask(ctx context.Context, id entities.ID) (entities.Task, error) {
	return s.updateTask(ctx, id, func(t *entities.Task) { t.Done = !t.Done })
}

// EditTask changes the title of a task.
func (s *AppState) EditTask(ctx context.Context, id entities.ID, title string) (entities.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return entities.Task{}, entities.ErrTaskTitleRequired
	}
	return s.updateTask(ctx, id, func(t *entities.Task) { t.Title = title })
}

func (s *AppState) updateTask(ctx context.Context, id entities.ID, mutate func(*entities.Task)) (entities.Task, error) {
	s.mu.Lock()
	i := indexOf(s.tasks, id)
	if i < 0 {
		s.mu.Unlock()
		return entities.Task{}, fmt.Errorf("task %s: %w", id, entities.ErrTaskNotFound)
	}

	next := append([]entities.Task(nil), s.tasks...)
	mutate(&next[i])
	s.tasks = next
	task := next[i]

	nim := ownerOf(s.user)
	s.persistTasks(ctx)
	s.sync.Outbox().Enqueue(ctx, nim, entities.KindTask, entities.ActionUpdate, id)
	s.mu.Unlock()

	s.goDrain()
	return task, nil
}

// DeleteTask removes a task locally and queues the server delete for server tasks.
func (s *AppState) DeleteTask(ctx context.Context, id entities.ID) error {
	s.mu.Lock()
	i := indexOf(s.tasks, id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("task %s: %w", id, entities.ErrTaskNotFound)
	}

	next := make([]entities.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:i]...)
	next = append(next, s.tasks[i+1:]...)
	s.tasks = next

	nim := ownerOf(s.user)
	s.persistTasks(ctx)
	s.sync.Outbox().Enqueue(ctx, nim, entities.KindTask, entities.ActionDelete, id)
	s.mu.Unlock()

	s.logger.LogUserAction(nim, "delete_task", map[string]interface{}{"task_id": id.String()})
	s.goDrain()
	return nil
}

// Messages

// AddMessage prepends an optimistic message and queues its push.
func (s *AppState) AddMessage(ctx context.Context, from, text string) (entities.Message, error) {
	return s.prependMessage(ctx, from, text, "", false)
}

// AddLocalMessage prepends a message that stays on this device.
func (s *AppState) AddLocalMessage(ctx context.Context, from, text, userNIM string) (entities.Message, error) {
	return s.prependMessage(ctx, from, text, userNIM, true)
}

func (s *AppState) prependMessage(ctx context.Context, from, text, userNIM string, localOnly bool) (entities.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.Message{}, entities.ErrMessageTextRequired
	}

	s.mu.Lock()
	nim := ownerOf(s.user)
	msg := entities.Message{
		ID:        s.ids.Next(),
		OwnerNIM:  nim,
		UserNIM:   userNIM,
		From:      strings.TrimSpace(from),
		Text:      text,
		LocalOnly: localOnly,
	}
	s.messages = append([]entities.Message{msg}, s.messages...)
	s.persistMessages(ctx)
	if !localOnly {
		s.sync.Outbox().Enqueue(ctx, nim, entities.KindMessage, entities.ActionCreate, msg.ID)
	}
	s.mu.Unlock()

	if !localOnly {
		s.goDrain()
	}
	return msg, nil
}

// MarkMessageRead marks a message read and queues the update for server messages.
func (s *AppState) MarkMessageRead(ctx context.Context, id entities.ID) (entities.Message, error) {
	s.mu.Lock()
	i := indexOf(s.messages, id)
	if i < 0 {
		s.mu.Unlock()
		return entities.Message{}, fmt.Errorf("message %s: %w", id, entities.ErrMessageNotFound)
	}

	next := append([]entities.Message(nil), s.messages...)
	next[i].Read = true
	s.messages = next
	msg := next[i]

	nim := ownerOf(s.user)
	s.persistMessages(ctx)
	if !msg.LocalOnly {
		s.sync.Outbox().Enqueue(ctx, nim, entities.KindMessage, entities.ActionUpdate, id)
	}
	s.mu.Unlock()

	s.goDrain()
	return msg, nil
}

// SendMessage addresses text to a user given by name or NIM. The recipient
// must exist on the server. The sent message is kept as a local copy.
func (s *AppState) SendMessage(ctx context.Context, to, text string) (entities.Message, error) {
	to, text = strings.TrimSpace(to), strings.TrimSpace(text)
	if to == "" {
		return entities.Message{}, entities.ErrRecipientRequired
	}
	if text == "" {
		return entities.Message{}, entities.ErrMessageTextRequired
	}

	recipient := to
	if users, err := s.remote.ListUsers(ctx); err == nil {
		for _, u := range users {
			if u.Name == to || u.NIM == to {
				recipient = u.NIM
				break
			}
		}
	} else {
		s.logger.Debugw("User list unavailable, treating recipient as NIM", "error", err)
	}

	if _, err := s.remote.GetUser(ctx, recipient); err != nil {
		var apiErr *entities.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return entities.Message{}, fmt.Errorf("%s: %w", to, entities.ErrRecipientNotFound)
		}
		return entities.Message{}, fmt.Errorf("verify recipient: %w", err)
	}

	s.mu.Lock()
	from := to
	if s.user != nil && s.user.Name != "" {
		from = s.user.Name
	}
	s.mu.Unlock()

	if _, err := s.remote.CreateMessage(ctx, ports.CreateMessageRequest{UserNIM: recipient, From: from, Text: text, Read: false}); err != nil {
		return entities.Message{}, fmt.Errorf("send message: %w", err)
	}

	return s.AddLocalMessage(ctx, from, text, recipient)
}

// Courses

func (s *AppState) AddCourse(ctx context.Context, name, code string) (entities.Course, error) {
	nim := s.currentOwner()
	courses, err := s.attendance.AddCourse(ctx, nim, name, code)
	if err != nil {
		return entities.Course{}, err
	}
	s.replaceCourses(ctx, nim, courses)
	return courses[0], nil
}

func (s *AppState) MarkAttendance(ctx context.Context, courseID string) (entities.Course, error) {
	nim := s.currentOwner()
	courses, err := s.attendance.MarkAttendance(ctx, nim, courseID)
	if err != nil {
		return entities.Course{}, err
	}
	s.replaceCourses(ctx, nim, courses)
	return courses[courseIndex(courses, courseID)], nil
}

func (s *AppState) RemoveCourse(ctx context.Context, courseID string) error {
	nim := s.currentOwner()
	courses, err := s.attendance.RemoveCourse(ctx, nim, courseID)
	if err != nil {
		return err
	}
	s.replaceCourses(ctx, nim, courses)
	return nil
}

// Now is the wall clock the scheduler runs on.
func (s *AppState) Now() time.Time {
	return s.attendance.clock.Now()
}

// AttendedToday reports whether the current user attended the course today.
func (s *AppState) AttendedToday(courseID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := courseIndex(s.courses, courseID)
	return i >= 0 && s.courses[i].AttendedOn(now, ownerOf(s.user))
}

// replaceCourses swaps in the scheduler's course list and refreshes the digest.
func (s *AppState) replaceCourses(ctx context.Context, nim string, courses []entities.Course) {
	s.mu.Lock()
	if ownerOf(s.user) == nim {
		s.courses = courses
	}
	s.mu.Unlock()

	s.attendance.ScheduleDailySummary(ctx)
}

// Schedule

func (s *AppState) Schedule(ctx context.Context) entities.Schedule {
	return s.attendance.Schedule(ctx)
}

func (s *AppState) ScheduleStatus(ctx context.Context, day int) ([]ScheduledItem, error) {
	return s.attendance.ScheduleStatus(ctx, day)
}

func (s *AppState) AddScheduleItem(ctx context.Context, day int, item entities.ScheduleItem) (entities.Schedule, error) {
	return s.attendance.AddScheduleItem(ctx, day, item)
}

func (s *AppState) RemoveScheduleItem(ctx context.Context, day int, id string) (entities.Schedule, error) {
	return s.attendance.RemoveScheduleItem(ctx, day, id)
}

// Preferences

// Theme returns the stored color scheme, system when unset.
func (s *AppState) Theme(ctx context.Context) entities.Theme {
	var theme entities.Theme
	if !s.store.Load(ctx, entities.KeyTheme, &theme) || !theme.IsValid() {
		return entities.ThemeSystem
	}
	return theme
}

func (s *AppState) SetTheme(ctx context.Context, theme entities.Theme) error {
	if !theme.IsValid() {
		return entities.ErrInvalidTheme
	}
	if !s.store.Save(ctx, entities.KeyTheme, theme) {
		return fmt.Errorf("theme not saved")
	}
	return nil
}

// ReminderTime returns the reminder preference as HH:MM.
func (s *AppState) ReminderTime(ctx context.Context) string {
	hh, mm := s.attendance.ReminderTime(ctx)
	return fmt.Sprintf("%02d:%02d", hh, mm)
}

func (s *AppState) SetReminderTime(ctx context.Context, hhmm string) error {
	nim := s.currentOwner()
	courses, err := s.attendance.SetReminderTime(ctx, nim, hhmm)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if ownerOf(s.user) == nim {
		s.courses = courses
	}
	s.mu.Unlock()
	return nil
}

// Snapshot

func (s *AppState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Tasks:                append([]entities.Task{}, s.tasks...),
		Messages:             append([]entities.Message{}, s.messages...),
		Courses:              append([]entities.Course{}, s.courses...),
		IncompleteTasksCount: IncompleteTasks(s.tasks),
		UnreadMessagesCount:  UnreadMessages(s.messages),
		PendingWrites:        len(s.sync.Outbox().Pending(ownerOf(s.user))),
		Theme:                s.theme,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// IncompleteTasks counts tasks not done.
func IncompleteTasks(tasks []entities.Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Done {
			n++
		}
	}
	return n
}

// UnreadMessages counts messages not read.
func UnreadMessages(msgs []entities.Message) int {
	n := 0
	for _, m := range msgs {
		if !m.Read {
			n++
		}
	}
	return n
}

// DrainTarget

func (s *AppState) LookupTask(id entities.ID) (entities.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.tasks, id); i >= 0 {
		return s.tasks[i], true
	}
	return entities.Task{}, false
}

func (s *AppState) LookupMessage(id entities.ID) (entities.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.messages, id); i >= 0 {
		return s.messages[i], true
	}
	return entities.Message{}, false
}

// RebindTask replaces a pushed local task by its server copy. When a refresh
// already brought the server copy in, the local one is dropped.
func (s *AppState) RebindTask(local entities.ID, remote entities.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = rebind(s.tasks, local, remote)
	s.persistTasks(s.ctx)
}

func (s *AppState) RebindMessage(local entities.ID, remote entities.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = rebind(s.messages, local, remote)
	s.persistMessages(s.ctx)
}

func rebind[T entities.Record](list []T, local entities.ID, remote T) []T {
	i := indexOf(list, local)
	if i < 0 {
		return list
	}
	next := append([]T(nil), list...)
	if indexOf(next, remote.Key()) >= 0 {
		return append(next[:i], next[i+1:]...)
	}
	replaceByID(next, local, remote)
	return next
}

// internal

func (s *AppState) onUserChanged(key string, value []byte) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.ctx.Err() != nil {
			return
		}
		s.reload(s.ctx)
	}()
}

// onThemeChanged tracks the stored color scheme. A removed or unknown value
// falls back to system.
func (s *AppState) onThemeChanged(key string, value []byte) {
	theme := entities.ThemeSystem
	if value != nil {
		var stored entities.Theme
		if err := json.Unmarshal(value, &stored); err != nil || !stored.IsValid() {
			s.logger.Warnw("Ignoring stored theme", "value", string(value), "error", err)
		} else {
			theme = stored
		}
	}

	s.mu.Lock()
	previous := s.theme
	s.theme = theme
	s.mu.Unlock()

	if previous != theme {
		s.logger.Infow("Theme changed", "from", previous, "to", theme)
	}
}

func (s *AppState) onDelivered(note entities.DeliveredNotification) {
	s.ReportDelivered(note)
}

// ReportDelivered mirrors an attendance notification into the inbox as a
// message from the system sender. It reports whether a message was added.
func (s *AppState) ReportDelivered(note entities.DeliveredNotification) bool {
	title, body := note.Content.Title, note.Content.Body
	if !entities.ContainsKeyword(title, body, mirrorKeyword) {
		return false
	}

	text := body
	if text == "" {
		text = title
	}
	if _, err := s.AddLocalMessage(s.ctx, entities.SystemSenderName, text, ""); err != nil {
		s.logger.Warnw("Notification not mirrored", "error", err)
		return false
	}
	s.metrics.NotificationMirrored()
	return true
}

func (s *AppState) goDrain() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drain(s.ctx)
	}()
}

func (s *AppState) drain(ctx context.Context) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	s.sync.Drain(ctx, user, s)
}

func (s *AppState) currentOwner() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ownerOf(s.user)
}

// persistTasks writes the task list through. Callers hold s.mu.
func (s *AppState) persistTasks(ctx context.Context) {
	saveScoped(ctx, s.store, entities.KeyTasks, ownerOf(s.user), s.tasks)
}

// persistMessages writes the message list through. Callers hold s.mu.
func (s *AppState) persistMessages(ctx context.Context) {
	saveScoped(ctx, s.store, entities.KeyMessages, ownerOf(s.user), s.messages)
}

func ownerOf(user *entities.User) string {
	if user == nil || user.NIM == "" {
		return entities.DefaultOwnerNIM
	}
	return user.NIM
}
