package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/siakad/core/internal/adapters/repository"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

// fakeRemote is an in-memory SIAKAD server.
type fakeRemote struct {
	mu       sync.Mutex
	offline  bool
	nextID   int
	tasks    []entities.Task
	messages []entities.Message
	users    []entities.User
	created  []ports.CreateMessageRequest
	deleted  []string
	calls    map[string]int

	// getUserStatus, when set, is returned by GetUser as an API error.
	getUserStatus int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{nextID: 100, calls: map[string]int{}}
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

func (f *fakeRemote) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRemote) serverTasks() []entities.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Task(nil), f.tasks...)
}

func (f *fakeRemote) serverMessages() []entities.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Message(nil), f.messages...)
}

// begin records a call and reports the transport failure when offline. Callers hold f.mu.
func (f *fakeRemote) begin(name string) error {
	f.calls[name]++
	if f.offline {
		return fmt.Errorf("dial: %w", entities.ErrTransport)
	}
	return nil
}

func (f *fakeRemote) id() entities.ID {
	f.nextID++
	return entities.RemoteID(strconv.Itoa(f.nextID))
}

func (f *fakeRemote) Login(ctx context.Context, req ports.LoginRequest) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("login"); err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.NIM == req.NIM {
			u := u
			return &u, nil
		}
	}
	return nil, &entities.APIError{StatusCode: http.StatusUnauthorized, Message: "NIM atau password salah"}
}

func (f *fakeRemote) Register(ctx context.Context, req ports.RegisterRequest) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("register"); err != nil {
		return nil, err
	}
	u := entities.User{ID: f.id(), NIM: req.NIM, Name: req.Name}
	f.users = append(f.users, u)
	return &u, nil
}

func (f *fakeRemote) ChangePassword(ctx context.Context, req ports.ChangePasswordRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("passwd"); err != nil {
		return "", err
	}
	return "Password berhasil diubah", nil
}

func (f *fakeRemote) SaveFCMToken(ctx context.Context, req ports.FCMTokenRequest) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("fcm"); err != nil {
		return nil, err
	}
	return &entities.User{NIM: req.NIM, FCMToken: req.FCMToken}, nil
}

func (f *fakeRemote) FetchTasks(ctx context.Context, nim string) ([]entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("fetch_tasks"); err != nil {
		return nil, err
	}
	out := []entities.Task{}
	for _, t := range f.tasks {
		if t.OwnerNIM == nim {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_task"); err != nil {
		return nil, err
	}
	t := entities.Task{ID: f.id(), OwnerNIM: req.UserNIM, Title: req.Title, Done: req.Done}
	f.tasks = append(f.tasks, t)
	return &t, nil
}

func (f *fakeRemote) UpdateTask(ctx context.Context, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("update_task"); err != nil {
		return nil, err
	}
	for i := range f.tasks {
		if f.tasks[i].ID.Value == id {
			if req.Title != nil {
				f.tasks[i].Title = *req.Title
			}
			if req.Done != nil {
				f.tasks[i].Done = *req.Done
			}
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, &entities.APIError{StatusCode: http.StatusNotFound, Message: "Task not found"}
}

func (f *fakeRemote) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("delete_task"); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	for i := range f.tasks {
		if f.tasks[i].ID.Value == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &entities.APIError{StatusCode: http.StatusNotFound, Message: "Task not found"}
}

func (f *fakeRemote) FetchMessages(ctx context.Context, nim string, limit int) ([]entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("fetch_messages"); err != nil {
		return nil, err
	}
	out := []entities.Message{}
	for _, m := range f.messages {
		if m.UserNIM == nim {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateMessage(ctx context.Context, req ports.CreateMessageRequest) (*entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("create_message"); err != nil {
		return nil, err
	}
	f.created = append(f.created, req)
	m := entities.Message{ID: f.id(), UserNIM: req.UserNIM, From: req.From, Text: req.Text, Read: req.Read}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeRemote) UpdateMessage(ctx context.Context, id string, req ports.UpdateMessageRequest) (*entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("update_message"); err != nil {
		return nil, err
	}
	for i := range f.messages {
		if f.messages[i].ID.Value == id {
			if req.Read != nil {
				f.messages[i].Read = *req.Read
			}
			m := f.messages[i]
			return &m, nil
		}
	}
	return nil, &entities.APIError{StatusCode: http.StatusNotFound, Message: "Message not found"}
}

func (f *fakeRemote) ListUsers(ctx context.Context) ([]entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("list_users"); err != nil {
		return nil, err
	}
	return append([]entities.User(nil), f.users...), nil
}

func (f *fakeRemote) GetUser(ctx context.Context, nim string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("get_user"); err != nil {
		return nil, err
	}
	if f.getUserStatus != 0 {
		return nil, &entities.APIError{StatusCode: f.getUserStatus, Message: "Server Error"}
	}
	for _, u := range f.users {
		if u.NIM == nim {
			u := u
			return &u, nil
		}
	}
	return nil, &entities.APIError{StatusCode: http.StatusNotFound, Message: "User not found"}
}

type scheduled struct {
	content entities.NotificationContent
	trigger entities.DailyTrigger
}

// fakeNotifier tracks the live reminders.
type fakeNotifier struct {
	mu        sync.Mutex
	next      int
	nextSub   int
	live      map[entities.ReminderHandle]scheduled
	listeners map[int]func(entities.DeliveredNotification)
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		live:      map[entities.ReminderHandle]scheduled{},
		listeners: map[int]func(entities.DeliveredNotification){},
	}
}

func (n *fakeNotifier) Schedule(ctx context.Context, content entities.NotificationContent, trigger entities.DailyTrigger) (entities.ReminderHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	h := entities.ReminderHandle(fmt.Sprintf("h%d", n.next))
	n.live[h] = scheduled{content: content, trigger: trigger}
	return h, nil
}

func (n *fakeNotifier) Cancel(ctx context.Context, handle entities.ReminderHandle) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.live, handle)
	return nil
}

func (n *fakeNotifier) OnDelivered(fn func(entities.DeliveredNotification)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextSub++
	id := n.nextSub
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func (n *fakeNotifier) fire(note entities.DeliveredNotification) {
	n.mu.Lock()
	fns := make([]func(entities.DeliveredNotification), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(note)
	}
}

// liveWithTitle returns the live reminders whose title is title.
func (n *fakeNotifier) liveWithTitle(title string) []scheduled {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []scheduled
	for _, s := range n.live {
		if s.content.Title == title {
			out = append(out, s)
		}
	}
	return out
}

func (n *fakeNotifier) isLive(h entities.ReminderHandle) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.live[h]
	return ok
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// monday9 is Monday 4 March 2024, 09:00 local time.
var monday9 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.Local)

type testEnv struct {
	remote     *fakeRemote
	notifier   *fakeNotifier
	clock      *fixedClock
	store      *Store
	ids        *entities.IDGenerator
	auth       *AuthService
	outbox     *Outbox
	sync       *SyncService
	attendance *AttendanceService
	state      *AppState
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	log := logger.NewNop()

	env := &testEnv{
		remote:   newFakeRemote(),
		notifier: newFakeNotifier(),
		clock:    &fixedClock{now: monday9},
		store:    NewStore(repository.NewMemoryStore(), log),
	}
	env.ids = entities.NewIDGenerator(env.clock.Now)
	env.auth = NewAuthService(env.remote, env.store, log)
	env.outbox = NewOutbox(ctx, env.store, env.clock, log, nil)
	env.sync = NewSyncService(env.remote, env.store, env.outbox, log, nil)
	env.attendance = NewAttendanceService(env.store, env.notifier, env.clock, env.ids, log, nil)
	env.state = NewAppState(env.auth, env.sync, env.attendance, env.remote, env.store, env.notifier, env.ids, log, nil, StateOptions{MessageLimit: 50})

	t.Cleanup(env.state.Close)
	return env
}

// login stores nim as the current user without going through the server.
func (e *testEnv) login(t *testing.T, nim, name string) {
	t.Helper()
	e.remote.mu.Lock()
	e.remote.users = append(e.remote.users, entities.User{ID: entities.RemoteID(nim), NIM: nim, Name: name})
	e.remote.mu.Unlock()

	e.store.Save(context.Background(), entities.KeyUser, entities.User{ID: entities.RemoteID(nim), NIM: nim, Name: name})
}
