package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/infrastructure/metrics"
	"github.com/siakad/core/internal/ports"
)

// DrainTarget gives the outbox drain access to the live lists. Lookups return
// the current value of a record; Rebind replaces a local record with the
// server copy a create was acknowledged with.
type DrainTarget interface {
	LookupTask(id entities.ID) (entities.Task, bool)
	LookupMessage(id entities.ID) (entities.Message, bool)
	RebindTask(local entities.ID, remote entities.Task)
	RebindMessage(local entities.ID, remote entities.Message)
}

// SyncService reconciles local task and message lists with the remote API
type SyncService struct {
	remote  ports.RemoteClient
	store   *Store
	outbox  *Outbox
	logger  *logger.Logger
	metrics *metrics.Metrics

	drainMu sync.Mutex
}

// NewSyncService creates a new sync service
func NewSyncService(remote ports.RemoteClient, store *Store, outbox *Outbox, log *logger.Logger, m *metrics.Metrics) *SyncService {
	return &SyncService{
		remote:  remote,
		store:   store,
		outbox:  outbox,
		logger:  log.WithComponent("sync"),
		metrics: m,
	}
}

// Outbox exposes the pending write queue.
func (s *SyncService) Outbox() *Outbox {
	return s.outbox
}

// FetchTasks returns the server's tasks for user. ok is false when no one is
// logged in or the request failed.
func (s *SyncService) FetchTasks(ctx context.Context, user *entities.User) ([]entities.Task, bool) {
	if user == nil {
		return nil, false
	}
	tasks, err := s.remote.FetchTasks(ctx, user.NIM)
	if err != nil {
		s.logger.LogSyncFailure(string(entities.KindTask), "fetch", err)
		return nil, false
	}
	return tasks, true
}

// FetchMessages returns the server's messages for user.
func (s *SyncService) FetchMessages(ctx context.Context, user *entities.User, limit int) ([]entities.Message, bool) {
	if user == nil {
		return nil, false
	}
	msgs, err := s.remote.FetchMessages(ctx, user.NIM, limit)
	if err != nil {
		s.logger.LogSyncFailure(string(entities.KindMessage), "fetch", err)
		return nil, false
	}
	return msgs, true
}

// MergeAndSaveTasks merges and writes the result through as owner's task list.
func (s *SyncService) MergeAndSaveTasks(ctx context.Context, owner string, remote, local []entities.Task) []entities.Task {
	merged := Merge(remote, local)
	saveScoped(ctx, s.store, entities.KeyTasks, owner, merged)
	s.metrics.Merged(string(entities.KindTask))
	return merged
}

// MergeAndSaveMessages merges and writes the result through as owner's message list.
func (s *SyncService) MergeAndSaveMessages(ctx context.Context, owner string, remote, local []entities.Message) []entities.Message {
	merged := Merge(remote, local)
	saveScoped(ctx, s.store, entities.KeyMessages, owner, merged)
	s.metrics.Merged(string(entities.KindMessage))
	return merged
}

// PushTask creates or updates task on the server depending on the origin of
// its id. It returns nil on any failure.
func (s *SyncService) PushTask(ctx context.Context, user *entities.User, task entities.Task) *entities.Task {
	if user == nil {
		return nil
	}

	var (
		out *entities.Task
		err error
	)
	if task.ID.IsRemote() {
		title, done := task.Title, task.Done
		out, err = s.remote.UpdateTask(ctx, task.ID.Value, ports.UpdateTaskRequest{Title: &title, Done: &done})
	} else {
		out, err = s.remote.CreateTask(ctx, ports.CreateTaskRequest{UserNIM: user.NIM, Title: task.Title, Done: task.Done})
	}

	s.metrics.Pushed(string(entities.KindTask), err == nil)
	if err != nil {
		s.logger.LogSyncFailure(string(entities.KindTask), "push", err)
		return nil
	}
	if out.OwnerNIM == "" {
		out.OwnerNIM = user.NIM
	}
	return out
}

// PushMessage creates or updates msg on the server. Local-only mirrors are
// never sent.
func (s *SyncService) PushMessage(ctx context.Context, user *entities.User, msg entities.Message) *entities.Message {
	if user == nil || msg.LocalOnly {
		return nil
	}

	var (
		out *entities.Message
		err error
	)
	if msg.ID.IsRemote() {
		read := msg.Read
		out, err = s.remote.UpdateMessage(ctx, msg.ID.Value, ports.UpdateMessageRequest{Read: &read})
	} else {
		out, err = s.remote.CreateMessage(ctx, ports.CreateMessageRequest{UserNIM: user.NIM, From: msg.From, Text: msg.Text, Read: msg.Read})
	}

	s.metrics.Pushed(string(entities.KindMessage), err == nil)
	if err != nil {
		s.logger.LogSyncFailure(string(entities.KindMessage), "push", err)
		return nil
	}
	if out.OwnerNIM == "" {
		out.OwnerNIM = user.NIM
	}
	return out
}

// Drain pushes the queued writes of user in order. An op leaves the queue only
// when the server acknowledged it or its record no longer exists; a failed op
// stays queued and the remaining ops are still attempted.
func (s *SyncService) Drain(ctx context.Context, user *entities.User, target DrainTarget) int {
	if user == nil {
		return 0
	}

	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	acked := 0
	for _, queued := range s.outbox.Pending(user.NIM) {
		if ctx.Err() != nil {
			break
		}
		// an earlier ack may have rebound or removed the op
		op, ok := s.outbox.begin(queued.ID)
		if !ok {
			continue
		}

		var err error
		switch op.Kind {
		case entities.KindTask:
			err = s.drainTask(ctx, user, op, target)
		case entities.KindMessage:
			err = s.drainMessage(ctx, user, op, target)
		default:
			err = errDiscard
		}

		switch {
		case err == nil:
			acked++
			s.outbox.ack(ctx, op.ID)
		case errors.Is(err, errDiscard):
			s.outbox.ack(ctx, op.ID)
		default:
			s.outbox.fail(ctx, op.ID, err)
		}
	}

	if acked > 0 {
		s.logger.Infow("Outbox drained", "acked", acked, "pending", s.outbox.Len())
	}
	return acked
}

// errDiscard marks ops that can never succeed and are dropped silently.
var errDiscard = errors.New("discard op")

var errPushFailed = errors.New("push not acknowledged")

func (s *SyncService) drainTask(ctx context.Context, user *entities.User, op entities.OutboxOp, target DrainTarget) error {
	if op.Action == entities.ActionDelete {
		if !op.Target.IsRemote() {
			return errDiscard
		}
		err := s.remote.DeleteTask(ctx, op.Target.Value)
		s.metrics.Pushed(string(entities.KindTask), err == nil || isNotFound(err))
		if err != nil && !isNotFound(err) {
			s.logger.LogSyncFailure(string(entities.KindTask), "delete", err)
			return err
		}
		return nil
	}

	task, ok := target.LookupTask(op.Target)
	if !ok {
		return errDiscard
	}
	// A create whose record was rebound already reached the server.
	if op.Action == entities.ActionCreate && task.ID.IsRemote() {
		return errDiscard
	}

	out := s.PushTask(ctx, user, task)
	if out == nil {
		return fmt.Errorf("task %s: %w", task.ID, errPushFailed)
	}
	if op.Action == entities.ActionCreate {
		s.outbox.rebind(ctx, entities.KindTask, task.ID, out.ID)
		target.RebindTask(task.ID, *out)
	}
	return nil
}

func (s *SyncService) drainMessage(ctx context.Context, user *entities.User, op entities.OutboxOp, target DrainTarget) error {
	if op.Action == entities.ActionDelete {
		return errDiscard
	}

	msg, ok := target.LookupMessage(op.Target)
	if !ok || msg.LocalOnly {
		return errDiscard
	}
	if op.Action == entities.ActionCreate && msg.ID.IsRemote() {
		return errDiscard
	}

	out := s.PushMessage(ctx, user, msg)
	if out == nil {
		return fmt.Errorf("message %s: %w", msg.ID, errPushFailed)
	}
	if op.Action == entities.ActionCreate {
		s.outbox.rebind(ctx, entities.KindMessage, msg.ID, out.ID)
		target.RebindMessage(msg.ID, *out)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr *entities.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ownedRecord is implemented by entities persisted in a list shared by every user.
type ownedRecord[T any] interface {
	Owner() string
	WithOwner(nim string) T
}

// loadScoped reads the list under key and keeps the records of nim. Records
// without an owner are adopted by nim.
func loadScoped[T ownedRecord[T]](ctx context.Context, store *Store, key, nim string) ([]T, bool) {
	var all []T
	if !store.Load(ctx, key, &all) {
		return nil, false
	}

	mine := make([]T, 0, len(all))
	for _, r := range all {
		if !entities.OwnedBy(r.Owner(), nim) {
			continue
		}
		if r.Owner() == "" {
			r = r.WithOwner(nim)
		}
		mine = append(mine, r)
	}
	return mine, true
}

// saveScoped writes mine as nim's records, keeping the records of other users.
func saveScoped[T ownedRecord[T]](ctx context.Context, store *Store, key, nim string, mine []T) bool {
	var all []T
	store.Load(ctx, key, &all)

	out := make([]T, 0, len(mine)+len(all))
	out = append(out, mine...)
	for _, r := range all {
		if r.Owner() != "" && r.Owner() != nim {
			out = append(out, r)
		}
	}
	return store.Save(ctx, key, out)
}
