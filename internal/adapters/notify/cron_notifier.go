package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

// TokenSource returns the device token reminders should be pushed to, or "".
type TokenSource func() string

// CronNotifier delivers daily reminders from an in-process cron scheduler
type CronNotifier struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu           sync.Mutex
	entries      map[entities.ReminderHandle]cron.EntryID
	listeners    map[int]func(entities.DeliveredNotification)
	nextListener int

	sink  ports.PushSink
	token TokenSource
}

var _ ports.Notifier = (*CronNotifier)(nil)

// NewCronNotifier creates a notifier; call Start to begin firing
func NewCronNotifier(log *logger.Logger) *CronNotifier {
	return &CronNotifier{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger:    log.WithComponent("notifier"),
		entries:   make(map[entities.ReminderHandle]cron.EntryID),
		listeners: make(map[int]func(entities.DeliveredNotification)),
	}
}

// SetPushTarget forwards every fired reminder to sink for the device returned by token.
func (n *CronNotifier) SetPushTarget(sink ports.PushSink, token TokenSource) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sink = sink
	n.token = token
}

func (n *CronNotifier) Start() {
	n.cron.Start()
	n.logger.Info("Reminder scheduler started")
}

// Stop halts the scheduler and waits for running deliveries.
func (n *CronNotifier) Stop() {
	<-n.cron.Stop().Done()
	n.logger.Info("Reminder scheduler stopped")
}

// CronSpec renders a daily trigger as a five-field cron expression.
func CronSpec(trigger entities.DailyTrigger) (string, error) {
	if trigger.Hour < 0 || trigger.Hour > 23 || trigger.Minute < 0 || trigger.Minute > 59 {
		return "", fmt.Errorf("trigger %02d:%02d out of range", trigger.Hour, trigger.Minute)
	}
	return fmt.Sprintf("%d %d * * *", trigger.Minute, trigger.Hour), nil
}

func (n *CronNotifier) Schedule(ctx context.Context, content entities.NotificationContent, trigger entities.DailyTrigger) (entities.ReminderHandle, error) {
	spec, err := CronSpec(trigger)
	if err != nil {
		return "", err
	}

	handle := entities.ReminderHandle(uuid.NewString())

	n.mu.Lock()
	defer n.mu.Unlock()

	id, err := n.cron.AddFunc(spec, func() {
		if time.Now().Before(trigger.NotBefore) {
			return
		}
		if !trigger.Repeats {
			n.Cancel(context.Background(), handle)
		}
		n.Deliver(entities.DeliveredNotification{Handle: handle, Content: content})
	})
	if err != nil {
		return "", fmt.Errorf("failed to schedule reminder: %w", err)
	}
	n.entries[handle] = id

	n.logger.Debugw("Reminder scheduled", "handle", handle, "spec", spec, "title", content.Title)
	return handle, nil
}

// Cancel removes a scheduled reminder. Unknown handles are ignored.
func (n *CronNotifier) Cancel(ctx context.Context, handle entities.ReminderHandle) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	id, ok := n.entries[handle]
	if !ok {
		return nil
	}
	n.cron.Remove(id)
	delete(n.entries, handle)

	n.logger.Debugw("Reminder cancelled", "handle", handle)
	return nil
}

// Scheduled is the number of live reminders.
func (n *CronNotifier) Scheduled() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.entries)
}

// NextRun reports when handle fires next.
func (n *CronNotifier) NextRun(handle entities.ReminderHandle) (time.Time, bool) {
	n.mu.Lock()
	id, ok := n.entries[handle]
	n.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return n.cron.Entry(id).Next, true
}

func (n *CronNotifier) OnDelivered(fn func(entities.DeliveredNotification)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextListener
	n.nextListener++
	n.listeners[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Deliver reports a delivered notification to every listener and the push target.
// It is called by the scheduler and by the UI bridge for OS-delivered notifications.
func (n *CronNotifier) Deliver(note entities.DeliveredNotification) {
	n.mu.Lock()
	listeners := make([]func(entities.DeliveredNotification), 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	sink, token := n.sink, n.token
	n.mu.Unlock()

	for _, fn := range listeners {
		n.notify(fn, note)
	}

	if sink == nil || token == nil || note.Handle == "" {
		return
	}
	deviceToken := token()
	if deviceToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sink.Deliver(ctx, deviceToken, note.Content); err != nil {
		n.logger.Warnw("Push delivery failed", "handle", note.Handle, "error", err)
	}
}

func (n *CronNotifier) notify(fn func(entities.DeliveredNotification), note entities.DeliveredNotification) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Delivery listener panicked", "panic", r)
		}
	}()
	fn(note)
}
