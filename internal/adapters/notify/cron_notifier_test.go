package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
)

func TestCronSpec(t *testing.T) {
	tests := []struct {
		name    string
		trigger entities.DailyTrigger
		want    string
		wantErr bool
	}{
		{"morning", entities.DailyTrigger{Hour: 8, Minute: 0}, "0 8 * * *", false},
		{"evening", entities.DailyTrigger{Hour: 21, Minute: 45}, "45 21 * * *", false},
		{"hour too large", entities.DailyTrigger{Hour: 24}, "", true},
		{"negative minute", entities.DailyTrigger{Minute: -1}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CronSpec(tt.trigger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleAndCancel(t *testing.T) {
	n := NewCronNotifier(logger.NewNop())
	ctx := context.Background()

	h, err := n.Schedule(ctx, entities.NotificationContent{Title: "Ingat Presensi"}, entities.DailyTrigger{Hour: 8, Repeats: true})
	require.NoError(t, err)
	assert.NotEmpty(t, h)
	assert.Equal(t, 1, n.Scheduled())

	_, ok := n.NextRun(h)
	assert.True(t, ok)

	require.NoError(t, n.Cancel(ctx, h))
	assert.Equal(t, 0, n.Scheduled())

	// unknown handles are a no-op
	assert.NoError(t, n.Cancel(ctx, "does-not-exist"))
	assert.NoError(t, n.Cancel(ctx, h))
}

type recordingSink struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (s *recordingSink) Deliver(ctx context.Context, token string, content entities.NotificationContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	return s.err
}

func TestDeliverNotifiesListeners(t *testing.T) {
	n := NewCronNotifier(logger.NewNop())
	sink := &recordingSink{err: errors.New("offline")}
	n.SetPushTarget(sink, func() string { return "device-1" })

	var got []entities.DeliveredNotification
	unsubscribe := n.OnDelivered(func(d entities.DeliveredNotification) {
		got = append(got, d)
	})
	n.OnDelivered(func(entities.DeliveredNotification) { panic("boom") })

	note := entities.DeliveredNotification{Handle: "h1", Content: entities.NotificationContent{Title: "Ingat Presensi", Body: "Belum presensi: Algoritma"}}
	n.Deliver(note)

	require.Len(t, got, 1)
	assert.Equal(t, note, got[0])
	assert.Equal(t, []string{"device-1"}, sink.tokens)

	unsubscribe()
	n.Deliver(note)
	assert.Len(t, got, 1)
}

func TestDeliverFromBridgeIsNotPushed(t *testing.T) {
	n := NewCronNotifier(logger.NewNop())
	sink := &recordingSink{}
	n.SetPushTarget(sink, func() string { return "device-1" })

	n.Deliver(entities.DeliveredNotification{Content: entities.NotificationContent{Title: "presensi"}})
	assert.Empty(t, sink.tokens)
}

type fakeSender struct {
	got *messaging.Message
}

func (f *fakeSender) Send(ctx context.Context, m *messaging.Message) (string, error) {
	f.got = m
	return "projects/x/messages/1", nil
}

func TestFCMSinkBuildsMessage(t *testing.T) {
	sender := &fakeSender{}
	sink := newFCMSink(sender, logger.NewNop())

	err := sink.Deliver(context.Background(), "tok", entities.NotificationContent{Title: "Jadwal Hari Ini", Body: "Anda ada 1 perkuliahan hari ini: Algoritma"})
	require.NoError(t, err)

	require.NotNil(t, sender.got)
	assert.Equal(t, "tok", sender.got.Token)
	assert.Equal(t, "Jadwal Hari Ini", sender.got.Notification.Title)
	assert.Equal(t, "reminder", sender.got.Data["type"])
}
