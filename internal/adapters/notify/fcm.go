package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSink pushes fired reminders to a device through Firebase Cloud Messaging
type FCMSink struct {
	client messageSender
	logger *logger.Logger
}

var _ ports.PushSink = (*FCMSink)(nil)

// NewFCMSink initializes the Firebase app and its messaging client
func NewFCMSink(ctx context.Context, credentialsFile string, log *logger.Logger) (*FCMSink, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase: error initializing app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: error getting messaging client: %w", err)
	}

	return newFCMSink(client, log), nil
}

func newFCMSink(client messageSender, log *logger.Logger) *FCMSink {
	return &FCMSink{client: client, logger: log.WithComponent("fcm")}
}

func (s *FCMSink) Deliver(ctx context.Context, token string, content entities.NotificationContent) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: content.Title,
			Body:  content.Body,
		},
		Data: map[string]string{
			"type": "reminder",
		},
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}

	s.logger.Debugw("Reminder pushed", "message_id", id)
	return nil
}
