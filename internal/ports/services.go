package ports

import (
	"context"
	"time"

	"github.com/siakad/core/internal/domain/entities"
)

// RemoteClient is a typed wrapper over the SIAKAD REST API. It never retries.
type RemoteClient interface {
	Login(ctx context.Context, req LoginRequest) (*entities.User, error)
	Register(ctx context.Context, req RegisterRequest) (*entities.User, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) (string, error)
	SaveFCMToken(ctx context.Context, req FCMTokenRequest) (*entities.User, error)

	FetchTasks(ctx context.Context, nim string) ([]entities.Task, error)
	CreateTask(ctx context.Context, req CreateTaskRequest) (*entities.Task, error)
	UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*entities.Task, error)
	DeleteTask(ctx context.Context, id string) error

	FetchMessages(ctx context.Context, nim string, limit int) ([]entities.Message, error)
	CreateMessage(ctx context.Context, req CreateMessageRequest) (*entities.Message, error)
	UpdateMessage(ctx context.Context, id string, req UpdateMessageRequest) (*entities.Message, error)

	ListUsers(ctx context.Context) ([]entities.User, error)
	GetUser(ctx context.Context, nim string) (*entities.User, error)
}

// Notifier is the local notification delivery collaborator.
type Notifier interface {
	Schedule(ctx context.Context, content entities.NotificationContent, trigger entities.DailyTrigger) (entities.ReminderHandle, error)
	Cancel(ctx context.Context, handle entities.ReminderHandle) error
	OnDelivered(fn func(entities.DeliveredNotification)) (unsubscribe func())
}

// PushSink forwards a fired reminder to a device.
type PushSink interface {
	Deliver(ctx context.Context, token string, content entities.NotificationContent) error
}

// Clock abstracts the wall clock so schedules can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Request/Response Types

// Auth related types
type LoginRequest struct {
	NIM      string `json:"nim" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	NIM      string                    `json:"nim" validate:"required"`
	Name     string                    `json:"name" validate:"required"`
	Email    *string                   `json:"email" validate:"omitempty,email"`
	Password string                    `json:"password" validate:"required"`
	Type     entities.RegistrationType `json:"type" validate:"omitempty,oneof=reguler karyawan"`
}

type ChangePasswordRequest struct {
	NIM         string `json:"nim" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type FCMTokenRequest struct {
	NIM      string `json:"nim" validate:"required"`
	FCMToken string `json:"fcm_token" validate:"required"`
}

// Task related types
type CreateTaskRequest struct {
	UserNIM string `json:"user_nim" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Done    bool   `json:"done"`
}

type UpdateTaskRequest struct {
	Title *string `json:"title,omitempty"`
	Done  *bool   `json:"done,omitempty"`
}

// Message related types
type CreateMessageRequest struct {
	UserNIM string `json:"user_nim" validate:"required"`
	From    string `json:"from" validate:"required"`
	Text    string `json:"text" validate:"required"`
	Read    bool   `json:"read"`
}

type UpdateMessageRequest struct {
	Read *bool `json:"read,omitempty"`
}
