package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

// AuthService handles login state of the student
type AuthService struct {
	remote   ports.RemoteClient
	store    *Store
	validate *validator.Validate
	logger   *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(remote ports.RemoteClient, store *Store, log *logger.Logger) *AuthService {
	return &AuthService{
		remote:   remote,
		store:    store,
		validate: validator.New(),
		logger:   log.WithComponent("auth"),
	}
}

// Login authenticates against the server and stores the returned user
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*entities.User, error) {
	req.NIM = strings.TrimSpace(req.NIM)
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.remote.Login(ctx, req)
	if err != nil {
		s.logger.Warnw("Login failed", "nim", req.NIM, "error", err)
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.store.Save(ctx, entities.KeyUser, user) {
		return nil, fmt.Errorf("login: user not stored")
	}

	s.logger.Infow("User logged in", "nim", user.NIM)
	return user, nil
}

// Register creates an account and logs it in. The stored user keeps the
// requested registration type when the server does not echo it.
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*entities.User, error) {
	req.NIM = strings.TrimSpace(req.NIM)
	if req.Type == "" {
		req.Type = entities.RegistrationRegular
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.remote.Register(ctx, req)
	if err != nil {
		s.logger.Warnw("Register failed", "nim", req.NIM, "error", err)
		return nil, fmt.Errorf("register: %w", err)
	}
	if user.Type == "" {
		user.Type = req.Type
	}

	if !s.store.Save(ctx, entities.KeyUser, user) {
		return nil, fmt.Errorf("register: user not stored")
	}

	s.logger.Infow("User registered", "nim", user.NIM, "type", user.Type)
	return user, nil
}

// Logout forgets the stored user
func (s *AuthService) Logout(ctx context.Context) error {
	if !s.store.Remove(ctx, entities.KeyUser) {
		return fmt.Errorf("logout: user not removed")
	}
	s.logger.Info("User logged out")
	return nil
}

// CurrentUser returns the stored user, or nil when no one is logged in
func (s *AuthService) CurrentUser(ctx context.Context) *entities.User {
	var user entities.User
	if !s.store.Load(ctx, entities.KeyUser, &user) || user.NIM == "" {
		return nil
	}
	return &user
}

// ChangePassword changes the password of the logged in user and returns the server's message
func (s *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword string) (string, error) {
	user := s.CurrentUser(ctx)
	if user == nil {
		return "", entities.ErrNotLoggedIn
	}

	req := ports.ChangePasswordRequest{NIM: user.NIM, OldPassword: oldPassword, NewPassword: newPassword}
	if err := s.validate.Struct(req); err != nil {
		return "", err
	}

	msg, err := s.remote.ChangePassword(ctx, req)
	if err != nil {
		return "", fmt.Errorf("change password: %w", err)
	}

	s.logger.Infow("Password changed", "nim", user.NIM)
	return msg, nil
}

// RegisterFCMToken stores the device token on the server and in the local user
func (s *AuthService) RegisterFCMToken(ctx context.Context, token string) (*entities.User, error) {
	user := s.CurrentUser(ctx)
	if user == nil {
		return nil, entities.ErrNotLoggedIn
	}

	req := ports.FCMTokenRequest{NIM: user.NIM, FCMToken: strings.TrimSpace(token)}
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	if _, err := s.remote.SaveFCMToken(ctx, req); err != nil {
		return nil, fmt.Errorf("save fcm token: %w", err)
	}

	user.FCMToken = req.FCMToken
	if !s.store.Save(ctx, entities.KeyUser, user) {
		return nil, fmt.Errorf("save fcm token: user not stored")
	}
	return user, nil
}

// DeviceToken is the FCM token of the logged in user, or "".
func (s *AuthService) DeviceToken() string {
	user := s.CurrentUser(context.Background())
	if user == nil {
		return ""
	}
	return user.FCMToken
}
