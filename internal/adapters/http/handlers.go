package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/siakad/core/internal/application/services"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService *services.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login handles student login
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Login failed", "error", err, "nim", req.NIM)
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// Register handles account creation
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	user, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Register failed", "error", err, "nim", req.NIM)
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// Logout forgets the stored student
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.authService.Logout(c.Request().Context()); err != nil {
		h.logger.Errorw("Logout failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Logout failed")
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// ChangePassword handles password changes of the logged in student
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.authService.ChangePassword(c.Request().Context(), req.OldPassword, req.NewPassword)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Password changed"
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: msg})
}

// RegisterFCMToken stores the push token of this device
func (h *AuthHandler) RegisterFCMToken(c echo.Context) error {
	var req FCMTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.RegisterFCMToken(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// StateHandler serves the aggregate state and preferences
type StateHandler struct {
	state  *services.AppState
	logger *logger.Logger
}

// NewStateHandler creates a new state handler
func NewStateHandler(state *services.AppState, logger *logger.Logger) *StateHandler {
	return &StateHandler{
		state:  state,
		logger: logger,
	}
}

// GetState returns the snapshot with derived counts
func (h *StateHandler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.state.Snapshot())
}

// GetPreferences returns theme and reminder time
func (h *StateHandler) GetPreferences(c echo.Context) error {
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, PreferencesResponse{
		Theme:        h.state.Theme(ctx),
		ReminderTime: h.state.ReminderTime(ctx),
	})
}

// UpdatePreferences changes any of theme and reminder time
func (h *StateHandler) UpdatePreferences(c echo.Context) error {
	var req PreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	ctx := c.Request().Context()
	if req.Theme != nil {
		if err := h.state.SetTheme(ctx, *req.Theme); err != nil {
			return err
		}
	}
	if req.ReminderTime != nil {
		if err := h.state.SetReminderTime(ctx, *req.ReminderTime); err != nil {
			return err
		}
	}

	return h.GetPreferences(c)
}

// NotificationDelivered is called by the UI bridge once the OS showed a notification
func (h *StateHandler) NotificationDelivered(c echo.Context) error {
	var note entities.DeliveredNotification
	if err := c.Bind(&note); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	mirrored := h.state.ReportDelivered(note)
	return c.JSON(http.StatusOK, DeliveredResponse{Mirrored: mirrored})
}

// Request/Response types

type MessageResponse struct {
	Message string `json:"message"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type FCMTokenRequest struct {
	Token string `json:"fcm_token" validate:"required"`
}

type PreferencesRequest struct {
	Theme        *entities.Theme `json:"theme,omitempty"`
	ReminderTime *string         `json:"reminder_time,omitempty"`
}

type PreferencesResponse struct {
	Theme        entities.Theme `json:"theme"`
	ReminderTime string         `json:"reminder_time"`
}

type DeliveredResponse struct {
	Mirrored bool `json:"mirrored"`
}

// Helper functions

func parseID(c echo.Context) (entities.ID, error) {
	id, err := entities.ParseID(c.Param("id"))
	if err != nil {
		return entities.ID{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid id")
	}
	return id, nil
}

func parseDay(c echo.Context) (int, error) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || !entities.ValidDay(day) {
		return 0, echo.NewHTTPError(http.StatusBadRequest, entities.ErrInvalidDay.Error())
	}
	return day, nil
}
