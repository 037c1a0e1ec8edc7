package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/siakad/core/internal/application/services"
	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	state  *services.AppState
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(state *services.AppState, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		state:  state,
		logger: logger,
	}
}

// ListTasks returns the tasks of the current student
func (h *TaskHandler) ListTasks(c echo.Context) error {
	tasks := h.state.Snapshot().Tasks
	if c.QueryParam("done") == "false" {
		open := make([]entities.Task, 0, len(tasks))
		for _, t := range tasks {
			if !t.Done {
				open = append(open, t)
			}
		}
		tasks = open
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask adds a task optimistically
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.state.AddTask(c.Request().Context(), req.Title)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

// UpdateTask changes the title of a task
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.state.EditTask(c.Request().Context(), id, req.Title)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// ToggleTask flips the done flag
func (h *TaskHandler) ToggleTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	task, err := h.state.ToggleTask(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.state.DeleteTask(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// MessageHandler handles inbox requests
type MessageHandler struct {
	state  *services.AppState
	logger *logger.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(state *services.AppState, logger *logger.Logger) *MessageHandler {
	return &MessageHandler{
		state:  state,
		logger: logger,
	}
}

// ListMessages returns the inbox, newest first
func (h *MessageHandler) ListMessages(c echo.Context) error {
	msgs := h.state.Snapshot().Messages
	if c.QueryParam("unread") == "true" {
		unread := make([]entities.Message, 0, len(msgs))
		for _, m := range msgs {
			if !m.Read {
				unread = append(unread, m)
			}
		}
		msgs = unread
	}
	return c.JSON(http.StatusOK, msgs)
}

// SendMessage delivers a message to another student by name or NIM
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.state.SendMessage(c.Request().Context(), req.To, req.Text)
	if err != nil {
		h.logger.Warnw("Send message failed", "error", err, "to", req.To)
		return err
	}

	return c.JSON(http.StatusCreated, msg)
}

// AddLocalMessage stores a note that never leaves this device
func (h *MessageHandler) AddLocalMessage(c echo.Context) error {
	var req LocalMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := h.state.AddLocalMessage(c.Request().Context(), req.From, req.Text, "")
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, msg)
}

// MarkRead marks a message read
func (h *MessageHandler) MarkRead(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	msg, err := h.state.MarkMessageRead(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, msg)
}

type TaskRequest struct {
	Title string `json:"title" validate:"required"`
}

type SendMessageRequest struct {
	To   string `json:"to" validate:"required"`
	Text string `json:"text" validate:"required"`
}

type LocalMessageRequest struct {
	From string `json:"from" validate:"required"`
	Text string `json:"text" validate:"required"`
}
