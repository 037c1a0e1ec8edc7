package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/config"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

// Client talks to the SIAKAD REST API. Requests are attempted exactly once.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

var _ ports.RemoteClient = (*Client)(nil)

// NewClient creates a remote API client
func NewClient(cfg config.RemoteConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  log.WithComponent("remote"),
	}
}

// ClampLimit applies the server's message limit contract.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		return MaxMessageLimit
	}
	return limit
}

func (c *Client) Login(ctx context.Context, req ports.LoginRequest) (*entities.User, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodPost, "/login", nil, req, &env); err != nil {
		return nil, err
	}
	return envelopeUser(env, "login failed")
}

func (c *Client) Register(ctx context.Context, req ports.RegisterRequest) (*entities.User, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodPost, "/register", nil, req, &env); err != nil {
		return nil, err
	}
	return envelopeUser(env, "register failed")
}

func (c *Client) ChangePassword(ctx context.Context, req ports.ChangePasswordRequest) (string, error) {
	var env messageEnvelope
	if err := c.do(ctx, http.MethodPost, "/user/change-password", nil, req, &env); err != nil {
		return "", err
	}
	return env.text(), nil
}

func (c *Client) SaveFCMToken(ctx context.Context, req ports.FCMTokenRequest) (*entities.User, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodPost, "/user/fcm-token", nil, req, &env); err != nil {
		return nil, err
	}
	return envelopeUser(env, "fcm token not saved")
}

func (c *Client) FetchTasks(ctx context.Context, nim string) ([]entities.Task, error) {
	var out []taskDTO
	if err := c.do(ctx, http.MethodGet, "/tasks", url.Values{"nim": {nim}}, nil, &out); err != nil {
		return nil, err
	}

	tasks := make([]entities.Task, 0, len(out))
	for _, d := range out {
		t := d.toEntity()
		if t.OwnerNIM == "" {
			t.OwnerNIM = nim
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	var out taskDTO
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &out); err != nil {
		return nil, err
	}
	t := out.toEntity()
	if t.OwnerNIM == "" {
		t.OwnerNIM = req.UserNIM
	}
	return &t, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, req ports.UpdateTaskRequest) (*entities.Task, error) {
	var out taskDTO
	if err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	t := out.toEntity()
	return &t, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) FetchMessages(ctx context.Context, nim string, limit int) ([]entities.Message, error) {
	q := url.Values{
		"nim":   {nim},
		"limit": {strconv.Itoa(ClampLimit(limit))},
	}

	var out []messageDTO
	if err := c.do(ctx, http.MethodGet, "/messages", q, nil, &out); err != nil {
		return nil, err
	}

	msgs := make([]entities.Message, 0, len(out))
	for _, d := range out {
		m := d.toEntity()
		if m.OwnerNIM == "" {
			m.OwnerNIM = nim
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *Client) CreateMessage(ctx context.Context, req ports.CreateMessageRequest) (*entities.Message, error) {
	var out messageDTO
	if err := c.do(ctx, http.MethodPost, "/messages", nil, req, &out); err != nil {
		return nil, err
	}
	m := out.toEntity()
	return &m, nil
}

func (c *Client) UpdateMessage(ctx context.Context, id string, req ports.UpdateMessageRequest) (*entities.Message, error) {
	var out messageDTO
	if err := c.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	m := out.toEntity()
	return &m, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]entities.User, error) {
	var out []userDTO
	if err := c.do(ctx, http.MethodGet, "/debug/users", nil, nil, &out); err != nil {
		return nil, err
	}

	users := make([]entities.User, 0, len(out))
	for _, d := range out {
		users = append(users, d.toEntity())
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, nim string) (*entities.User, error) {
	var out userDTO
	if err := c.do(ctx, http.MethodGet, "/debug/user/"+url.PathEscape(nim), nil, nil, &out); err != nil {
		return nil, err
	}
	u := out.toEntity()
	return &u, nil
}

// do sends one JSON request and decodes a 2xx body into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", entities.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", entities.ErrTransport, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &entities.APIError{StatusCode: resp.StatusCode}
		var env messageEnvelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Message = env.text()
		}
		c.logger.Debugw("Remote request rejected", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func envelopeUser(env userEnvelope, fallback string) (*entities.User, error) {
	if env.User == nil {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		return nil, errors.New(msg)
	}
	u := env.User.toEntity()
	return &u, nil
}
