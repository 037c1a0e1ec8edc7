package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/config"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.RemoteConfig{BaseURL: srv.URL + "/"}, logger.NewNop())
}

func TestFetchTasksDecodesLaravelShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "2201", r.URL.Query().Get("nim"))
		w.Write([]byte(`[
			{"id": 7, "user_nim": "2201", "title": "Laporan", "done": 1},
			{"id": "8", "user_nim": "2201", "title": "Kuis", "done": "0"},
			{"id": 9, "title": "UTS", "done": false}
		]`))
	})

	tasks, err := c.FetchTasks(context.Background(), "2201")
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, entities.RemoteID("7"), tasks[0].ID)
	assert.True(t, tasks[0].Done)
	assert.Equal(t, entities.RemoteID("8"), tasks[1].ID)
	assert.False(t, tasks[1].Done)
	assert.Equal(t, "2201", tasks[2].OwnerNIM)
}

func TestFetchMessagesClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  string
	}{
		{"zero uses default", 0, "50"},
		{"negative uses default", -3, "50"},
		{"within range", 120, "120"},
		{"above max", 500, "200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, r.URL.Query().Get("limit"))
				w.Write([]byte(`[{"id":1,"user_nim":"2201","from":"Pak Dosen","text":"Halo","read":0}]`))
			})

			msgs, err := c.FetchMessages(context.Background(), "2201", tt.limit)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, entities.RemoteID("1"), msgs[0].ID)
			assert.False(t, msgs[0].Read)
		})
	}
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Login gagal"}`))
	})

	_, err := c.Login(context.Background(), ports.LoginRequest{NIM: "1", Password: "x"})
	require.Error(t, err)

	var apiErr *entities.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Login gagal", apiErr.Message)
}

func TestLoginWithoutUserFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"ok"}`))
	})

	_, err := c.Login(context.Background(), ports.LoginRequest{NIM: "1", Password: "x"})
	assert.EqualError(t, err, "ok")
}

func TestTransportErrorIsWrapped(t *testing.T) {
	c := NewClient(config.RemoteConfig{BaseURL: "http://127.0.0.1:1"}, logger.NewNop())

	_, err := c.FetchTasks(context.Background(), "2201")
	assert.ErrorIs(t, err, entities.ErrTransport)
}

func TestCreateTaskSendsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2201", body["user_nim"])
		assert.Equal(t, "Laporan", body["title"])
		assert.Equal(t, false, body["done"])

		w.Write([]byte(`{"id":42,"user_nim":"2201","title":"Laporan","done":false}`))
	})

	task, err := c.CreateTask(context.Background(), ports.CreateTaskRequest{UserNIM: "2201", Title: "Laporan"})
	require.NoError(t, err)
	assert.Equal(t, entities.RemoteID("42"), task.ID)
	assert.Equal(t, "2201", task.OwnerNIM)
}

func TestDeleteTaskIgnoresBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/tasks/5", r.URL.Path)
		w.Write([]byte(`{"deleted":true}`))
	})

	assert.NoError(t, c.DeleteTask(context.Background(), "5"))
}

func TestFlexBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{`true`, true, false},
		{`false`, false, false},
		{`1`, true, false},
		{`0`, false, false},
		{`"1"`, true, false},
		{`"0"`, false, false},
		{`null`, false, false},
		{`"maybe"`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var b flexBool
			err := json.Unmarshal([]byte(tt.in), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, bool(b))
		})
	}
}
