package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siakad/core/internal/domain/entities"
)

// flexString decodes a JSON string or number as its text.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexBool decodes true/false, 0/1 and "0"/"1" as the backend stores booleans as tinyint.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

type userDTO struct {
	ID       flexString `json:"id"`
	NIM      flexString `json:"nim"`
	Name     string     `json:"name"`
	Email    *string    `json:"email"`
	Type     string     `json:"type"`
	FCMToken *string    `json:"fcm_token"`
}

func (d userDTO) toEntity() entities.User {
	u := entities.User{
		NIM:  string(d.NIM),
		Name: d.Name,
		Type: entities.RegistrationType(d.Type),
	}
	if d.ID != "" {
		u.ID = entities.RemoteID(string(d.ID))
	}
	if d.Email != nil {
		u.Email = *d.Email
	}
	if d.FCMToken != nil {
		u.FCMToken = *d.FCMToken
	}
	return u
}

type taskDTO struct {
	ID      flexString `json:"id"`
	UserNIM flexString `json:"user_nim"`
	Title   string     `json:"title"`
	Done    flexBool   `json:"done"`
}

func (d taskDTO) toEntity() entities.Task {
	return entities.Task{
		ID:       entities.RemoteID(string(d.ID)),
		OwnerNIM: string(d.UserNIM),
		Title:    d.Title,
		Done:     bool(d.Done),
	}
}

type messageDTO struct {
	ID      flexString `json:"id"`
	UserNIM flexString `json:"user_nim"`
	From    string     `json:"from"`
	Text    string     `json:"text"`
	Read    flexBool   `json:"read"`
}

func (d messageDTO) toEntity() entities.Message {
	return entities.Message{
		ID:       entities.RemoteID(string(d.ID)),
		OwnerNIM: string(d.UserNIM),
		UserNIM:  string(d.UserNIM),
		From:     d.From,
		Text:     d.Text,
		Read:     bool(d.Read),
	}
}

// userEnvelope is the {message, user} answer of the auth endpoints.
type userEnvelope struct {
	Message string   `json:"message"`
	User    *userDTO `json:"user"`
}

type messageEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e messageEnvelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
