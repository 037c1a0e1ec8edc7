package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Origin tells where an identifier was minted.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// legacyRemoteIDMaxLen is the length below which an untagged numeric id was
// treated as server-assigned by older clients. Millisecond timestamps are 13 digits.
const legacyRemoteIDMaxLen = 13

// ID is an identifier tagged with its origin.
type ID struct {
	Origin Origin `json:"origin"`
	Value  string `json:"value"`
}

// LocalID tags a client-generated value.
func LocalID(value string) ID { return ID{Origin: OriginLocal, Value: value} }

// RemoteID tags a server-assigned value.
func RemoteID(value string) ID { return ID{Origin: OriginRemote, Value: value} }

func (id ID) IsZero() bool { return id.Value == "" }

func (id ID) IsRemote() bool { return id.Origin == OriginRemote }

// String renders the text form "origin:value".
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return string(id.Origin) + ":" + id.Value
}

// ClassifyLegacy tags an untagged value the way older clients guessed it:
// all digits and shorter than 13 characters means the server assigned it.
func ClassifyLegacy(value string) ID {
	if len(value) > 0 && len(value) < legacyRemoteIDMaxLen && isDigits(value) {
		return RemoteID(value)
	}
	return LocalID(value)
}

// ParseID accepts the text form or a bare legacy value. Bare values must be
// digits; both local timestamps and server ids are numeric.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}, fmt.Errorf("empty id")
	}
	if origin, value, ok := strings.Cut(s, ":"); ok {
		switch Origin(origin) {
		case OriginLocal, OriginRemote:
			if value == "" {
				return ID{}, fmt.Errorf("id %q has no value", s)
			}
			return ID{Origin: Origin(origin), Value: value}, nil
		default:
			return ID{}, fmt.Errorf("id %q has unknown origin %q", s, origin)
		}
	}
	if !isDigits(s) {
		return ID{}, fmt.Errorf("id %q is not numeric", s)
	}
	return ClassifyLegacy(s), nil
}

// UnmarshalJSON accepts the tagged object as well as the bare string or number
// written by older clients and by the server.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	switch data[0] {
	case '{':
		type tagged ID
		var t tagged
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		if t.Origin != OriginLocal && t.Origin != OriginRemote {
			*id = ClassifyLegacy(t.Value)
			return nil
		}
		*id = ID(t)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ClassifyLegacy(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ClassifyLegacy(n.String())
		return nil
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IDGenerator mints local ids from the millisecond clock. Values are strictly
// increasing within one generator even when the clock stalls or goes back.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// Next returns a fresh local id.
func (g *IDGenerator) Next() ID {
	return LocalID(g.NextValue())
}

// NextValue returns a fresh timestamp string.
func (g *IDGenerator) NextValue() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
