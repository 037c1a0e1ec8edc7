package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/siakad/core/internal/domain/entities"
	"github.com/siakad/core/internal/infrastructure/logger"
	"github.com/siakad/core/internal/ports"
)

// observableKeys are the keys whose changes are broadcast to subscribers.
var observableKeys = map[string]bool{
	entities.KeyTheme: true,
	entities.KeyUser:  true,
}

// ChangeListener receives the key that changed and its new raw value (nil when removed).
type ChangeListener func(key string, value []byte)

// Store is the JSON layer over a key-value driver. Failures are logged and
// reported as "no data" so callers fall back to defaults.
type Store struct {
	kv     ports.KeyValueStore
	logger *logger.Logger

	mu        sync.Mutex
	listeners map[string]map[int]ChangeListener
	nextID    int
}

// NewStore wraps a driver
func NewStore(kv ports.KeyValueStore, log *logger.Logger) *Store {
	return &Store{
		kv:        kv,
		logger:    log.WithComponent("store"),
		listeners: make(map[string]map[int]ChangeListener),
	}
}

// Load decodes the value under key into dst. It reports false when the key is
// absent, unreadable, or not valid JSON for dst.
func (s *Store) Load(ctx context.Context, key string, dst interface{}) bool {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, entities.ErrKeyNotFound) {
			s.logger.Warnw("Failed to read key", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warnw("Discarding malformed value", "key", key, "error", err)
		return false
	}
	return true
}

// Save encodes v under key. It reports whether the write succeeded.
func (s *Store) Save(ctx context.Context, key string, v interface{}) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warnw("Failed to encode value", "key", key, "error", err)
		return false
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.Warnw("Failed to write key", "key", key, "error", err)
		return false
	}
	s.publish(key, raw)
	return true
}

// Remove deletes key. It reports whether the delete succeeded.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.kv.Delete(ctx, key); err != nil {
		s.logger.Warnw("Failed to remove key", "key", key, "error", err)
		return false
	}
	s.publish(key, nil)
	return true
}

// Subscribe registers fn for changes of key. Only the theme and user keys are
// observable; subscribing to anything else returns a no-op unsubscribe.
func (s *Store) Subscribe(key string, fn ChangeListener) func() {
	if !observableKeys[key] {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners[key] == nil {
		s.listeners[key] = make(map[int]ChangeListener)
	}
	id := s.nextID
	s.nextID++
	s.listeners[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[key], id)
	}
}

// HealthCheck pings drivers backed by a server.
func (s *Store) HealthCheck(ctx context.Context) error {
	if hc, ok := s.kv.(ports.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) publish(key string, raw []byte) {
	if !observableKeys[key] {
		return
	}

	s.mu.Lock()
	fns := make([]ChangeListener, 0, len(s.listeners[key]))
	for _, fn := range s.listeners[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.dispatch(fn, key, raw)
	}
}

func (s *Store) dispatch(fn ChangeListener, key string, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("Store listener panicked", "key", key, "panic", r)
		}
	}()
	fn(key, raw)
}
