// Package settings keeps the local copy of the shared settings record.
// Mutations are applied immediately and persisted to the backend in the
// background; a failed save is logged and never rolled back.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/eyes-gesture/eyes-client/internal/models"
	"github.com/eyes-gesture/eyes-client/pkg/debug"
)

var (
	// ErrUnknownKey is returned by Set for keys outside models.SettingKeys
	ErrUnknownKey = errors.New("unknown settings key")
	// ErrInvalidValue is returned by Set when the value cannot be stored
	ErrInvalidValue = errors.New("invalid settings value")
)

// Backend persists the settings record. api.Client implements it.
type Backend interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, settings models.Settings) error
}

// ChangeFunc observes a change. key is empty when the whole record was
// replaced by Load.
type ChangeFunc func(key string, old, new models.Settings)

// Store owns the in-memory settings record
type Store struct {
	backend Backend
	timeout time.Duration

	mu        sync.RWMutex
	current   models.Settings
	observers []ChangeFunc

	// single-slot mailbox for the persist worker; a newer record replaces
	// one that has not been picked up yet
	pendingMu sync.Mutex
	pending   *models.Settings
	wake      chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewStore creates a store holding the defaults and starts its persist
// worker. Each save is bounded by timeout.
func NewStore(backend Backend, timeout time.Duration) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend: backend,
		timeout: timeout,
		current: models.DefaultSettings(),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.persistLoop()
	return s
}

// Current returns the local record. It never waits on persistence.
func (s *Store) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers an observer. Observers run on the goroutine that made
// the change.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Set updates a single key. value is converted to the field's type where
// possible, so "0.5" is accepted for cooldown and 1 for selected_camera.
func (s *Store) Set(key string, value interface{}) error {
	if !isKnownKey(key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	s.mu.Lock()
	old := s.current
	next := s.current
	if err := decodeInto(&next, key, value); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	s.current = next
	observers := append([]ChangeFunc(nil), s.observers...)
	// queued under mu so the mailbox always ends on the latest record
	s.enqueue(next)
	s.mu.Unlock()

	debug.Debug("Setting %s changed to %v", key, value)
	for _, fn := range observers {
		fn(key, old, next)
	}
	return nil
}

// Load replaces the local record with the backend's copy. On failure the
// local record is kept and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	remote, err := s.backend.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := remote.Validate(); err != nil {
		return fmt.Errorf("backend returned invalid settings: %w", err)
	}

	s.mu.Lock()
	old := s.current
	s.current = remote
	observers := append([]ChangeFunc(nil), s.observers...)
	s.mu.Unlock()

	debug.Info("Loaded settings from backend: camera=%s", remote.SelectedCamera)
	for _, fn := range observers {
		fn("", old, remote)
	}
	return nil
}

// Close stops the persist worker. A save in flight is cancelled; a queued
// one is dropped.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Store) enqueue(record models.Settings) {
	s.pendingMu.Lock()
	s.pending = &record
	s.pendingMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) take() (models.Settings, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pending == nil {
		return models.Settings{}, false
	}
	record := *s.pending
	s.pending = nil
	return record, true
}

func (s *Store) persistLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		record, ok := s.take()
		if !ok {
			continue
		}
		s.persist(record)
	}
}

func (s *Store) persist(record models.Settings) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}
	if err := s.backend.UpdateSettings(ctx, record); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		debug.Error("Failed to persist settings: %v", err)
		return
	}
	debug.Debug("Settings persisted")
}

func isKnownKey(key string) bool {
	for _, k := range models.SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// decodeInto writes value into the field tagged key
func decodeInto(target *models.Settings, key string, value interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(map[string]interface{}{key: value})
}
