package mocks

import (
	"context"
	"sync"

	"github.com/eyes-gesture/eyes-client/internal/models"
)

// MockSettingsBackend implements settings.Backend for testing
type MockSettingsBackend struct {
	mu sync.Mutex

	Remote    models.Settings
	GetError  error
	SaveError error
	Saved     []models.Settings

	// SaveCalled receives every record passed to UpdateSettings when non-nil
	SaveCalled chan models.Settings
	// Block, when non-nil, holds UpdateSettings until it is closed
	Block chan struct{}
}

// NewMockSettingsBackend creates a backend that reports remote
func NewMockSettingsBackend(remote models.Settings) *MockSettingsBackend {
	return &MockSettingsBackend{
		Remote:     remote,
		SaveCalled: make(chan models.Settings, 16),
	}
}

// GetSettings returns Remote or GetError
func (m *MockSettingsBackend) GetSettings(ctx context.Context) (models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return models.Settings{}, m.GetError
	}
	return m.Remote, nil
}

// UpdateSettings records s and returns SaveError
func (m *MockSettingsBackend) UpdateSettings(ctx context.Context, s models.Settings) error {
	m.mu.Lock()
	block := m.Block
	m.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	m.Saved = append(m.Saved, s)
	err := m.SaveError
	if err == nil {
		m.Remote = s
	}
	m.mu.Unlock()

	if m.SaveCalled != nil {
		m.SaveCalled <- s
	}
	return err
}

// SavedRecords returns a copy of every persisted record
func (m *MockSettingsBackend) SavedRecords() []models.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Settings, len(m.Saved))
	copy(out, m.Saved)
	return out
}

// MockStatusSource implements status.Source for testing
type MockStatusSource struct {
	mu sync.Mutex

	Status models.SystemStatus
	Err    error
	Calls  int
}

// GetStats returns Status or Err
func (m *MockStatusSource) GetStats(ctx context.Context) (models.SystemStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return models.SystemStatus{}, m.Err
	}
	return m.Status, nil
}

// Set replaces the reported status and error
func (m *MockStatusSource) Set(status models.SystemStatus, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = status
	m.Err = err
}

// CallCount returns how many polls were served
func (m *MockStatusSource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
