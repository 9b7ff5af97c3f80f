package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyes-gesture/eyes-client/internal/mocks"
	"github.com/eyes-gesture/eyes-client/internal/models"
)

func newTestStore(t *testing.T) (*Store, *mocks.MockSettingsBackend) {
	t.Helper()
	backend := mocks.NewMockSettingsBackend(models.DefaultSettings())
	store := NewStore(backend, time.Second)
	t.Cleanup(store.Close)
	return store, backend
}

func waitSaved(t *testing.T, backend *mocks.MockSettingsBackend) models.Settings {
	t.Helper()
	select {
	case saved := <-backend.SaveCalled:
		return saved
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for settings to persist")
		return models.Settings{}
	}
}

func TestStoreSet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		check   func(t *testing.T, s models.Settings)
		wantErr error
	}{
		{
			name:  "bool",
			key:   models.KeyDesktopControl,
			value: false,
			check: func(t *testing.T, s models.Settings) { assert.False(t, s.DesktopControl) },
		},
		{
			name:  "float from int",
			key:   models.KeySwipeSensitivity,
			value: 150,
			check: func(t *testing.T, s models.Settings) { assert.Equal(t, 150.0, s.SwipeSensitivity) },
		},
		{
			name:  "float from string",
			key:   models.KeyCooldown,
			value: "0.5",
			check: func(t *testing.T, s models.Settings) { assert.Equal(t, 0.5, s.Cooldown) },
		},
		{
			name:  "camera from int",
			key:   models.KeySelectedCamera,
			value: 1,
			check: func(t *testing.T, s models.Settings) { assert.Equal(t, "1", s.SelectedCamera) },
		},
		{
			name:  "camera url",
			key:   models.KeySelectedCamera,
			value: "http://192.168.1.5:4747/video",
			check: func(t *testing.T, s models.Settings) {
				assert.Equal(t, "http://192.168.1.5:4747/video", s.SelectedCamera)
			},
		},
		{name: "unknown key", key: "fps", value: 30, wantErr: ErrUnknownKey},
		{name: "bool from garbage", key: models.KeyVolumeControl, value: "maybe", wantErr: ErrInvalidValue},
		{name: "empty camera", key: models.KeySelectedCamera, value: "", wantErr: ErrInvalidValue},
		{name: "negative cooldown", key: models.KeyCooldown, value: -1, wantErr: ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			before := store.Current()

			err := store.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, store.Current(), "rejected values leave the record untouched")
				return
			}
			require.NoError(t, err)
			tt.check(t, store.Current())
		})
	}
}

func TestStoreSetVisibleBeforePersist(t *testing.T) {
	backend := mocks.NewMockSettingsBackend(models.DefaultSettings())
	backend.Block = make(chan struct{})
	store := NewStore(backend, time.Second)
	defer store.Close()

	require.NoError(t, store.Set(models.KeyCooldown, 1.5))
	assert.Equal(t, 1.5, store.Current().Cooldown, "visible while the save is still blocked")

	close(backend.Block)
	saved := waitSaved(t, backend)
	assert.Equal(t, 1.5, saved.Cooldown)
}

func TestStorePersistFailureKeepsLocalValue(t *testing.T) {
	store, backend := newTestStore(t)
	backend.SaveError = errors.New("backend unavailable")

	require.NoError(t, store.Set(models.KeyBrightnessControl, false))
	waitSaved(t, backend)

	assert.False(t, store.Current().BrightnessControl, "no rollback after a failed save")
}

func TestStoreCoalescesRapidEdits(t *testing.T) {
	backend := mocks.NewMockSettingsBackend(models.DefaultSettings())
	backend.Block = make(chan struct{})
	store := NewStore(backend, 5*time.Second)
	defer store.Close()

	require.NoError(t, store.Set(models.KeySwipeSensitivity, 110))
	// Let the worker pick up the first record and block on it
	require.Eventually(t, func() bool {
		store.pendingMu.Lock()
		defer store.pendingMu.Unlock()
		return store.pending == nil
	}, time.Second, 5*time.Millisecond)

	for _, v := range []float64{120, 130, 140} {
		require.NoError(t, store.Set(models.KeySwipeSensitivity, v))
	}
	close(backend.Block)

	assert.Equal(t, 110.0, waitSaved(t, backend).SwipeSensitivity)
	assert.Equal(t, 140.0, waitSaved(t, backend).SwipeSensitivity, "intermediate edits are coalesced")
	assert.Len(t, backend.SavedRecords(), 2)
}

func TestStoreOnChange(t *testing.T) {
	store, _ := newTestStore(t)

	type change struct {
		key      string
		old, new string
	}
	var changes []change
	store.OnChange(func(key string, old, new models.Settings) {
		changes = append(changes, change{key, old.SelectedCamera, new.SelectedCamera})
	})

	require.NoError(t, store.Set(models.KeySelectedCamera, "1"))
	require.Error(t, store.Set(models.KeySelectedCamera, ""))

	require.Len(t, changes, 1)
	assert.Equal(t, change{models.KeySelectedCamera, "0", "1"}, changes[0])
}

func TestStoreLoad(t *testing.T) {
	t.Run("overwrites local state", func(t *testing.T) {
		store, backend := newTestStore(t)
		remote := models.DefaultSettings()
		remote.SelectedCamera = "2"
		remote.Cooldown = 2
		backend.Remote = remote

		var loadedKey *string
		store.OnChange(func(key string, old, new models.Settings) { loadedKey = &key })

		require.NoError(t, store.Load(context.Background()))
		assert.Equal(t, remote, store.Current())
		require.NotNil(t, loadedKey)
		assert.Equal(t, "", *loadedKey)
	})

	t.Run("failure keeps defaults", func(t *testing.T) {
		store, backend := newTestStore(t)
		backend.GetError = errors.New("connection refused")

		assert.Error(t, store.Load(context.Background()))
		assert.Equal(t, models.DefaultSettings(), store.Current())
	})

	t.Run("invalid remote record rejected", func(t *testing.T) {
		store, backend := newTestStore(t)
		backend.Remote = models.Settings{}

		assert.Error(t, store.Load(context.Background()))
		assert.Equal(t, models.DefaultSettings(), store.Current())
	})
}

func TestStoreCloseIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	store.Close()
	store.Close()

	require.NoError(t, store.Set(models.KeyDesktopControl, false), "local edits still apply after close")
	assert.False(t, store.Current().DesktopControl)
}

func TestStoreConcurrentSetsPersistLatestRecord(t *testing.T) {
	backend := mocks.NewMockSettingsBackend(models.DefaultSettings())
	backend.SaveCalled = nil
	store := NewStore(backend, time.Second)
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Set(models.KeySwipeSensitivity, float64(i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Set(models.KeyCooldown, float64(i)/10))
		}(i)
	}
	wg.Wait()

	want := store.Current()
	require.Eventually(t, func() bool {
		saved := backend.SavedRecords()
		return len(saved) > 0 && saved[len(saved)-1] == want
	}, 2*time.Second, 5*time.Millisecond, "the last persisted record carries every applied key")
}
