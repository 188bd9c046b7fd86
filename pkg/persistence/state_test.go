package persistence

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDeviceStateStore(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

		state := &DeviceState{
			AppID:       42,
			DeviceID:    "dev-abc123",
			DeviceToken: "tok-1",
			Gateway: &GatewaySnapshot{
				Host:   "gateway.example.com",
				Port:   9001,
				UseTLS: true,
			},
			BadgeCount: 3,
		}

		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt not stamped on save")
		}
		if got.AppID != 42 {
			t.Errorf("AppID = %d, want 42", got.AppID)
		}
		if got.DeviceID != "dev-abc123" {
			t.Errorf("DeviceID = %q, want dev-abc123", got.DeviceID)
		}
		if got.Gateway == nil || got.Gateway.Host != "gateway.example.com" {
			t.Errorf("Gateway = %+v, want host gateway.example.com", got.Gateway)
		}
		if !got.Gateway.UseTLS {
			t.Error("Gateway.UseTLS lost in round trip")
		}
		if got.BadgeCount != 3 {
			t.Errorf("BadgeCount = %d, want 3", got.BadgeCount)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		// No prior registration means nil state, not an error
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("SaveCreatesParentDirs", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "nested", "deep", "state.json"))

		if err := store.Save(&DeviceState{AppID: 1}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil || got.AppID != 1 {
			t.Errorf("Load() = %+v, want AppID 1", got)
		}
	})

	t.Run("SavePreservesExplicitSavedAt", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

		savedAt := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
		if err := store.Save(&DeviceState{SavedAt: savedAt}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !got.SavedAt.Equal(savedAt) {
			t.Errorf("SavedAt = %v, want %v", got.SavedAt, savedAt)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

		if err := store.Save(&DeviceState{AppID: 42}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() after Clear() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() after Clear() = %v, want nil", got)
		}

		// Clearing again is not an error
		if err := store.Clear(); err != nil {
			t.Fatalf("second Clear() error = %v", err)
		}
	})
}
