package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.General.LogLevel != "info" {
		t.Errorf("expected LogLevel 'info', got %q", cfg.General.LogLevel)
	}
	if !cfg.General.UpgradesEnabled {
		t.Error("expected UpgradesEnabled to be true")
	}
	if cfg.General.UpgradeScoreDelta != 50 {
		t.Errorf("expected UpgradeScoreDelta 50, got %d", cfg.General.UpgradeScoreDelta)
	}
	if cfg.Backends.Active != "local" {
		t.Errorf("expected active backend 'local', got %q", cfg.Backends.Active)
	}
	if cfg.Scheduler.WantedScanHours != 6 {
		t.Errorf("expected WantedScanHours 6, got %d", cfg.Scheduler.WantedScanHours)
	}
	if cfg.Scheduler.CleanupHours != 168 {
		t.Errorf("expected CleanupHours 168, got %d", cfg.Scheduler.CleanupHours)
	}
	if cfg.Whisper.MaxConcurrent != 1 {
		t.Errorf("expected whisper MaxConcurrent 1, got %d", cfg.Whisper.MaxConcurrent)
	}
	if _, ok := cfg.LanguageProfiles["default"]; !ok {
		t.Error("expected a default language profile")
	}
}

func TestLanguageProfileForFallsBackToDefault(t *testing.T) {
	cfg := Default()
	p := cfg.LanguageProfileFor("nonexistent-series")
	if p.Name != "default" {
		t.Errorf("expected fallback to the default profile, got %q", p.Name)
	}
}

func TestProviderAndBackendFields(t *testing.T) {
	cfg := Default()
	cfg.Providers.Entries = []ProviderEntry{
		{Name: "opensubtitles", Enabled: true, Fields: map[string]string{"api_key": "abc"}},
	}
	cfg.Backends.Entries = []BackendEntry{
		{Name: "deepl", Fields: map[string]string{"api_key": "xyz"}},
	}

	if got := cfg.ProviderFields("opensubtitles")["api_key"]; got != "abc" {
		t.Errorf("expected provider field 'abc', got %q", got)
	}
	if got := cfg.BackendFields("deepl")["api_key"]; got != "xyz" {
		t.Errorf("expected backend field 'xyz', got %q", got)
	}
	if cfg.ProviderFields("missing") != nil {
		t.Error("expected nil fields for an unconfigured provider")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	oldPath := configPath
	oldInstance := instance
	configPath = filepath.Join(dir, "config.json")
	instance = nil
	defer func() {
		configPath = oldPath
		instance = oldInstance
	}()

	cfg := Default()
	cfg.General.LogLevel = "debug"
	cfg.Backends.Active = "deepl"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}

	instance = nil
	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.General.LogLevel != "debug" {
		t.Errorf("expected LogLevel 'debug' after round trip, got %q", loaded.General.LogLevel)
	}
	if loaded.Backends.Active != "deepl" {
		t.Errorf("expected active backend 'deepl' after round trip, got %q", loaded.Backends.Active)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	oldPath := configPath
	configPath = filepath.Join(dir, "config.json")
	defer func() { configPath = oldPath }()

	if Exists() {
		t.Error("expected Exists() to be false before any Save")
	}
}
