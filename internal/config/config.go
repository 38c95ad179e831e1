// Package config is the engine's configuration layer: a typed Config
// struct, viper-backed Load/Save, JSON on disk, and defaults registered
// before load. Watch wires on-disk changes to the config_update event so
// read-through caches can invalidate.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ProviderEntry is one subtitle provider's runtime configuration: whether
// it is enabled, its position in the static priority list, and its
// provider-specific fields (namespaced provider.<name>.<key> on disk).
type ProviderEntry struct {
	Name    string            `json:"name" mapstructure:"name"`
	Enabled bool              `json:"enabled" mapstructure:"enabled"`
	Fields  map[string]string `json:"fields" mapstructure:"fields"`
}

// ProvidersConfig selects and orders the subtitle providers.
type ProvidersConfig struct {
	Enabled        []string        `json:"enabled" mapstructure:"enabled"`
	Priority       []string        `json:"priority" mapstructure:"priority"`
	AutoPrioritise bool            `json:"auto_prioritise" mapstructure:"auto_prioritise"`
	CacheTTLSecs   int             `json:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	Entries        []ProviderEntry `json:"entries" mapstructure:"entries"`
}

// BackendEntry is one translation backend's namespaced configuration
// (backend.<name>.<key>).
type BackendEntry struct {
	Name   string            `json:"name" mapstructure:"name"`
	Fields map[string]string `json:"fields" mapstructure:"fields"`
}

// BackendsConfig selects the active translation backend.
type BackendsConfig struct {
	Active        string         `json:"active" mapstructure:"active"`
	MaxRetries    int            `json:"max_retries" mapstructure:"max_retries"`
	HallucinationGuard bool      `json:"hallucination_guard" mapstructure:"hallucination_guard"`
	Entries       []BackendEntry `json:"entries" mapstructure:"entries"`
}

// MediaServerEntry is one media-server instance; the full list lives in
// a single JSON array.
type MediaServerEntry struct {
	Name    string `json:"name" mapstructure:"name"`
	Kind    string `json:"kind" mapstructure:"kind"` // "jellyfin" | "plex"
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	Token   string `json:"token" mapstructure:"token"`
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
}

// MediaManagerEntry is one configured external catalog system, modeled
// on Sonarr/Radarr's shared v3 REST API shape.
type MediaManagerEntry struct {
	Name    string `json:"name" mapstructure:"name"`
	Kind    string `json:"kind" mapstructure:"kind"` // "sonarr" | "radarr"
	BaseURL string `json:"base_url" mapstructure:"base_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
}

// SchedulerConfig holds the interval (hours) for each periodic
// task; 0 means disabled. Re-read on every tick by internal/scheduler, so
// changing these values here takes effect after the current cycle without
// a restart.
type SchedulerConfig struct {
	WantedScanHours   int `json:"wanted_scan_hours" mapstructure:"wanted_scan_hours"`
	WantedSearchHours int `json:"wanted_search_hours" mapstructure:"wanted_search_hours"`
	CleanupHours      int `json:"cleanup_hours" mapstructure:"cleanup_hours"`
	AniDBRefreshHours int `json:"anidb_refresh_hours" mapstructure:"anidb_refresh_hours"`
	BackupHourUTC     int `json:"backup_hour_utc" mapstructure:"backup_hour_utc"`
	MaxItemsPerRun    int `json:"max_items_per_run" mapstructure:"max_items_per_run"`
	MaxSearchAttempts int `json:"max_search_attempts" mapstructure:"max_search_attempts"`
}

// HookEntry is one configured script hook.
type HookEntry struct {
	Name           string `json:"name" mapstructure:"name"`
	EventName      string `json:"event_name" mapstructure:"event_name"`
	ScriptPath     string `json:"script_path" mapstructure:"script_path"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
}

// WebhookEntry is one configured outbound webhook.
type WebhookEntry struct {
	Name           string `json:"name" mapstructure:"name"`
	EventName      string `json:"event_name" mapstructure:"event_name"`
	URL            string `json:"url" mapstructure:"url"`
	Secret         string `json:"secret" mapstructure:"secret"`
	RetryCount     int    `json:"retry_count" mapstructure:"retry_count"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
}

// LanguageProfile names the source/target languages and glossary for a
// series or a global default.
type LanguageProfile struct {
	Name                 string   `json:"name" mapstructure:"name"`
	SourceLanguage       string   `json:"source_language" mapstructure:"source_language"`
	TargetLanguage       string   `json:"target_language" mapstructure:"target_language"`
	Glossary             []string `json:"glossary" mapstructure:"glossary"` // "SRC=TGT" pairs, capped at 15 by the translator
	AniDBAbsoluteOrder   bool     `json:"anidb_absolute_order" mapstructure:"anidb_absolute_order"`
}

// WhisperConfig sets the transcription queue's capacity and model.
type WhisperConfig struct {
	MaxConcurrent int    `json:"max_concurrent" mapstructure:"max_concurrent"`
	Model         string `json:"model" mapstructure:"model"`
}

// GeneralConfig holds cross-cutting daemon settings.
type GeneralConfig struct {
	LogLevel            string `json:"log_level" mapstructure:"log_level"`
	LogFile             string `json:"log_file" mapstructure:"log_file"`
	DBPath              string `json:"db_path" mapstructure:"db_path"`
	BinPath             string `json:"bin_path" mapstructure:"bin_path"` // ffmpeg/ffprobe directory
	BackupDir           string `json:"backup_dir" mapstructure:"backup_dir"`
	UpgradesEnabled     bool   `json:"upgrades_enabled" mapstructure:"upgrades_enabled"`
	UpgradeScoreDelta   int    `json:"upgrade_score_delta" mapstructure:"upgrade_score_delta"`
	UpgradePreferASS    bool   `json:"upgrade_prefer_ass" mapstructure:"upgrade_prefer_ass"`
	UseEmbeddedSubs     bool   `json:"use_embedded_subs" mapstructure:"use_embedded_subs"`
	RemoveHITags        bool   `json:"remove_hi_tags" mapstructure:"remove_hi_tags"`
	WatchPath           string `json:"watch_path" mapstructure:"watch_path"`
	FSNotifyEnabled     bool   `json:"fsnotify_enabled" mapstructure:"fsnotify_enabled"`
	MaxWorkers          int    `json:"max_workers" mapstructure:"max_workers"` // job queue worker slots
}

// Config is the full, typed daemon configuration.
type Config struct {
	General          GeneralConfig               `json:"general" mapstructure:"general"`
	Providers        ProvidersConfig             `json:"providers" mapstructure:"providers"`
	Backends         BackendsConfig              `json:"backends" mapstructure:"backends"`
	MediaServers     []MediaServerEntry          `json:"media_servers" mapstructure:"media_servers"`
	MediaManagers    []MediaManagerEntry         `json:"media_managers" mapstructure:"media_managers"`
	Scheduler        SchedulerConfig             `json:"scheduler" mapstructure:"scheduler"`
	Hooks            []HookEntry                 `json:"hooks" mapstructure:"hooks"`
	Webhooks         []WebhookEntry               `json:"webhooks" mapstructure:"webhooks"`
	LanguageProfiles map[string]LanguageProfile  `json:"language_profiles" mapstructure:"language_profiles"`
	Whisper          WhisperConfig               `json:"whisper" mapstructure:"whisper"`
}

var (
	configPath = "config.json"
	instance   *Config
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:          "info",
			LogFile:           "./sublarr.log",
			DBPath:            "./sublarr.db",
			BinPath:           "./bin",
			BackupDir:         "./backups",
			UpgradesEnabled:   true,
			UpgradeScoreDelta: 50,
			UpgradePreferASS:  true,
			UseEmbeddedSubs:   true,
			RemoveHITags:      true,
			FSNotifyEnabled:   false,
			MaxWorkers:        2,
		},
		Providers: ProvidersConfig{
			AutoPrioritise: false,
			CacheTTLSecs:   900,
		},
		Backends: BackendsConfig{
			Active:             "local",
			MaxRetries:         3,
			HallucinationGuard: true,
		},
		Scheduler: SchedulerConfig{
			WantedScanHours:   6,
			WantedSearchHours: 24,
			CleanupHours:      168,
			AniDBRefreshHours: 168,
			BackupHourUTC:     3,
			MaxItemsPerRun:    100,
			MaxSearchAttempts: 5,
		},
		LanguageProfiles: map[string]LanguageProfile{
			"default": {
				Name:           "default",
				SourceLanguage: "en",
				TargetLanguage: "de",
			},
		},
		Whisper: WhisperConfig{
			MaxConcurrent: 1,
			Model:         "base",
		},
	}
}

// Exists checks if config file exists.
func Exists() bool {
	_, err := os.Stat(configPath)
	return err == nil
}

// Load reads the configuration from config.json in configPath's directory
// (then $HOME/.config/sublarr), falling back to Default() when the file is
// absent.
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(filepath.Dir(configPath))
	viper.AddConfigPath("$HOME/.config/sublarr")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			instance = Default()
			return instance, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	instance = cfg
	return instance, nil
}

// Save writes the configuration to config.json.
func (c *Config) Save() error {
	configDir := filepath.Dir(configPath)
	if configDir != "." && configDir != "" {
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	viper.Set("general", c.General)
	viper.Set("providers", c.Providers)
	viper.Set("backends", c.Backends)
	viper.Set("media_servers", c.MediaServers)
	viper.Set("media_managers", c.MediaManagers)
	viper.Set("scheduler", c.Scheduler)
	viper.Set("hooks", c.Hooks)
	viper.Set("webhooks", c.Webhooks)
	viper.Set("language_profiles", c.LanguageProfiles)
	viper.Set("whisper", c.Whisper)

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// OnChangeFunc is invoked once per detected on-disk config change, after
// the package-level Config singleton has been refreshed by re-unmarshal.
// cmd/sublarrd wires this to emit the config_update event that every
// cache-on-read collaborator subscribes to.
type OnChangeFunc func(cfg *Config)

// Watch arranges for viper's fsnotify-backed file watcher to re-unmarshal
// the config singleton and invoke onChange whenever the file changes on
// disk. Must be called after a successful Load.
//
// The singleton is updated in place (viper.Unmarshal into a fresh Default(),
// then copied over the existing *Config) rather than swapped for a new
// pointer: every collaborator wired
// at startup holds the pointer Load returned, and a swap would leave them
// reading a stale copy forever. Mutating in place means schedulers,
// managers, and anything else holding that pointer observe the new values
// on their very next field read, with no restart and no re-wiring.
func Watch(onChange OnChangeFunc) {
	viper.OnConfigChange(func(_ fsnotify.Event) {
		if instance == nil {
			return
		}
		fresh := Default()
		if err := viper.Unmarshal(fresh); err != nil {
			return
		}
		*instance = *fresh
		if onChange != nil {
			onChange(instance)
		}
	})
	viper.WatchConfig()
}

// LanguageProfileFor returns the profile named key, or the "default"
// profile if key is empty or unknown.
func (c *Config) LanguageProfileFor(key string) LanguageProfile {
	if p, ok := c.LanguageProfiles[key]; ok {
		return p
	}
	return c.LanguageProfiles["default"]
}

// ProviderFields returns the namespaced config-field map for one provider.
func (c *Config) ProviderFields(name string) map[string]string {
	for _, e := range c.Providers.Entries {
		if e.Name == name {
			return e.Fields
		}
	}
	return nil
}

// BackendFields returns the namespaced config-field map for one backend.
func (c *Config) BackendFields(name string) map[string]string {
	for _, e := range c.Backends.Entries {
		if e.Name == name {
			return e.Fields
		}
	}
	return nil
}
