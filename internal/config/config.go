// Package config handles configuration loading and management for formalink.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. FORMALINK_SERVER_PORT.
const EnvPrefix = "FORMALINK"

// ProjectConfigName is the per-project override file.
const ProjectConfigName = ".formalink.yaml"

// Config holds all configuration for formalink.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Stage  StageConfig  `mapstructure:"stage" yaml:"stage"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Picker PickerConfig `mapstructure:"picker" yaml:"picker"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	NATS   NATSConfig   `mapstructure:"nats" yaml:"nats"`
	Events EventsConfig `mapstructure:"events" yaml:"events"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	// Port defaults to the Kit services port the Forma connector expects.
	Port int  `mapstructure:"port" yaml:"port"`
	CORS bool `mapstructure:"cors" yaml:"cors"`
}

// StageConfig selects the document that is active at startup.
type StageConfig struct {
	// Path is the active stage. Empty means no stage is open.
	Path string `mapstructure:"path" yaml:"path"`
}

// StoreConfig locates the scene database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	// UploadTTL expires staged meshes no link request consumed. Zero keeps them.
	UploadTTL time.Duration `mapstructure:"upload_ttl" yaml:"upload_ttl"`
}

// PickerConfig holds file dialog settings.
type PickerConfig struct {
	// SignalDir receives <dialog id>.select and <dialog id>.cancel files.
	SignalDir string `mapstructure:"signal_dir" yaml:"signal_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// Dir receives formalink.log. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NATSConfig holds the optional notification bus.
type NATSConfig struct {
	// URL of the NATS server. Empty disables publishing.
	URL           string `mapstructure:"url" yaml:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

// EventsConfig sizes the coordinator event stream.
type EventsConfig struct {
	Buffer int `mapstructure:"buffer" yaml:"buffer"`
}

// WatchConfig holds `formalink watch` display settings.
type WatchConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate" yaml:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (FORMALINK_SERVER_PORT, ...)
// 2. Project config (.formalink.yaml in current directory or parent)
// 3. User config (~/.config/formalink/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
// Environment overrides still apply.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Stage.Path = os.ExpandEnv(cfg.Stage.Path)
	cfg.Store.Path = os.ExpandEnv(cfg.Store.Path)
	cfg.Picker.SignalDir = os.ExpandEnv(cfg.Picker.SignalDir)
	cfg.Log.Dir = os.ExpandEnv(cfg.Log.Dir)
	cfg.NATS.URL = os.ExpandEnv(cfg.NATS.URL)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the bridge cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Events.Buffer < 0 {
		return fmt.Errorf("invalid events.buffer %d: must not be negative", c.Events.Buffer)
	}
	if c.Watch.RefreshRate <= 0 {
		return fmt.Errorf("invalid watch.refresh_rate %s: must be positive", c.Watch.RefreshRate)
	}
	if c.Store.UploadTTL < 0 {
		return fmt.Errorf("invalid store.upload_ttl %s: must not be negative", c.Store.UploadTTL)
	}
	return nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(GetUserConfigPath(), cfg)
}

// SaveTo writes cfg to path, creating its directory.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.Set("server.host", cfg.Server.Host)
	v.Set("server.port", cfg.Server.Port)
	v.Set("server.cors", cfg.Server.CORS)
	v.Set("stage.path", cfg.Stage.Path)
	v.Set("store.path", cfg.Store.Path)
	v.Set("store.upload_ttl", cfg.Store.UploadTTL.String())
	v.Set("picker.signal_dir", cfg.Picker.SignalDir)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.dir", cfg.Log.Dir)
	v.Set("nats.url", cfg.NATS.URL)
	v.Set("nats.subject_prefix", cfg.NATS.SubjectPrefix)
	v.Set("events.buffer", cfg.Events.Buffer)
	v.Set("watch.refresh_rate", cfg.Watch.RefreshRate.String())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Keys lists every configuration key in display order.
func Keys() []string {
	return []string{
		"server.host",
		"server.port",
		"server.cors",
		"stage.path",
		"store.path",
		"store.upload_ttl",
		"picker.signal_dir",
		"log.level",
		"log.dir",
		"nats.url",
		"nats.subject_prefix",
		"events.buffer",
		"watch.refresh_rate",
	}
}

// Get returns the value of a dot-notation key as a string.
func (c *Config) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "server.host":
		return c.Server.Host, nil
	case "server.port":
		return strconv.Itoa(c.Server.Port), nil
	case "server.cors":
		return strconv.FormatBool(c.Server.CORS), nil
	case "stage.path":
		return c.Stage.Path, nil
	case "store.path":
		return c.Store.Path, nil
	case "store.upload_ttl":
		return c.Store.UploadTTL.String(), nil
	case "picker.signal_dir":
		return c.Picker.SignalDir, nil
	case "log.level":
		return c.Log.Level, nil
	case "log.dir":
		return c.Log.Dir, nil
	case "nats.url":
		return c.NATS.URL, nil
	case "nats.subject_prefix":
		return c.NATS.SubjectPrefix, nil
	case "events.buffer":
		return strconv.Itoa(c.Events.Buffer), nil
	case "watch.refresh_rate":
		return c.Watch.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// Set parses value and assigns it to a dot-notation key.
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "server.host":
		c.Server.Host = value
	case "server.port":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid port %q", value)
		}
		c.Server.Port = n
	case "server.cors":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for server.cors: %w", err)
		}
		c.Server.CORS = b
	case "stage.path":
		c.Stage.Path = value
	case "store.path":
		c.Store.Path = value
	case "store.upload_ttl":
		d, err := time.ParseDuration(value)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid duration for store.upload_ttl: %q", value)
		}
		c.Store.UploadTTL = d
	case "picker.signal_dir":
		c.Picker.SignalDir = value
	case "log.level":
		c.Log.Level = value
	case "log.dir":
		c.Log.Dir = value
	case "nats.url":
		c.NATS.URL = value
	case "nats.subject_prefix":
		c.NATS.SubjectPrefix = value
	case "events.buffer":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for events.buffer: %q", value)
		}
		c.Events.Buffer = n
	case "watch.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid duration for watch.refresh_rate: %q", value)
		}
		c.Watch.RefreshRate = d
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors", d.Server.CORS)

	v.SetDefault("stage.path", d.Stage.Path)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.upload_ttl", d.Store.UploadTTL.String())
	v.SetDefault("picker.signal_dir", d.Picker.SignalDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)

	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("nats.subject_prefix", d.NATS.SubjectPrefix)

	v.SetDefault("events.buffer", d.Events.Buffer)
	v.SetDefault("watch.refresh_rate", d.Watch.RefreshRate.String())
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8011,
			CORS: true,
		},
		Store: StoreConfig{
			Path:      filepath.Join(xdgDir("XDG_DATA_HOME", ".local", "share"), "scene.db"),
			UploadTTL: time.Hour,
		},
		Picker: PickerConfig{
			SignalDir: filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "picker"),
		},
		Log: LogConfig{
			Level: "info",
		},
		NATS: NATSConfig{
			SubjectPrefix: "formalink",
		},
		Events: EventsConfig{
			Buffer: 100,
		},
		Watch: WatchConfig{
			RefreshRate: 250 * time.Millisecond,
		},
	}
}

// getUserConfigDir returns the XDG config directory for formalink.
func getUserConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// xdgDir returns $env/formalink, falling back to ~/<fallback...>/formalink.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, "formalink")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(append(append([]string{home}, fallback...), "formalink")...)
}

// findProjectConfig searches for .formalink.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
