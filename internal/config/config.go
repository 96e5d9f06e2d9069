// ABOUTME: Server configuration: data directory, listen address, auth, and logging settings.
// ABOUTME: Loaded from cradle/config.json under XDG_CONFIG_HOME with environment overrides.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/storage"
)

const (
	DefaultListenAddr        = ":8080"
	DefaultRequestTimeout    = 30 * time.Second
	DefaultSchedulerInterval = time.Minute
	DefaultTokenTTL          = 30 * 24 * time.Hour
)

// Config stores server configuration.
type Config struct {
	// DataDir is the root directory for data storage; cradle.db lives here.
	// Supports ~ expansion. Defaults to ~/.local/share/cradle.
	DataDir string `json:"data_dir,omitempty"`

	ListenAddr string `json:"listen_addr,omitempty"`

	// JWTSecret signs bearer tokens. CRADLE_JWT_SECRET overrides it.
	JWTSecret string `json:"jwt_secret,omitempty"`

	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// LogMode is "dev" or "prod".
	LogMode string `json:"log_mode,omitempty"`
	LogFile string `json:"log_file,omitempty"`

	// Durations use Go syntax, e.g. "30s" or "1m".
	RequestTimeout    string `json:"request_timeout,omitempty"`
	SchedulerInterval string `json:"scheduler_interval,omitempty"`
	TokenTTL          string `json:"token_ttl,omitempty"`
}

// GetDataDir returns the configured data directory with ~ expanded,
// defaulting to the standard XDG data directory.
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return storage.DataDir()
	}
	return ExpandPath(c.DataDir)
}

// GetDBPath returns the SQLite database path inside the data directory.
func (c *Config) GetDBPath() string {
	return filepath.Join(c.GetDataDir(), "cradle.db")
}

func (c *Config) GetListenAddr() string {
	if c.ListenAddr == "" {
		return DefaultListenAddr
	}
	return c.ListenAddr
}

func (c *Config) GetLogMode() string {
	if c.LogMode == "" {
		return "dev"
	}
	return c.LogMode
}

// GetLogFile returns the log file path with ~ expanded; empty means stderr only.
func (c *Config) GetLogFile() string {
	return ExpandPath(c.LogFile)
}

func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return parseDuration("request_timeout", c.RequestTimeout, DefaultRequestTimeout)
}

func (c *Config) GetSchedulerInterval() (time.Duration, error) {
	return parseDuration("scheduler_interval", c.SchedulerInterval, DefaultSchedulerInterval)
}

func (c *Config) GetTokenTTL() (time.Duration, error) {
	return parseDuration("token_ttl", c.TokenTTL, DefaultTokenTTL)
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errs.Validation("%s %q: %v", name, raw, err)
	}
	if d <= 0 {
		return 0, errs.Validation("%s must be positive, got %s", name, raw)
	}
	return d, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errs.Validation("jwt secret not set (config jwt_secret or CRADLE_JWT_SECRET)")
	}
	for _, get := range []func() (time.Duration, error){c.GetRequestTimeout, c.GetSchedulerInterval, c.GetTokenTTL} {
		if _, err := get(); err != nil {
			return err
		}
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// OpenStorage opens the SQLite record store in the data directory.
func (c *Config) OpenStorage() (*storage.DB, error) {
	db, err := storage.Open(c.GetDBPath())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "cradle", "config.json")
}

// Load reads config from disk, then applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	path := GetConfigPath()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errs.Validation("parse %s: %v", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CRADLE_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("CRADLE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("CRADLE_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CRADLE_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
}

// Save writes config to disk.
func (c *Config) Save() error {
	path := GetConfigPath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
