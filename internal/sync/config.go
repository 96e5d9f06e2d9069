// ABOUTME: Device sync configuration: server, bearer token, owner, and local store location.
// ABOUTME: Stored as sync.json next to the main config; environment variables override it.
package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/session"
)

// Config stores sync settings.
type Config struct {
	Server            string   `json:"server"`
	OwnerID           int64    `json:"owner_id"`
	Token             string   `json:"token"`
	DeviceID          string   `json:"device_id"`
	LocalDir          string   `json:"local_dir"`
	ForcedOffFeatures []string `json:"forced_off_features,omitempty"`
}

// ConfigDir returns the XDG config directory for cradle.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cradle")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cradle")
}

// ConfigPath returns the path to the sync config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "sync.json")
}

// LocalDirPath returns the default directory of the device-local store.
func LocalDirPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "cradle", "local")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "cradle", "local")
}

// LoadConfig loads sync config from disk and applies CRADLE_SERVER_URL,
// CRADLE_TOKEN and CRADLE_OWNER_ID.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(ConfigPath())
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.LocalDir == "" {
		cfg.LocalDir = LocalDirPath()
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CRADLE_SERVER_URL"); v != "" {
		c.Server = v
	}
	if v := os.Getenv("CRADLE_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("CRADLE_OWNER_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errs.Validation("CRADLE_OWNER_ID %q is not an integer", v)
		}
		c.OwnerID = id
	}
	return nil
}

// SaveConfig persists sync config to disk.
func SaveConfig(cfg *Config) error {
	if err := os.MkdirAll(ConfigDir(), 0750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), data, 0600)
}

// IsConfigured returns true if the device can talk to a server.
func (c *Config) IsConfigured() bool {
	return c.Server != "" && c.Token != "" && c.OwnerID > 0
}

// Session builds the session for this device, assigning a device id on first use.
func (c *Config) Session() (session.Session, error) {
	if c.DeviceID == "" {
		c.DeviceID = session.NewDeviceID()
	}
	return session.New(c.OwnerID, c.DeviceID)
}

// Policy returns the client policy overlaid after merges.
func (c *Config) Policy() Policy {
	return Policy{ForcedOffFeatures: c.ForcedOffFeatures}
}

// ClearConfig removes sync config file.
func ClearConfig() error {
	path := ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(path)
}
