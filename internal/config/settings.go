package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents config.toml.
type Config struct {
	Gesture       GestureConfig       `toml:"gesture"`
	Sessions      SessionsConfig      `toml:"sessions"`
	Notifications NotificationsConfig `toml:"notifications"`
	Focus         FocusConfig         `toml:"focus"`
}

// GestureConfig tunes the hold/cycle/release gesture.
type GestureConfig struct {
	// Primary and Secondary name the tracked modifiers.
	// Options: "option", "command", "control", "shift"
	Primary   string `toml:"primary"`
	Secondary string `toml:"secondary"`
	// HoldThreshold is how long a tap-free hold must last to pin the panel.
	HoldThreshold time.Duration `toml:"hold_threshold"`
	// SafetyTimeout is when the missed-release check runs after a gesture starts.
	SafetyTimeout time.Duration `toml:"safety_timeout"`
	// KeyDebounce absorbs OS key-repeat floods.
	KeyDebounce time.Duration `toml:"key_debounce"`
}

// SessionsConfig tunes the session store and its watcher.
type SessionsConfig struct {
	Retention     time.Duration `toml:"retention"`
	PollInterval  time.Duration `toml:"poll_interval"`
	WatchDebounce time.Duration `toml:"watch_debounce"`
	SettleDelay   time.Duration `toml:"settle_delay"`
}

// NotificationsConfig controls attention/finished notifications.
type NotificationsConfig struct {
	Enabled  *bool         `toml:"enabled,omitempty"` // nil = default true
	Debounce time.Duration `toml:"debounce"`
	Sound    string        `toml:"sound"`
}

// FocusConfig tunes terminal activation.
type FocusConfig struct {
	// FollowUpDelay is how long to wait before re-asserting app focus.
	FollowUpDelay time.Duration `toml:"follow_up_delay"`
}

// IsEnabled reports whether notifications are on (default true).
func (n NotificationsConfig) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Gesture: GestureConfig{
			Primary:       "option",
			Secondary:     "command",
			HoldThreshold: time.Second,
			SafetyTimeout: 3 * time.Second,
			KeyDebounce:   16 * time.Millisecond,
		},
		Sessions: SessionsConfig{
			Retention:     24 * time.Hour,
			PollInterval:  2 * time.Second,
			WatchDebounce: 100 * time.Millisecond,
			SettleDelay:   200 * time.Millisecond,
		},
		Notifications: NotificationsConfig{
			Debounce: 500 * time.Millisecond,
		},
		Focus: FocusConfig{
			FollowUpDelay: 350 * time.Millisecond,
		},
	}
}

var validModifiers = map[string]bool{
	"option":  true,
	"command": true,
	"control": true,
	"shift":   true,
}

// Manager reads and writes config.toml.
type Manager struct {
	configPath string
}

// NewManager creates a manager for the default config path.
func NewManager() *Manager {
	return &Manager{configPath: ConfigPath()}
}

// NewManagerAt creates a manager for an explicit path.
func NewManagerAt(path string) *Manager {
	return &Manager{configPath: path}
}

// Path returns the file this manager reads.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads config.toml, applying defaults for missing values and clamping
// out-of-range ones. A missing or unparsable file yields the defaults.
func (m *Manager) Load() (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Defaults(), nil // Return defaults on parse error
	}

	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	def := Defaults()

	g := &cfg.Gesture
	g.Primary = strings.ToLower(strings.TrimSpace(g.Primary))
	g.Secondary = strings.ToLower(strings.TrimSpace(g.Secondary))
	if !validModifiers[g.Primary] {
		g.Primary = def.Gesture.Primary
	}
	if !validModifiers[g.Secondary] || g.Secondary == g.Primary {
		g.Primary = def.Gesture.Primary
		g.Secondary = def.Gesture.Secondary
	}
	g.HoldThreshold = clamp(g.HoldThreshold, def.Gesture.HoldThreshold, 200*time.Millisecond, 5*time.Second)
	g.SafetyTimeout = clamp(g.SafetyTimeout, def.Gesture.SafetyTimeout, time.Second, 30*time.Second)
	g.KeyDebounce = clamp(g.KeyDebounce, def.Gesture.KeyDebounce, 0, 200*time.Millisecond)

	s := &cfg.Sessions
	s.Retention = clamp(s.Retention, def.Sessions.Retention, time.Minute, 30*24*time.Hour)
	s.PollInterval = clamp(s.PollInterval, def.Sessions.PollInterval, 250*time.Millisecond, time.Minute)
	s.WatchDebounce = clamp(s.WatchDebounce, def.Sessions.WatchDebounce, 10*time.Millisecond, 2*time.Second)
	s.SettleDelay = clamp(s.SettleDelay, def.Sessions.SettleDelay, 10*time.Millisecond, 5*time.Second)

	n := &cfg.Notifications
	n.Debounce = clamp(n.Debounce, def.Notifications.Debounce, 0, 10*time.Second)

	f := &cfg.Focus
	f.FollowUpDelay = clamp(f.FollowUpDelay, def.Focus.FollowUpDelay, 0, 5*time.Second)
}

// clamp returns def for zero values and bounds everything else to [lo, hi].
func clamp(v, def, lo, hi time.Duration) time.Duration {
	switch {
	case v == 0:
		return def
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// SetNotificationsEnabled toggles notifications, preserving every other
// section of config.toml.
func (m *Manager) SetNotificationsEnabled(enabled bool) error {
	existingData, _ := os.ReadFile(m.configPath)

	// Parse existing config into a map to preserve unknown sections
	var existingConfig map[string]interface{}
	if len(existingData) > 0 {
		if err := toml.Unmarshal(existingData, &existingConfig); err != nil {
			existingConfig = make(map[string]interface{})
		}
	} else {
		existingConfig = make(map[string]interface{})
	}

	section, _ := existingConfig["notifications"].(map[string]interface{})
	if section == nil {
		section = make(map[string]interface{})
	}
	section["enabled"] = enabled
	existingConfig["notifications"] = section

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0700); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(existingConfig); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(m.configPath, buf.Bytes(), 0600)
}
