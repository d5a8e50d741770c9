// Package config holds agent-peek's on-disk layout and its TOML settings.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	baseDirName      = ".agent-peek"
	sessionsFileName = "sessions.json"
	configFileName   = "config.toml"
	hooksDirName     = "hooks"
	installedAtName  = "installed_at"
)

// Package-level hooks for testing. In production, these use the real implementations.
var (
	getEnvVar   = os.Getenv
	userHomeDir = os.UserHomeDir
)

// BaseDir returns ~/.agent-peek, or $AGENT_PEEK_HOME when set.
func BaseDir() string {
	if dir := strings.TrimSpace(getEnvVar("AGENT_PEEK_HOME")); dir != "" {
		return dir
	}
	home, err := userHomeDir()
	if err != nil {
		// Fall back to /tmp if home dir unavailable (rare edge case)
		log.Printf("warning: could not determine home directory, using /tmp: %v", err)
		return filepath.Join(os.TempDir(), baseDirName)
	}
	return filepath.Join(home, baseDirName)
}

// SessionsPath is the backing file shared with the hook helper processes.
func SessionsPath() string {
	return filepath.Join(BaseDir(), sessionsFileName)
}

// ConfigPath is the user's config.toml.
func ConfigPath() string {
	return filepath.Join(BaseDir(), configFileName)
}

// HooksDir holds the helper script registered with the agent tool.
func HooksDir() string {
	return filepath.Join(BaseDir(), hooksDirName)
}

// InstalledAtPath stores the first-install timestamp.
func InstalledAtPath() string {
	return filepath.Join(BaseDir(), installedAtName)
}

// ClaudeConfigDir returns the Claude config directory.
// Priority: 1) CLAUDE_CONFIG_DIR env, 2) ~/.claude
func ClaudeConfigDir() string {
	if envDir := strings.TrimSpace(getEnvVar("CLAUDE_CONFIG_DIR")); envDir != "" {
		return expandTilde(envDir)
	}
	home, _ := userHomeDir()
	return filepath.Join(home, ".claude")
}

// ClaudeSettingsPath is the settings.json hooks are registered in.
func ClaudeSettingsPath() string {
	return filepath.Join(ClaudeConfigDir(), "settings.json")
}

func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := userHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ReadInstalledAt returns the recorded install time, or the zero time if the
// marker is missing or unreadable.
func ReadInstalledAt() time.Time {
	data, err := os.ReadFile(InstalledAtPath())
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("warning: ignoring malformed install marker: %v", err)
		return time.Time{}
	}
	return t
}

// MarkInstalled records now as the install time unless a marker already
// exists, and returns whichever time is in effect.
func MarkInstalled(now time.Time) (time.Time, error) {
	if existing := ReadInstalledAt(); !existing.IsZero() {
		return existing, nil
	}
	if err := os.MkdirAll(BaseDir(), 0700); err != nil {
		return time.Time{}, fmt.Errorf("failed to create config directory: %w", err)
	}
	stamp := now.UTC().Format(time.RFC3339Nano)
	if err := os.WriteFile(InstalledAtPath(), []byte(stamp+"\n"), 0600); err != nil {
		return time.Time{}, fmt.Errorf("failed to write install marker: %w", err)
	}
	return now.UTC(), nil
}
