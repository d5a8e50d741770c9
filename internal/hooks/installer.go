// Package hooks registers agent-peek's helper script with Claude Code.
package hooks

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

//go:embed agent-peek-hook.sh.tmpl
var templateFS embed.FS

// ScriptName is the helper script's file name.
const ScriptName = "agent-peek-hook.sh"

// Marker identifies commands that agent-peek owns in settings.json. It
// holds for any hooks directory, so a relocated base directory still
// recognizes its earlier entries.
const Marker = "/" + ScriptName

// Events are the Claude Code hook events agent-peek listens to.
var Events = []string{
	"SessionStart",
	"UserPromptSubmit",
	"PreToolUse",
	"PostToolUse",
	"Notification",
	"Stop",
	"SessionEnd",
}

// toolEvents take a matcher.
var toolEvents = map[string]bool{"PreToolUse": true, "PostToolUse": true}

// Installer writes the helper script and registers it in settings.json.
type Installer struct {
	// SettingsPath is Claude's settings.json.
	SettingsPath string
	// HooksDir receives the helper script.
	HooksDir string
	// Binary is the agent-peek executable the script calls.
	Binary string
}

// Result describes what Install changed.
type Result struct {
	ScriptPath string
	Added      []string
	Skipped    []string
}

// ScriptPath returns where the helper script is installed.
func (in *Installer) ScriptPath() string {
	return filepath.Join(in.HooksDir, ScriptName)
}

// Install writes the script and registers every missing event. Events that
// already reference an agent-peek script are left alone, so running it
// again changes nothing.
func (in *Installer) Install() (*Result, error) {
	if err := in.writeScript(); err != nil {
		return nil, err
	}

	data, err := in.readSettings()
	if err != nil {
		return nil, err
	}

	res := &Result{ScriptPath: in.ScriptPath()}
	for _, event := range Events {
		if registered(data, event) {
			res.Skipped = append(res.Skipped, event)
			continue
		}
		if gjson.Get(data, "hooks."+event).IsArray() {
			data, err = sjson.SetRaw(data, "hooks."+event+".-1", in.entry(event))
		} else {
			data, err = sjson.SetRaw(data, "hooks."+event, "["+in.entry(event)+"]")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to register %s hook: %w", event, err)
		}
		res.Added = append(res.Added, event)
	}

	if len(res.Added) > 0 {
		if err := writeFileAtomic(in.SettingsPath, pretty.Pretty([]byte(data)), 0600); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Uninstall removes agent-peek's entries and returns the affected events.
// Unrelated hooks are preserved; events left empty are deleted.
func (in *Installer) Uninstall() ([]string, error) {
	data, err := in.readSettings()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, event := range Events {
		path := "hooks." + event
		groups := gjson.Get(data, path)
		if !groups.IsArray() {
			continue
		}
		var kept []string
		changed := false
		groups.ForEach(func(_, group gjson.Result) bool {
			if ownsGroup(group) {
				changed = true
				return true
			}
			kept = append(kept, group.Raw)
			return true
		})
		if !changed {
			continue
		}
		removed = append(removed, event)
		if len(kept) == 0 {
			data, err = sjson.Delete(data, path)
		} else {
			data, err = sjson.SetRaw(data, path, "["+strings.Join(kept, ",")+"]")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unregister %s hook: %w", event, err)
		}
	}
	if hooks := gjson.Get(data, "hooks"); hooks.IsObject() && len(hooks.Map()) == 0 {
		if data, err = sjson.Delete(data, "hooks"); err != nil {
			return nil, fmt.Errorf("failed to remove empty hooks: %w", err)
		}
	}

	if len(removed) > 0 {
		if err := writeFileAtomic(in.SettingsPath, pretty.Pretty([]byte(data)), 0600); err != nil {
			return nil, err
		}
	}
	if err := os.Remove(in.ScriptPath()); err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("failed to remove hook script: %w", err)
	}
	return removed, nil
}

// Registered returns the events currently pointing at an agent-peek script.
func (in *Installer) Registered() ([]string, error) {
	data, err := in.readSettings()
	if err != nil {
		return nil, err
	}
	var events []string
	for _, event := range Events {
		if registered(data, event) {
			events = append(events, event)
		}
	}
	return events, nil
}

func (in *Installer) entry(event string) string {
	hook := `{"type":"command","command":` + jsonString(in.ScriptPath()+" "+event) + `}`
	if toolEvents[event] {
		return `{"matcher":"*","hooks":[` + hook + `]}`
	}
	return `{"hooks":[` + hook + `]}`
}

func (in *Installer) readSettings() (string, error) {
	raw, err := os.ReadFile(in.SettingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "{}", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", in.SettingsPath, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "{}", nil
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("%s is not valid JSON; refusing to modify it", in.SettingsPath)
	}
	return string(raw), nil
}

func (in *Installer) writeScript() error {
	tmplText, err := templateFS.ReadFile("agent-peek-hook.sh.tmpl")
	if err != nil {
		return fmt.Errorf("reading hook template: %w", err)
	}
	tmpl, err := template.New(ScriptName).Parse(string(tmplText))
	if err != nil {
		return fmt.Errorf("parsing hook template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Binary string }{shellQuote(in.Binary)}); err != nil {
		return fmt.Errorf("rendering hook template: %w", err)
	}

	if err := os.MkdirAll(in.HooksDir, 0755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	return writeFileAtomic(in.ScriptPath(), buf.Bytes(), 0755)
}

// registered reports whether any command under event references Marker.
func registered(data, event string) bool {
	found := false
	gjson.Get(data, "hooks."+event).ForEach(func(_, group gjson.Result) bool {
		found = ownsGroup(group)
		return !found
	})
	return found
}

func ownsGroup(group gjson.Result) bool {
	owned := false
	group.Get("hooks").ForEach(func(_, hook gjson.Result) bool {
		owned = strings.Contains(hook.Get("command").String(), Marker)
		return !owned
	})
	return owned
}

func jsonString(s string) string {
	out, _ := sjson.Set(`{"v":""}`, "v", s)
	return gjson.Get(out, "v").Raw
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}
