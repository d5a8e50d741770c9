package focus

import (
	"context"
	"fmt"

	"github.com/myrison/agent-peek/internal/session"
)

// Strategy knows how to bring one family of terminal programs forward.
type Strategy struct {
	Name string
	// Terminals lists the TERM_PROGRAM values this strategy handles.
	Terminals []string
	// App is the macOS application name.
	App string
	// TabScript, if set, builds an AppleScript that selects the tab owning
	// a tty and returns "ok", or "missing" when no tab matches.
	TabScript func(tty string) string
}

func (st Strategy) matches(terminal string) bool {
	for _, t := range st.Terminals {
		if t == terminal {
			return true
		}
	}
	return false
}

// Focus selects the session's tab when possible, else activates the app.
func (st Strategy) Focus(ctx context.Context, r Runner, s session.AgentSession) error {
	if st.TabScript != nil && s.HasTTY() {
		res, err := osascript(ctx, r, st.TabScript(s.TTY))
		if err != nil {
			return fmt.Errorf("failed to select %s tab: %w", st.Name, err)
		}
		if res == "ok" {
			return nil
		}
		// The tab may have closed; the app is still the best target.
	}
	return st.ActivateApp(ctx, r)
}

// ActivateApp brings the application to the front.
func (st Strategy) ActivateApp(ctx context.Context, r Runner) error {
	if _, err := osascript(ctx, r, fmt.Sprintf("tell application %s to activate", quote(st.App))); err != nil {
		return fmt.Errorf("failed to activate %s: %w", st.App, err)
	}
	return nil
}

func itermTabScript(tty string) string {
	return fmt.Sprintf(`tell application "iTerm2"
	repeat with w in windows
		repeat with t in tabs of w
			repeat with s in sessions of t
				if tty of s is %s then
					select w
					tell t to select
					tell s to select
					activate
					return "ok"
				end if
			end repeat
		end repeat
	end repeat
end tell
return "missing"`, quote(tty))
}

func terminalTabScript(tty string) string {
	return fmt.Sprintf(`tell application "Terminal"
	repeat with w in windows
		repeat with t in tabs of w
			if tty of t is %s then
				set selected of t to true
				set index of w to 1
				activate
				return "ok"
			end if
		end repeat
	end repeat
end tell
return "missing"`, quote(tty))
}

// DefaultStrategies returns the built-in macOS terminal strategies.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "iterm2", Terminals: []string{"iTerm.app"}, App: "iTerm", TabScript: itermTabScript},
		{Name: "terminal", Terminals: []string{"Apple_Terminal"}, App: "Terminal", TabScript: terminalTabScript},
		{Name: "vscode", Terminals: []string{"vscode"}, App: "Visual Studio Code"},
		{Name: "cursor", Terminals: []string{"cursor"}, App: "Cursor"},
		{Name: "ghostty", Terminals: []string{"ghostty"}, App: "Ghostty"},
		{Name: "wezterm", Terminals: []string{"WezTerm"}, App: "WezTerm"},
		{Name: "kitty", Terminals: []string{"kitty", "xterm-kitty"}, App: "kitty"},
		{Name: "warp", Terminals: []string{"WarpTerminal"}, App: "Warp"},
		{Name: "alacritty", Terminals: []string{"alacritty"}, App: "Alacritty"},
	}
}
