package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Backend delivers one desktop notification.
type Backend interface {
	Send(title, body, sound string) error
}

// CommandBackend shells out to the platform notifier.
type CommandBackend struct {
	GOOS string
	// start launches a command without waiting for it.
	start func(name string, args ...string) error
}

// NewCommandBackend returns a backend for the running platform.
func NewCommandBackend() *CommandBackend {
	return &CommandBackend{
		GOOS: runtime.GOOS,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

func (b *CommandBackend) Send(title, body, sound string) error {
	switch b.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s", asString(body), asString(title))
		if sound != "" {
			script += " sound name " + asString(sound)
		}
		return b.start("osascript", "-e", script)
	case "linux", "freebsd", "openbsd":
		return b.start("notify-send", "--app-name=agent-peek", title, body)
	default:
		return fmt.Errorf("notifications not supported on %s", b.GOOS)
	}
}

func asString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
