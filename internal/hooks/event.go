package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/myrison/agent-peek/internal/session"
)

// Hook event names as Claude Code passes them to the script.
const (
	EventSessionStart     = "SessionStart"
	EventUserPromptSubmit = "UserPromptSubmit"
	EventPreToolUse       = "PreToolUse"
	EventPostToolUse      = "PostToolUse"
	EventNotification     = "Notification"
	EventStop             = "Stop"
	EventSessionEnd       = "SessionEnd"
)

// maxActivityRunes bounds the prompt excerpt kept as the activity line.
const maxActivityRunes = 80

// Origin describes where the hook process is running.
type Origin struct {
	TTY      string
	Terminal string
}

// Payload is the subset of the hook JSON the tracker cares about.
type Payload struct {
	SessionID string
	Cwd       string
	Prompt    string
	ToolName  string
	Message   string
}

// ParsePayload extracts the known fields. Missing fields are empty.
func ParsePayload(data []byte) Payload {
	res := gjson.ParseBytes(data)
	return Payload{
		SessionID: strings.TrimSpace(res.Get("session_id").String()),
		Cwd:       res.Get("cwd").String(),
		Prompt:    res.Get("prompt").String(),
		ToolName:  res.Get("tool_name").String(),
		Message:   res.Get("message").String(),
	}
}

// Apply records event for the session named in data. Payloads without a
// session id are ignored. It reports whether the event was recognized.
func Apply(storage *session.Storage, event string, data []byte, origin Origin, now time.Time) (bool, error) {
	p := ParsePayload(data)
	if p.SessionID == "" {
		return false, nil
	}

	if event == EventSessionEnd {
		return true, storage.Remove(p.SessionID)
	}

	mutate, ok := mutationFor(event, p)
	if !ok {
		return false, nil
	}

	_, err := storage.Update(func(records []session.AgentSession) ([]session.AgentSession, bool) {
		idx := -1
		for i := range records {
			if records[i].ID == p.SessionID {
				idx = i
				break
			}
		}

		var rec session.AgentSession
		if idx >= 0 {
			rec = records[idx]
		} else {
			rec = session.AgentSession{ID: p.SessionID, StartedAt: now, TTY: session.UnknownTTY}
		}

		if p.Cwd != "" {
			rec.Cwd = p.Cwd
		}
		if origin.TTY != "" && origin.TTY != session.UnknownTTY {
			rec.TTY = origin.TTY
		}
		if origin.Terminal != "" {
			rec.Terminal = origin.Terminal
		}
		mutate(&rec)

		// Clock skew between hook processes must not move a record backwards.
		if now.After(rec.UpdatedAt) {
			rec.UpdatedAt = now
		}

		if idx >= 0 {
			records[idx] = rec
		} else {
			records = append(records, rec)
		}
		return records, true
	})
	if err != nil {
		return true, fmt.Errorf("record %s for %s: %w", event, p.SessionID, err)
	}
	return true, nil
}

func mutationFor(event string, p Payload) (func(*session.AgentSession), bool) {
	switch event {
	case EventSessionStart:
		return func(r *session.AgentSession) {
			r.Status = session.StatusIdle
			r.ToolName = ""
			r.NotificationMessage = ""
		}, true
	case EventUserPromptSubmit:
		return func(r *session.AgentSession) {
			r.Status = session.StatusRunning
			r.ToolName = ""
			r.NotificationMessage = ""
			if ex := Excerpt(p.Prompt); ex != "" {
				r.Activity = ex
			}
		}, true
	case EventPreToolUse:
		return func(r *session.AgentSession) {
			r.Status = session.StatusRunning
			r.ToolName = p.ToolName
			r.NotificationMessage = ""
		}, true
	case EventPostToolUse:
		return func(r *session.AgentSession) {
			r.Status = session.StatusRunning
			r.ToolName = ""
		}, true
	case EventNotification:
		return func(r *session.AgentSession) {
			r.Status = session.StatusWaitingInput
			r.NotificationMessage = p.Message
		}, true
	case EventStop:
		return func(r *session.AgentSession) {
			r.Status = session.StatusIdle
			r.ToolName = ""
			r.NotificationMessage = ""
		}, true
	}
	return nil, false
}

// Excerpt returns the first non-blank line of s, truncated with an ellipsis.
func Excerpt(s string) string {
	var line string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if utf8.RuneCountInString(line) <= maxActivityRunes {
		return line
	}
	runes := []rune(line)
	return strings.TrimSpace(string(runes[:maxActivityRunes-1])) + "…"
}

// ResolveTTY returns the controlling terminal of pid as a /dev path, or
// session.UnknownTTY when ps has nothing useful.
func ResolveTTY(ctx context.Context, pid int) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ps", "-o", "tty=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return session.UnknownTTY
	}
	return normalizeTTY(string(out))
}

func normalizeTTY(raw string) string {
	tty := strings.TrimSpace(raw)
	if tty == "" || tty == "?" || tty == "??" || tty == "-" {
		return session.UnknownTTY
	}
	if strings.HasPrefix(tty, "/dev/") {
		return tty
	}
	return "/dev/" + tty
}
