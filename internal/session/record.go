package session

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Status is the agent's reported state, using the wire values.
type Status string

const (
	StatusRunning      Status = "running"
	StatusWaitingInput Status = "waiting_input"
	StatusIdle         Status = "idle"
	StatusError        Status = "error"
)

// UnknownTTY marks a session whose controlling terminal could not be resolved.
const UnknownTTY = "unknown"

// statusPriority orders the switcher list; lower sorts first.
var statusPriority = map[Status]int{
	StatusWaitingInput: 0,
	StatusRunning:      1,
	StatusIdle:         2,
	StatusError:        3,
}

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if _, ok := statusPriority[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// AgentSession is one monitored coding-agent session.
type AgentSession struct {
	ID                  string    `json:"id"`
	Status              Status    `json:"status"`
	Cwd                 string    `json:"cwd"`
	TTY                 string    `json:"tty"`
	Terminal            string    `json:"terminal"`
	StartedAt           time.Time `json:"startedAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	ToolName            string    `json:"toolName,omitempty"`
	Activity            string    `json:"activity,omitempty"`
	NotificationMessage string    `json:"notificationMessage,omitempty"`
}

// HasTTY reports whether the session's terminal device is known.
func (s AgentSession) HasTTY() bool {
	return s.TTY != "" && s.TTY != UnknownTTY
}

// ProjectName is the display name: the working directory's base name, or a
// short id when the directory is unknown.
func (s AgentSession) ProjectName() string {
	if s.Cwd == "" {
		return fmt.Sprintf("Session %.8s", s.ID)
	}
	return filepath.Base(s.Cwd)
}

// recordJSON is the on-disk shape written by the hook helpers.
type recordJSON struct {
	SessionID           string  `json:"session_id"`
	Status              string  `json:"status"`
	Cwd                 string  `json:"cwd"`
	TTY                 string  `json:"tty"`
	Terminal            string  `json:"terminal"`
	StartedAt           string  `json:"started_at"`
	UpdatedAt           string  `json:"updated_at"`
	ToolName            *string `json:"tool_name"`
	Activity            *string `json:"activity"`
	NotificationMessage *string `json:"notification_message"`
}

// timestampLayouts accept ISO-8601 with or without zone and fractional seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r recordJSON) toSession() (AgentSession, error) {
	if strings.TrimSpace(r.SessionID) == "" {
		return AgentSession{}, fmt.Errorf("record has empty session_id")
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		return AgentSession{}, err
	}
	updatedAt, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return AgentSession{}, fmt.Errorf("updated_at: %w", err)
	}
	startedAt := updatedAt
	if r.StartedAt != "" {
		if startedAt, err = parseTimestamp(r.StartedAt); err != nil {
			return AgentSession{}, fmt.Errorf("started_at: %w", err)
		}
	}
	tty := strings.TrimSpace(r.TTY)
	if tty == "" {
		tty = UnknownTTY
	}
	return AgentSession{
		ID:                  r.SessionID,
		Status:              status,
		Cwd:                 r.Cwd,
		TTY:                 tty,
		Terminal:            r.Terminal,
		StartedAt:           startedAt,
		UpdatedAt:           updatedAt,
		ToolName:            deref(r.ToolName),
		Activity:            deref(r.Activity),
		NotificationMessage: deref(r.NotificationMessage),
	}, nil
}

func fromSession(s AgentSession) recordJSON {
	return recordJSON{
		SessionID:           s.ID,
		Status:              string(s.Status),
		Cwd:                 s.Cwd,
		TTY:                 s.TTY,
		Terminal:            s.Terminal,
		StartedAt:           formatTimestamp(s.StartedAt),
		UpdatedAt:           formatTimestamp(s.UpdatedAt),
		ToolName:            optional(s.ToolName),
		Activity:            optional(s.Activity),
		NotificationMessage: optional(s.NotificationMessage),
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ParseRecords decodes the backing file. Each array element is decoded on
// its own so one bad record never takes the rest of the batch with it.
// Empty input and malformed top-level JSON both yield no sessions.
func ParseRecords(data []byte) []AgentSession {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[session] Warning: sessions file is not a JSON array, treating as empty: %v", err)
		return nil
	}

	sessions := make([]AgentSession, 0, len(raw))
	seen := make(map[string]int, len(raw))
	for i, elem := range raw {
		var rec recordJSON
		if err := json.Unmarshal(elem, &rec); err != nil {
			log.Printf("[session] Dropping malformed record %d: %v", i, err)
			continue
		}
		s, err := rec.toSession()
		if err != nil {
			log.Printf("[session] Dropping invalid record %d: %v", i, err)
			continue
		}
		// Duplicate ids: the newest update wins.
		if idx, dup := seen[s.ID]; dup {
			if !s.UpdatedAt.Before(sessions[idx].UpdatedAt) {
				sessions[idx] = s
			}
			continue
		}
		seen[s.ID] = len(sessions)
		sessions = append(sessions, s)
	}
	return sessions
}

// EncodeRecords renders sessions in the backing-file format.
func EncodeRecords(sessions []AgentSession) ([]byte, error) {
	out := make([]recordJSON, len(sessions))
	for i, s := range sessions {
		out[i] = fromSession(s)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// SortForDisplay orders sessions by status priority, then most recently
// updated first. The id breaks remaining ties so the order is total.
func SortForDisplay(sessions []AgentSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if pa, pb := statusPriority[a.Status], statusPriority[b.Status]; pa != pb {
			return pa < pb
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
}
