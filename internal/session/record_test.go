package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords_DropsBadEntriesKeepsValid(t *testing.T) {
	data := []byte(`[
		{"session_id":"a","status":"running","cwd":"/w/a","tty":"/dev/ttys001","terminal":"iTerm.app",
		 "started_at":"2026-10-17T10:00:00Z","updated_at":"2026-10-17T10:05:00.123Z","tool_name":"Bash","activity":null},
		{"session_id":"b","status":"sleeping","started_at":"2026-10-17T10:00:00Z","updated_at":"2026-10-17T10:00:00Z"},
		42,
		{"session_id":"","status":"idle","updated_at":"2026-10-17T10:00:00Z"},
		{"session_id":"c","status":"idle","updated_at":"not a time"},
		{"session_id":"d","status":"waiting_input","cwd":"/w/d","started_at":"2026-10-17T09:00:00","updated_at":"2026-10-17T09:30:00","extra":{"x":1}}
	]`)

	got := ParseRecords(data)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, StatusRunning, got[0].Status)
	assert.Equal(t, "Bash", got[0].ToolName)
	assert.Empty(t, got[0].Activity)
	assert.Equal(t, 123*time.Millisecond, time.Duration(got[0].UpdatedAt.Nanosecond()))

	assert.Equal(t, "d", got[1].ID)
	assert.Equal(t, StatusWaitingInput, got[1].Status)
	assert.Equal(t, UnknownTTY, got[1].TTY, "missing tty becomes the sentinel")
	assert.False(t, got[1].HasTTY())
}

func TestParseRecords_EmptyAndMalformedTopLevel(t *testing.T) {
	assert.Empty(t, ParseRecords(nil))
	assert.Empty(t, ParseRecords([]byte("  \n")))
	assert.Empty(t, ParseRecords([]byte(`{"session_id":"a"}`)))
	assert.Empty(t, ParseRecords([]byte(`[{"session_id":"a",`)))
}

func TestParseRecords_DuplicateIDNewestWins(t *testing.T) {
	data := []byte(`[
		{"session_id":"a","status":"running","updated_at":"2026-10-17T10:05:00Z"},
		{"session_id":"a","status":"idle","updated_at":"2026-10-17T10:01:00Z"}
	]`)
	got := ParseRecords(data)
	require.Len(t, got, 1)
	assert.Equal(t, StatusRunning, got[0].Status)
}

func TestEncodeRecords_WireShape(t *testing.T) {
	ts := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	data, err := EncodeRecords([]AgentSession{{
		ID: "a", Status: StatusIdle, Cwd: "/w", TTY: "/dev/ttys002", Terminal: "Apple_Terminal",
		StartedAt: ts, UpdatedAt: ts, NotificationMessage: "done",
	}})
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"session_id": "a"`)
	assert.Contains(t, s, `"status": "idle"`)
	assert.Contains(t, s, `"tool_name": null`)
	assert.Contains(t, s, `"notification_message": "done"`)
	assert.Contains(t, s, `"updated_at": "2026-10-17T10:00:00Z"`)

	back := ParseRecords(data)
	require.Len(t, back, 1)
	assert.True(t, back[0].UpdatedAt.Equal(ts))
}

func TestSortForDisplay_PriorityThenRecency(t *testing.T) {
	base := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	sessions := []AgentSession{
		{ID: "idle", Status: StatusIdle, UpdatedAt: base.Add(5 * time.Minute)},
		{ID: "err", Status: StatusError, UpdatedAt: base.Add(9 * time.Minute)},
		{ID: "wait-old", Status: StatusWaitingInput, UpdatedAt: base},
		{ID: "run", Status: StatusRunning, UpdatedAt: base.Add(time.Minute)},
		{ID: "wait-new", Status: StatusWaitingInput, UpdatedAt: base.Add(2 * time.Minute)},
	}
	SortForDisplay(sessions)

	var ids []string
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"wait-new", "wait-old", "run", "idle", "err"}, ids)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"running", "waiting_input", "idle", "error"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}
	_, err := ParseStatus("busy")
	assert.Error(t, err)
}
