package main

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/myrison/agent-peek/internal/config"
	"github.com/myrison/agent-peek/internal/hooks"
	"github.com/myrison/agent-peek/internal/session"
)

// maxHookPayload caps how much of stdin is read. Tool payloads can carry
// whole files; only a few top-level fields matter.
const maxHookPayload = 8 << 20

// Swapped in tests.
var (
	resolveTTY = hooks.ResolveTTY
	hookNow    = time.Now
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:   "hook <event>",
	Short: "Record a Claude Code hook event (called by the hook script)",
	Long: `Read a Claude Code hook payload from stdin and update the sessions file.

Events:
  SessionStart       session is idle
  UserPromptSubmit   session is running, prompt excerpt becomes the activity
  PreToolUse         session is running the named tool
  PostToolUse        tool finished, session still running
  Notification       session is waiting for input
  Stop               session is idle
  SessionEnd         session is removed

The command always exits 0 so a tracking failure never blocks the agent.`,
	Args:   cobra.MaximumNArgs(1),
	Hidden: true,
	RunE:   runHook,
}

func runHook(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	event := args[0]

	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxHookPayload))
	if err != nil {
		log.Printf("[hook] Failed to read %s payload: %v", event, err)
		return nil
	}
	if hooks.ParsePayload(data).SessionID == "" {
		return nil
	}

	storage, err := session.NewStorage(config.SessionsPath())
	if err != nil {
		log.Printf("[hook] %v", err)
		return nil
	}

	origin := hooks.Origin{
		TTY:      resolveTTY(cmd.Context(), os.Getppid()),
		Terminal: os.Getenv("TERM_PROGRAM"),
	}
	if _, err := hooks.Apply(storage, event, data, origin, hookNow()); err != nil {
		log.Printf("[hook] %v", err)
	}
	return nil
}
