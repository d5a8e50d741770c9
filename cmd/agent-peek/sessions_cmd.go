package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/myrison/agent-peek/internal/config"
	"github.com/myrison/agent-peek/internal/session"
)

var pruneDryRun bool

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsPruneCmd)
	sessionsCmd.AddCommand(sessionsRemoveCmd)

	sessionsPruneCmd.Flags().BoolVarP(&pruneDryRun, "dry-run", "n", false, "Show what would be removed")
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Maintain the sessions file",
	RunE:  requireSubcommand,
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove stale sessions from the sessions file",
	Long: `Remove sessions not updated within the retention window, and sessions
started before agent-peek was installed. The desktop app does this on its
own; prune is for cleaning up while it is not running.`,
	Args: cobra.NoArgs,
	RunE: runPrune,
}

var sessionsRemoveCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Forget sessions by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemove,
}

func runPrune(cmd *cobra.Command, args []string) error {
	storage, err := session.NewStorage(config.SessionsPath())
	if err != nil {
		return err
	}
	now := listNow()
	retention, installedAt := staleWindow()
	stale := func(r session.AgentSession) bool {
		return session.IsStale(r, now, retention, installedAt)
	}

	out := cmd.OutOrStdout()
	if pruneDryRun {
		records, err := storage.Load()
		if err != nil {
			return err
		}
		n := 0
		for _, r := range records {
			if stale(r) {
				n++
				fmt.Fprintf(out, "would remove %s (%s, updated %s)\n", r.ID, r.ProjectName(), r.UpdatedAt.Local().Format(time.DateTime))
			}
		}
		fmt.Fprintf(out, "%d stale session(s)\n", n)
		return nil
	}

	_, removed, err := storage.Prune(stale)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d stale session(s)\n", removed)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	storage, err := session.NewStorage(config.SessionsPath())
	if err != nil {
		return err
	}
	for _, id := range args {
		if err := storage.Remove(id); err != nil {
			return fmt.Errorf("failed to remove %s: %w", id, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session id(s)\n", len(args))
	return nil
}
