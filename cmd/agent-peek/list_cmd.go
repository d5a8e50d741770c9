package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/myrison/agent-peek/internal/config"
	"github.com/myrison/agent-peek/internal/session"
)

var (
	listJSON bool
	listAll  bool
)

var listNow = time.Now

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include stale sessions")
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked sessions in switcher order",
	Long: `List the sessions the switcher would show, waiting sessions first.

Output is a table on a terminal and JSON when piped or with --json.
Stale sessions (not updated within the retention window, or started
before agent-peek was installed) are hidden unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// loadCurrent returns live sessions sorted for display.
func loadCurrent(now time.Time, all bool) ([]session.AgentSession, error) {
	storage, err := session.NewStorage(config.SessionsPath())
	if err != nil {
		return nil, err
	}
	records, err := storage.Load()
	if err != nil {
		return nil, err
	}
	if !all {
		retention, installedAt := staleWindow()
		records = lo.Filter(records, func(r session.AgentSession, _ int) bool {
			return !session.IsStale(r, now, retention, installedAt)
		})
	}
	session.SortForDisplay(records)
	return records, nil
}

func staleWindow() (time.Duration, time.Time) {
	cfg, err := config.NewManager().Load()
	if err != nil {
		log.Printf("Warning: using default settings: %v", err)
		cfg = config.Defaults()
	}
	return cfg.Sessions.Retention, config.ReadInstalledAt()
}

func runList(cmd *cobra.Command, args []string) error {
	now := listNow()
	records, err := loadCurrent(now, listAll)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON || !isTerminal(out) {
		if records == nil {
			records = []session.AgentSession{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No active sessions")
		return nil
	}
	printTable(out, records, now)
	return nil
}

func printTable(out io.Writer, records []session.AgentSession, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tPROJECT\tTERMINAL\tUPDATED\tDETAIL")
	for i, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Status, r.ProjectName(), r.Terminal, formatAge(now.Sub(r.UpdatedAt)), detail(r))
	}
	_ = w.Flush()
}

func detail(r session.AgentSession) string {
	switch {
	case r.NotificationMessage != "" && r.Status == session.StatusWaitingInput:
		return r.NotificationMessage
	case r.ToolName != "":
		return r.ToolName
	default:
		return r.Activity
	}
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
