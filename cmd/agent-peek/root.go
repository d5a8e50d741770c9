package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agent-peek",
	Short: "Track and switch between coding-agent sessions",
	Long: `agent-peek records Claude Code session state for the desktop switcher.

Run "agent-peek install" once to register the hooks. After that every
Claude Code session reports its status into ~/.agent-peek/sessions.json,
which the desktop app watches.`,
	Version:      Version,
	SilenceUsage: true,
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}
