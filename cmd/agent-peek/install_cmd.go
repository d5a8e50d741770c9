package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/myrison/agent-peek/internal/config"
	"github.com/myrison/agent-peek/internal/hooks"
)

var installBinary string

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)

	installCmd.Flags().StringVar(&installBinary, "binary", "", "agent-peek binary the hook script calls (default: this executable)")
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Register agent-peek hooks with Claude Code",
	Long: `Write the hook script to ~/.agent-peek/hooks and register it in
Claude Code's settings.json for every tracked event.

Existing hooks are preserved. Events already pointing at an agent-peek
script are skipped, so running install again is safe. The first install
also records the time from which sessions are shown.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove agent-peek hooks from Claude Code",
	Args:  cobra.NoArgs,
	RunE:  runUninstall,
}

func newInstaller() (*hooks.Installer, error) {
	bin := installBinary
	if bin == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate agent-peek binary: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		bin = exe
	}
	return &hooks.Installer{
		SettingsPath: config.ClaudeSettingsPath(),
		HooksDir:     config.HooksDir(),
		Binary:       bin,
	}, nil
}

func runInstall(cmd *cobra.Command, args []string) error {
	in, err := newInstaller()
	if err != nil {
		return err
	}
	res, err := in.Install()
	if err != nil {
		return err
	}
	installedAt, err := config.MarkInstalled(time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Hook script: %s\n", res.ScriptPath)
	if len(res.Added) > 0 {
		fmt.Fprintf(out, "Registered: %s\n", strings.Join(res.Added, ", "))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "Already registered: %s\n", strings.Join(res.Skipped, ", "))
	}
	fmt.Fprintf(out, "Tracking sessions started after %s\n", installedAt.Local().Format(time.RFC1123))
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	in, err := newInstaller()
	if err != nil {
		return err
	}
	removed, err := in.Uninstall()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintln(out, "No agent-peek hooks were registered")
		return nil
	}
	fmt.Fprintf(out, "Removed: %s\n", strings.Join(removed, ", "))
	return nil
}
