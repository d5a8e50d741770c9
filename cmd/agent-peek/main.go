// Command agent-peek is the helper CLI invoked by Claude Code hooks. It also
// installs those hooks and inspects the shared sessions file.
package main

import (
	"os"
)

// Version is set at build time via ldflags
var Version = "0.1.0-dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
