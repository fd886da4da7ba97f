// Vidaa-remote is a network remote control for Vidaa-based TVs.
//
// It discovers TVs on the local network, pairs with them using the PIN
// shown on the TV screen, and translates remote-control intents (key
// presses, volume, app launch, input switching) into the TV's broker
// protocol. Pairing tokens are stored per device so subsequent sessions
// skip the PIN.
//
// Usage:
//
//	vidaa-remote [command] [flags]
//
// Running without arguments launches the interactive remote.
// See 'vidaa-remote --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombabolewski/vidaa-control/internal/logging"
	"github.com/tombabolewski/vidaa-control/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vidaa-remote",
	Short: "Network remote control for Vidaa TVs",
	Long: `A command-line remote control for Vidaa-based TVs.

Discovers TVs on the local network, pairs using the PIN shown on the TV
screen, and sends remote-control commands over the TV's encrypted broker
connection.

If no command is specified, the interactive remote will launch.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: interactive remote when no subcommand given
		return runInteractive(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vidaa-remote %s (commit: %s)\n", version.Version, version.Commit)
	},
}
