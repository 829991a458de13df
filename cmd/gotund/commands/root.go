// Package commands implements the gotund command-line interface.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configPath is the --config flag value, shared by the run path.
var configPath string

// rootCmd is the top-level cobra command for gotund. Running it starts
// the daemon.
var rootCmd = &cobra.Command{
	Use:   "gotund",
	Short: "User-space TCP/IP stack over a TUN device",
	Long: "gotund reads raw IP packets from a TUN device, drives a per-connection\n" +
		"TCP state machine, and writes synthesized responses back through the device.",
	RunE: func(_ *cobra.Command, _ []string) error {
		if code := runDaemon(configPath); code != 0 {
			return fmt.Errorf("gotund exited with code %d", code)
		}
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to configuration file (YAML)")

	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
