package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// client is the status API client, initialized in PersistentPreRunE.
	client *statusClient

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the daemon's status API address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for eapctl.
var rootCmd = &cobra.Command{
	Use:   "eapctl",
	Short: "CLI client for the eapd daemon",
	Long:  "eapctl talks to the eapd daemon's HTTP status API to start and inspect EAP sessions.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = newStatusClient(serverAddr)
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8080",
		"eapd status API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
