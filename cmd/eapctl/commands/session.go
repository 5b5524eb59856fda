package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errPeerAddrRequired is returned by "session start" when --addr is empty.
var errPeerAddrRequired = errors.New("--addr flag is required")

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and start EAP sessions hosted by eapd",
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionStartCmd())

	return cmd
}

// --- session list ---

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sessions eapd is currently hosting",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			sessions, err := client.ListSessions(context.Background())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out, err := formatSessions(sessions, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// --- session start ---

func sessionStartCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Begin authenticating a peer at the given address",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if addr == "" {
				return errPeerAddrRequired
			}

			id, err := client.StartSession(context.Background(), addr)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}

			fmt.Printf("Session %s started for %s.\n", id, addr)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "peer address to authenticate (ip:port, required)")

	return cmd
}
