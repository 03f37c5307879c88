package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// signalContext returns a context canceled on Ctrl-C, so long-running
// loops (bulk transfers, metadata walks) exit cleanly between chunks.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the node answers and report round-trip time",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		rtt, err := mgr.Ping(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("pong in %v\n", rtt)
		return nil
	},
}

var rebootCmd = &cobra.Command{
	Use:   "reboot",
	Short: "Ask the node to reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if err := mgr.Reboot(ctx); err != nil {
			return err
		}
		cmd.Println("reboot acknowledged")
		return nil
	},
}
