package commands

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <cmd-id> [arg]",
	Short: "Execute a node command with an optional u32 argument",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmdID, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("bad command id %q: %w", args[0], err)
		}
		var arg uint64
		if len(args) == 2 {
			arg, err = strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return fmt.Errorf("bad argument %q: %w", args[1], err)
			}
		}

		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		payload, err := mgr.ExecCmd(ctx, uint32(cmdID), uint32(arg))
		if err != nil {
			return err
		}
		if len(payload) > 0 {
			cmd.Printf("ok, payload: %s\n", hex.EncodeToString(payload))
		} else {
			cmd.Println("ok")
		}
		return nil
	},
}
