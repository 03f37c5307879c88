package commands

import (
	s3p "github.com/paradigmatech/gos3p"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the node's self-description",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		info, err := mgr.S3PInfo(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("protocol version: %s\n", s3p.VersionString(info.Version))
		cmd.Printf("registers:        %d (ids %d..%d)\n", info.RegsCount, info.RegMin, info.RegMax)
		cmd.Printf("vmem rows:        %d\n", info.VMEMRows)
		return nil
	},
}
