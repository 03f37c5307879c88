package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func parseAddr(arg string) (uint32, error) {
	addr, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", arg, err)
	}
	return uint32(addr), nil
}

var downloadCmd = &cobra.Command{
	Use:   "download <addr> <size> <file>",
	Short: "Read a VMEM byte range into a local file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		size, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return fmt.Errorf("bad size %q: %w", args[1], err)
		}
		f, err := os.Create(args[2])
		if err != nil {
			return err
		}
		defer f.Close()

		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		n, err := mgr.DownloadVMEM(ctx, addr, int(size), f)
		if err != nil {
			return fmt.Errorf("after %d bytes: %w", n, err)
		}
		cmd.Printf("downloaded %d bytes from 0x%08X to %s\n", n, addr, args[2])
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file> <addr>",
	Short: "Write a local file into a VMEM byte range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		n, err := mgr.UploadVMEM(ctx, addr, f)
		if err != nil {
			return fmt.Errorf("after %d bytes: %w", n, err)
		}
		cmd.Printf("uploaded %d bytes from %s to 0x%08X\n", n, args[0], addr)
		return nil
	},
}
