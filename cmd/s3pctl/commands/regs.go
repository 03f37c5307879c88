package commands

import (
	"github.com/paradigmatech/gos3p/pkg/value"
	"github.com/spf13/cobra"
)

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Download and print the node's register table",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if err := mgr.Refresh(ctx, progressPrinter(cmd, "Getting register"), nil); err != nil {
			return err
		}
		regs, err := mgr.Registers(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("%-6s %-32s %-6s %-5s %s\n", "ID", "NAME", "TYPE", "GROUP", "FLAGS")
		for _, reg := range regs.All() {
			flags := ""
			if reg.Mutable() {
				flags += "w"
			}
			if reg.Persist() {
				flags += "p"
			}
			cmd.Printf("%-6d %-32s %-6s %-5d %s\n",
				reg.ID, reg.Name, value.TypeString(reg.Tag), reg.GroupID, flags)
		}
		if !regs.Complete {
			cmd.Println("(table incomplete: walk stopped early)")
		}
		return nil
	},
}

var vmemCmd = &cobra.Command{
	Use:   "vmem",
	Short: "Download and print the node's VMEM mapping table",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if err := mgr.Refresh(ctx, nil, progressPrinter(cmd, "Getting row")); err != nil {
			return err
		}
		rows, err := mgr.VMEMRows(ctx)
		if err != nil {
			return err
		}

		cmd.Printf("%-4s %-32s %-10s %-10s %s\n", "IDX", "NAME", "VSTART", "SIZE", "FLAGS")
		for _, row := range rows.All() {
			flags := ""
			if row.Readable() {
				flags += "r"
			}
			if row.Writable() {
				flags += "w"
			}
			if row.Mirrored() {
				flags += "m"
			}
			cmd.Printf("%-4d %-32s 0x%08X %-10d %s\n",
				row.Idx, row.Name, row.VStart, row.Size, flags)
		}
		if !rows.Complete {
			cmd.Println("(table incomplete: walk stopped early)")
		}
		return nil
	},
}
