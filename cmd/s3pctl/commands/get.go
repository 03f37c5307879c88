package commands

import (
	"fmt"
	"strconv"

	"github.com/paradigmatech/gos3p/pkg/value"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <register>",
	Short: "Read a register by id or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		id, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			if err := mgr.Refresh(ctx, nil, nil); err != nil {
				return err
			}
			reg, err := mgr.Lookup(args[0])
			if err != nil {
				return err
			}
			id = uint64(reg.ID)
		}

		v, err := mgr.Get(ctx, uint16(id))
		if err != nil {
			return err
		}
		cmd.Printf("%s (%s)\n", v.String(), value.TypeString(v.Tag))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <register> <value>",
	Short: "Write a register by id or name",
	Long: `Write a register. The value is parsed according to the register's
metadata type: decimal or 0x-hex for integer registers, a float for FLT,
raw text for STR.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		ctx, cancel := signalContext()
		defer cancel()

		regs, err := mgr.Registers(ctx)
		if err != nil {
			return err
		}

		var id uint16
		if parsed, err := strconv.ParseUint(args[0], 0, 16); err == nil {
			id = uint16(parsed)
		} else {
			reg, err := mgr.Lookup(args[0])
			if err != nil {
				return err
			}
			id = reg.ID
		}

		reg, ok := regs.Get(id)
		if !ok {
			return fmt.Errorf("no register with id %d", id)
		}
		v, err := value.Parse(reg.Tag, args[1])
		if err != nil {
			return err
		}
		if err := mgr.Set(ctx, id, v); err != nil {
			return err
		}
		cmd.Printf("%s = %s\n", reg.Name, v.String())
		return nil
	},
}
