package cmd

import (
	"fmt"
	"strconv"

	"github.com/fieldops/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var packCmd = &cobra.Command{
	Use:     "pack <line-id> <qty>",
	Short:   "Record packed quantity for an order line",
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			output.Error("invalid quantity %q", args[1])
			return fmt.Errorf("invalid quantity %q", args[1])
		}

		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		// Line must exist locally; the packing table is keyed by line id.
		if _, err := e.store.GetOrderLine(args[0]); err != nil {
			output.Error("%v", err)
			return err
		}

		if add, _ := cmd.Flags().GetBool("add"); add {
			total, err := e.store.AddPackedCount(args[0], qty)
			if err != nil {
				output.Error("pack: %v", err)
				return err
			}
			output.Success("Line %s packed total %.0f", args[0], total)
			return nil
		}

		if err := e.store.SetPackedCount(args[0], qty); err != nil {
			output.Error("pack: %v", err)
			return err
		}
		output.Success("Line %s packed %.0f", args[0], qty)
		return nil
	},
}

func init() {
	packCmd.Flags().Bool("add", false, "Add to the current packed count instead of replacing it")
	rootCmd.AddCommand(packCmd)
}
