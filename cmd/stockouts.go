package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/fieldops/fieldsync/internal/workflow"
	"github.com/spf13/cobra"
)

var stockoutsCmd = &cobra.Command{
	Use:     "stockouts",
	Short:   "Work with out-of-stock reports",
	GroupID: "data",
	Aliases: []string{"stockout", "oos"},
}

var stockoutsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List out-of-stock lines joined to their masters",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		includeOrphans, _ := cmd.Flags().GetBool("orphans")
		joined, err := e.store.ListStockOutJoined(includeOrphans)
		if err != nil {
			output.Error("list stockouts: %v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(joined)
		}
		if len(joined) == 0 {
			output.Info("No out-of-stock lines")
			return nil
		}
		for _, j := range joined {
			output.Info("%s", output.FormatStockOutLine(j))
		}
		return nil
	},
}

var stockoutsLineStateCmd = &cobra.Command{
	Use:   "line-state <line-id> <state>",
	Short: "Move an out-of-stock line through its workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			output.Error("invalid state %q", args[1])
			return fmt.Errorf("invalid state %q", args[1])
		}

		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		if err := e.store.TransitionStockOutLine(args[0], models.LineState(n)); err != nil {
			var conflict *workflow.ConflictError
			if errors.As(err, &conflict) {
				output.Error("%v", conflict)
				return err
			}
			output.Error("line state: %v", err)
			return err
		}
		output.Success("Line %s is now %s", args[0], models.LineState(n))
		return nil
	},
}

func init() {
	stockoutsListCmd.Flags().Bool("orphans", false, "Include lines whose master has not been pulled yet")
	stockoutsListCmd.Flags().Bool("json", false, "Output as JSON")

	stockoutsCmd.AddCommand(stockoutsListCmd, stockoutsLineStateCmd)
	rootCmd.AddCommand(stockoutsCmd)
}
