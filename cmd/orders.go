package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/models"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/fieldops/fieldsync/internal/workflow"
	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:     "orders",
	Short:   "Work with sales orders",
	GroupID: "data",
	Aliases: []string{"order"},
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orders from the local replica",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		var filter db.OrderFilter
		filter.IncludeHidden, _ = cmd.Flags().GetBool("all")
		filter.UnviewedOnly, _ = cmd.Flags().GetBool("unviewed")
		if stateStr, _ := cmd.Flags().GetString("state"); stateStr != "" {
			n, err := strconv.Atoi(stateStr)
			if err != nil {
				output.Error("invalid state %q", stateStr)
				return fmt.Errorf("invalid state %q", stateStr)
			}
			state := models.OrderState(n)
			filter.State = &state
		}

		orders, err := e.store.ListOrders(filter)
		if err != nil {
			output.Error("list orders: %v", err)
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(orders)
		}
		if len(orders) == 0 {
			output.Info("No orders")
			return nil
		}
		for _, o := range orders {
			output.Info("%s", output.FormatOrderShort(o))
		}
		return nil
	},
}

var ordersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an order locally, pushed on next sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		customerID, _ := cmd.Flags().GetInt64("customer")
		if customerID == 0 {
			output.Error("--customer is required")
			return fmt.Errorf("--customer is required")
		}
		note, _ := cmd.Flags().GetString("note")

		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		o, err := e.store.CreateLocalOrder(customerID, note)
		if err != nil {
			output.Error("create order: %v", err)
			return err
		}
		output.Success("Created order %s (pushed on next sync)", o.ID)
		return nil
	},
}

var ordersSetStateCmd = &cobra.Command{
	Use:   "set-state <id> <state>",
	Short: "Move an order through the approval workflow",
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

		if err := e.store.TransitionOrder(args[0], models.OrderState(n)); err != nil {
			var conflict *workflow.ConflictError
			if errors.As(err, &conflict) {
				output.Error("%v", conflict)
				return err
			}
			output.Error("set state: %v", err)
			return err
		}
		output.Success("Order %s is now %s", args[0], models.OrderState(n))
		return nil
	},
}

var ordersViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "Show an order with its lines and mark it viewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		o, err := e.store.GetOrder(args[0])
		if err != nil {
			output.Error("%v", err)
			return err
		}
		lines, err := e.store.ListOrderLines(o.ID, false)
		if err != nil {
			output.Error("list lines: %v", err)
			return err
		}

		output.Info("%s", output.FormatOrderShort(o))
		for _, l := range lines {
			packed := ""
			if p, _ := e.store.GetPackedCount(l.ID); p != nil {
				packed = fmt.Sprintf("  packed %.0f/%.0f", p.Packed, l.Quantity)
			}
			output.Info("  %s  product %d  qty %.0f  [%s]%s", l.ID, l.ProductID, l.Quantity, l.State, packed)
		}

		if !o.Viewed {
			if err := e.store.MarkViewed(kinds.Order, o.ID); err != nil {
				output.Warning("mark viewed: %v", err)
			}
		}
		return nil
	},
}

func init() {
	ordersListCmd.Flags().Bool("all", false, "Include deleted, temp and draft orders")
	ordersListCmd.Flags().Bool("unviewed", false, "Only orders not yet viewed")
	ordersListCmd.Flags().String("state", "", "Filter by workflow state (numeric)")
	ordersListCmd.Flags().Bool("json", false, "Output as JSON")
	ordersCreateCmd.Flags().Int64("customer", 0, "Customer id")
	ordersCreateCmd.Flags().String("note", "", "Free-form note")

	ordersCmd.AddCommand(ordersListCmd, ordersCreateCmd, ordersSetStateCmd, ordersViewCmd)
	rootCmd.AddCommand(ordersCmd)
}
