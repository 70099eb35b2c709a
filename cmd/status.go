package cmd

import (
	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show sync watermarks, pending notifications and unviewed counts",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		output.Info("%s", output.SectionHeader("sync"))
		for _, k := range kinds.Syncable() {
			wm, err := e.store.GetWatermark(k)
			if err != nil {
				output.Error("watermark %s: %v", k, err)
				return err
			}
			output.Info("  %-16s last sync %s", k, output.FormatTimeAgo(wm.LastSyncAt))
		}

		pending, err := e.store.CountPending()
		if err != nil {
			output.Error("count pending: %v", err)
			return err
		}
		output.Info("%s", output.SectionHeader("notifications"))
		output.Info("  %d pending", pending)

		unviewedOrders, unviewedStockouts, err := e.store.UnviewedCounts()
		if err != nil {
			output.Error("unviewed counts: %v", err)
			return err
		}
		output.Info("%s", output.SectionHeader("unviewed"))
		output.Info("  %d order(s), %d stockout(s)", unviewedOrders, unviewedStockouts)

		if version != "" {
			output.Info("%s", output.SectionHeader("version"))
			output.Info("  %s", version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
