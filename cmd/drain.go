package cmd

import (
	"github.com/fieldops/fieldsync/internal/bus"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:     "drain",
	Short:   "Replay parked push notifications",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer e.close()

		if err := e.requireServer(); err != nil {
			output.Error("%v", err)
			return err
		}

		dedup := notify.NewDeduper(e.store, e.dedupWindow())
		queue := notify.NewQueue(e.store)
		queue.Attach(notify.NewRouter(e.syncer, dedup, bus.New(), e.syncer.CancelSession))

		processed, err := queue.DrainPending(cmd.Context())
		if err != nil {
			output.Error("drain: %v", err)
			return err
		}
		if processed == 0 {
			output.Info("Nothing pending")
			return nil
		}
		output.Success("Replayed %d notification(s)", processed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(drainCmd)
}
