package cmd

import (
	"fmt"

	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:     "sync [kind]",
	Short:   "Reconcile the local replica with the server",
	GroupID: "sync",
	Args:    cobra.MaximumNArgs(1),
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

		ctx := cmd.Context()
		if len(args) == 1 {
			kind, ok := kinds.Parse(args[0])
			if !ok {
				output.Error("unknown kind %q", args[0])
				return fmt.Errorf("unknown kind %q", args[0])
			}
			if err := e.syncer.SyncKind(ctx, kind); err != nil {
				output.Error("sync %s: %v", kind, err)
				return err
			}
			output.Success("Synced %s", kind)
			return nil
		}

		if err := e.syncer.SyncAll(ctx); err != nil {
			output.Error("sync: %v", err)
			return err
		}
		output.Success("Sync complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
