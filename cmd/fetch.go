package cmd

import (
	"fmt"

	"github.com/fieldops/fieldsync/internal/kinds"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:     "fetch <kind> <id>",
	Short:   "Fetch a single record from the server",
	GroupID: "sync",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, ok := kinds.Parse(args[0])
		if !ok {
			output.Error("unknown kind %q", args[0])
			return fmt.Errorf("unknown kind %q", args[0])
		}

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

		if err := e.syncer.SyncOne(cmd.Context(), kind, args[1]); err != nil {
			output.Error("fetch %s %s: %v", kind, args[1], err)
			return err
		}
		output.Success("Fetched %s %s", kind, args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
