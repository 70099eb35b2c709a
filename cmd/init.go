package cmd

import (
	"github.com/fieldops/fieldsync/internal/config"
	"github.com/fieldops/fieldsync/internal/db"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Create the local replica database",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		base := getBaseDir()

		store, err := db.Initialize(base)
		if err != nil {
			output.Error("initialize database: %v", err)
			return err
		}
		defer store.Close()

		serverURL, _ := cmd.Flags().GetString("server")
		pushURL, _ := cmd.Flags().GetString("push-url")
		apiKey, _ := cmd.Flags().GetString("api-key")
		if serverURL != "" || pushURL != "" || apiKey != "" {
			if err := config.SetServer(base, serverURL, pushURL, apiKey); err != nil {
				output.Error("save config: %v", err)
				return err
			}
		}

		actorType, _ := cmd.Flags().GetInt("actor-type")
		actorID, _ := cmd.Flags().GetInt64("actor-id")
		deviceID, _ := cmd.Flags().GetString("device-id")
		if actorType != 0 || actorID != 0 || deviceID != "" {
			if err := config.SetActor(base, actorType, actorID, deviceID); err != nil {
				output.Error("save config: %v", err)
				return err
			}
		}

		output.Success("Initialized replica in %s/.fieldsync", base)
		return nil
	},
}

func init() {
	initCmd.Flags().String("server", "", "API server URL")
	initCmd.Flags().String("push-url", "", "Push notification websocket URL")
	initCmd.Flags().String("api-key", "", "API key")
	initCmd.Flags().Int("actor-type", 0, "Actor type this device syncs as")
	initCmd.Flags().Int64("actor-id", 0, "Actor id this device syncs as")
	initCmd.Flags().String("device-id", "", "Device identifier sent with requests")
	rootCmd.AddCommand(initCmd)
}
