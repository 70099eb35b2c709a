package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fieldops/fieldsync/internal/bus"
	"github.com/fieldops/fieldsync/internal/notify"
	"github.com/fieldops/fieldsync/internal/output"
	"github.com/fieldops/fieldsync/internal/push"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:     "listen",
	Short:   "Listen for push notifications and refresh incrementally",
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
		if e.cfg.PushURL == "" {
			output.Error("no push URL configured (run: fieldsync init --push-url <url>)")
			return fmt.Errorf("no push URL configured")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := bus.New()
		dedup := notify.NewDeduper(e.store, e.dedupWindow())
		queue := notify.NewQueue(e.store)
		router := notify.NewRouter(e.syncer, dedup, b, func() {
			e.syncer.CancelSession()
			stop()
		})
		queue.Attach(router)

		// Anything parked while the listener was down gets replayed first.
		replayed, err := queue.DrainPending(ctx)
		if err != nil {
			output.Warning("drain pending: %v", err)
		} else if replayed > 0 {
			output.Info("Replayed %d pending notification(s)", replayed)
		}

		sub := b.Subscribe()
		defer b.Unsubscribe(sub)
		go func() {
			for range sub {
				output.Info("Replica updated")
			}
		}()

		listener := push.NewListener(e.cfg.PushURL, e.cfg.APIKey, queue)
		output.Info("Listening for push notifications (Ctrl-C to stop)")
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			output.Error("listener: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
