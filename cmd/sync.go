package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	outboxrender "github.com/bnema/dnd-campaign-cli/internal/adapters/render/outbox"
)

func newSyncCmd(app *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay pending creations against the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watch {
				return runSyncWatch(cmd, app)
			}

			report, err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Replaying pending actions...", app.syncEngine.Drain)
			if err != nil {
				return fmt.Errorf("sync outbox: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), outboxrender.RenderDrainReport(report))
			return err
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and sync whenever the backend becomes reachable")

	return cmd
}

func runSyncWatch(cmd *cobra.Command, app *app) error {
	ctx := cmd.Context()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Watching %s every %s (Ctrl-C to stop)\n", app.cfg.Backend.URL, app.cfg.Sync.ProbeInterval)

	errs := make(chan error, 2)
	go func() { errs <- app.monitor.Run(ctx) }()
	go func() { errs <- app.syncEngine.Run(ctx, app.monitor.Restored()) }()

	err := <-errs
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
