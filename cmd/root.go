package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd, app := newRootCmd()
	defer app.Close()

	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() (*cobra.Command, *app) {
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "dnd",
		Short:         "D&D campaign client (dnd): offline-first campaigns, characters and live sessions",
		Long:          "dnd talks to a Dungeons & Dragons campaign backend. Creations made while the backend is unreachable are kept in a local outbox and replayed by `dnd sync`.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.wire(cmd.Context(), wireLevelFor(cmd), cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.opts.configPath, "config", "", "Config file (default ~/.dnd/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&app.opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(app),
		newLoginCmd(app),
		newRegisterCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newCampaignCmd(app),
		newCharacterCmd(app),
		newOutboxCmd(app),
		newSyncCmd(app),
		newImageCmd(app),
		newSessionCmd(app),
	)

	return rootCmd, app
}
