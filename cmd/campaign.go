package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bnema/dnd-campaign-cli/internal/application"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

func newCampaignCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage campaigns",
	}

	cmd.AddCommand(newCampaignCreateCmd(app))

	return cmd
}

func newCampaignCreateCmd(app *app) *cobra.Command {
	var flags creationFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign, or queue it while offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			return runCreate(cmd, app, "campaign", flags, func(cmd *cobra.Command, data json.RawMessage, files []domain.FileAttachment) (application.CreationResult, error) {
				return app.creation.CreateCampaign(cmd.Context(), data, files)
			})
		},
	}

	flags.register(cmd)

	return cmd
}
