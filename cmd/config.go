package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/dnd-campaign-cli/internal/adapters/config"
)

func newConfigCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Inspect and create the config file",
		Annotations: map[string]string{wireAnnotation: wireConfig},
	}

	cmd.AddCommand(newConfigInitCmd(app), newConfigShowCmd(app))

	return cmd
}

func newConfigInitCmd(app *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.opts.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}

			if err := config.Write(path, app.cfg, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func newConfigShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Encode(app.cfg)
			if err != nil {
				return err
			}

			source := app.cfg.File
			if source == "" {
				source = "defaults (no config file)"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", source, data)
			return err
		},
	}
}
