package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/dnd-campaign-cli/internal/application"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

func newCharacterCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "character",
		Short: "Create characters and browse the local character cache",
	}

	cmd.AddCommand(
		newCharacterCreateCmd(app),
		newCharacterListCmd(app),
		newCharacterShowCmd(app),
	)

	return cmd
}

func newCharacterCreateCmd(app *app) *cobra.Command {
	var flags creationFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a character, or queue it while offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.requireLogin(); err != nil {
				return err
			}
			return runCreate(cmd, app, "character", flags, func(cmd *cobra.Command, data json.RawMessage, files []domain.FileAttachment) (application.CreationResult, error) {
				return app.creation.CreateCharacter(cmd.Context(), data, files)
			})
		},
	}

	flags.register(cmd)

	return cmd
}

func newCharacterListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached characters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			characters, err := app.store.ListCharacters(cmd.Context())
			if err != nil {
				return err
			}
			if len(characters) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No cached characters.")
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tUPDATED")
			for _, character := range characters {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", character.ID, characterName(character), formatUpdated(character.UpdatedAt, app.now()))
			}
			return w.Flush()
		},
	}
}

func newCharacterShowCmd(app *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a cached character as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			character, err := app.store.GetCharacter(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeIndentedJSON(cmd.OutOrStdout(), character.Data)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Character ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func characterName(character domain.Character) string {
	var fields struct {
		Name          string `json:"name"`
		CharacterName string `json:"characterName"`
	}
	if err := json.Unmarshal(character.Data, &fields); err != nil {
		return "-"
	}
	switch {
	case fields.Name != "":
		return fields.Name
	case fields.CharacterName != "":
		return fields.CharacterName
	default:
		return "-"
	}
}

func formatUpdated(at, now time.Time) string {
	if at.IsZero() {
		return "-"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}
