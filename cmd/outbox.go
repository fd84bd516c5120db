package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	outboxrender "github.com/bnema/dnd-campaign-cli/internal/adapters/render/outbox"
	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

type outboxEntry struct {
	ID             int64            `json:"id" yaml:"id"`
	Type           string           `json:"type" yaml:"type"`
	IdempotencyKey string           `json:"idempotencyKey" yaml:"idempotency_key"`
	EnqueuedAt     time.Time        `json:"enqueuedAt" yaml:"enqueued_at"`
	Attempts       int              `json:"attempts" yaml:"attempts"`
	LastError      string           `json:"lastError,omitempty" yaml:"last_error,omitempty"`
	Data           any              `json:"data" yaml:"data"`
	Files          []outboxFileItem `json:"files" yaml:"files"`
}

type outboxFileItem struct {
	Name         string    `json:"name" yaml:"name"`
	MimeType     string    `json:"mimeType" yaml:"mime_type"`
	Size         int       `json:"size" yaml:"size"`
	LastModified time.Time `json:"lastModified" yaml:"last_modified"`
}

func newOutboxCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect creations waiting to be synced",
	}

	cmd.AddCommand(newOutboxListCmd(app), newOutboxRemoveCmd(app))

	return cmd
}

func newOutboxListCmd(app *app) *cobra.Command {
	var asJSON bool
	var asYAML bool
	var showFiles bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending actions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			actions, err := app.store.ListPending(cmd.Context())
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(toOutboxEntries(actions))
			case asYAML:
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(toOutboxEntries(actions)); err != nil {
					return err
				}
				return enc.Close()
			}

			rendered, err := app.outboxRenderer(actions, outboxrender.RenderOptions{Now: app.now(), ShowFiles: showFiles})
			if err != nil {
				return fmt.Errorf("render outbox: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print YAML output")
	cmd.Flags().BoolVar(&showFiles, "files", false, "List attachments under each action")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml")

	return cmd
}

func newOutboxRemoveCmd(app *app) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Drop a pending action without syncing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.store.Remove(cmd.Context(), id); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed #%d\n", id)
			return err
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Pending action ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func toOutboxEntries(actions []domain.PendingAction) []outboxEntry {
	entries := make([]outboxEntry, 0, len(actions))
	for _, action := range actions {
		var data any
		if err := json.Unmarshal(action.Data, &data); err != nil {
			data = string(action.Data)
		}

		files := make([]outboxFileItem, 0, len(action.Files))
		for _, file := range action.Files {
			files = append(files, outboxFileItem{
				Name:         file.Name,
				MimeType:     file.MimeType,
				Size:         len(file.Content),
				LastModified: file.LastModified,
			})
		}

		entries = append(entries, outboxEntry{
			ID:             action.ID,
			Type:           string(action.Type),
			IdempotencyKey: action.IdempotencyKey,
			EnqueuedAt:     action.EnqueuedAt,
			Attempts:       action.Attempts,
			LastError:      action.LastError,
			Data:           data,
			Files:          files,
		})
	}
	return entries
}
