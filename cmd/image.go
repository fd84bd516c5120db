package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

type zoneImageFlags struct {
	zone  string
	index int
}

func (f *zoneImageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.zone, "zone", "", "Zone ID")
	cmd.Flags().IntVar(&f.index, "index", 0, "Image index within the zone")
	_ = cmd.MarkFlagRequired("zone")
}

func (f zoneImageFlags) key() domain.ZoneImageKey {
	return domain.ZoneImageKey{ZoneID: f.zone, ImageIndex: f.index}
}

func newImageCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage zone images kept on this machine",
	}

	cmd.AddCommand(
		newImagePutCmd(app),
		newImageGetCmd(app),
		newImageRemoveCmd(app),
		newImageListCmd(app),
	)

	return cmd
}

func newImagePutCmd(app *app) *cobra.Command {
	var flags zoneImageFlags
	var path string

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Store an image for a zone slot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := readAttachment(path)
			if err != nil {
				return err
			}

			err = app.store.PutZoneImage(cmd.Context(), domain.ZoneImage{
				Key:      flags.key(),
				Name:     file.Name,
				MimeType: file.MimeType,
				Content:  file.Content,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s as %s (%s)\n", file.Name, flags.key(), humanize.IBytes(uint64(len(file.Content))))
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&path, "file", "", "Image file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newImageGetCmd(app *app) *cobra.Command {
	var flags zoneImageFlags
	var outPath string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Write a stored zone image to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			image, err := app.store.GetZoneImage(cmd.Context(), flags.key())
			if err != nil {
				return err
			}

			if outPath == "" {
				outPath = image.Name
			}
			if err := os.WriteFile(outPath, image.Content, 0o644); err != nil {
				return fmt.Errorf("write image: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default: stored file name)")

	return cmd
}

func newImageRemoveCmd(app *app) *cobra.Command {
	var flags zoneImageFlags

	cmd := &cobra.Command{
		Use:     "rm",
		Aliases: []string{"remove"},
		Short:   "Delete a stored zone image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.store.DeleteZoneImage(cmd.Context(), flags.key()); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", flags.key())
			return err
		},
	}

	flags.register(cmd)

	return cmd
}

func newImageListCmd(app *app) *cobra.Command {
	var zone string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored images of a zone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			images, err := app.store.ListZoneImages(cmd.Context(), zone)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "INDEX\tNAME\tTYPE\tSIZE")
			for _, image := range images {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", image.Key.ImageIndex, image.Name, image.MimeType, humanize.IBytes(uint64(len(image.Content))))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&zone, "zone", "", "Zone ID")
	_ = cmd.MarkFlagRequired("zone")

	return cmd
}
