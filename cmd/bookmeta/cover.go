package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/bookmeta/internal/coverimg"
)

const (
	defaultJPEGQuality = 90
	minJPEGQuality     = 1
)

type coverOptions struct {
	output    string
	maxWidth  int
	maxHeight int
	quality   int
}

func (o coverOptions) validate() error {
	if o.maxWidth < 0 {
		return fmt.Errorf("--max-width must be >= 0")
	}
	if o.maxHeight < 0 {
		return fmt.Errorf("--max-height must be >= 0")
	}
	if o.quality < minJPEGQuality || o.quality > 100 {
		return fmt.Errorf("--quality must be between %d and 100", minJPEGQuality)
	}
	return nil
}

// defaultCoverPath places the cover next to the book, as book.cover.jpg.
func defaultCoverPath(bookPath, format string) string {
	return strings.TrimSuffix(bookPath, filepath.Ext(bookPath)) + ".cover" + coverimg.Extension(format)
}

func newCoverCmd(a *app) *cobra.Command {
	opts := coverOptions{}

	cmd := &cobra.Command{
		Use:   "cover FILE",
		Short: "Export the cover image of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}

			res := a.pipeline().ExtractFile(args[0])
			if !res.OK() {
				return fmt.Errorf("reading %s: %w", args[0], res.Err)
			}

			img, err := coverimg.NewRenderer(coverimg.Options{
				MaxWidth:    opts.maxWidth,
				MaxHeight:   opts.maxHeight,
				JPEGQuality: opts.quality,
			}).Render(res.Record.Cover)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if img.Warning != "" {
				slog.Warn("Cover kept as stored", "path", args[0], "reason", img.Warning)
			}

			out := opts.output
			if out == "" {
				out = defaultCoverPath(args[0], img.Format)
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(img.Data)
				return err
			}
			if err := os.WriteFile(out, img.Data, 0o644); err != nil {
				return fmt.Errorf("writing cover: %w", err)
			}

			slog.Info("Cover written", "path", out, "format", img.Format, "width", img.Width, "height", img.Height)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path, - for stdout (default: FILE.cover.<ext>)")
	cmd.Flags().IntVar(&opts.maxWidth, "max-width", 0, "fit the cover within this width (0 keeps it)")
	cmd.Flags().IntVar(&opts.maxHeight, "max-height", 0, "fit the cover within this height (0 keeps it)")
	cmd.Flags().IntVar(&opts.quality, "quality", defaultJPEGQuality, "JPEG quality for resized covers")
	return cmd
}
