package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/deepteams/webp2png/internal/bind"
)

func newBindCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bind [-o out.pdf] <dir|zip>",
		Short: "Bind the images of a folder or zip archive into a PDF",
		Long: `Bind decodes each matching image of a directory or .zip archive, in name
order, and writes a PDF with one page per image. Pages are sized from the
image pixels at --dpi. Without -o the output is <source base name>.pdf.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return a.runBind(cmd, args[0], output)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output PDF path")
	cmd.Flags().Float64("dpi", bind.DefaultDPI, "pixels per inch used to size pages")
	cmd.Flags().String("title", "", "document title")
	cmd.Flags().StringSlice("ext", nil, "extensions to bind (default .webp,.png,.jpg,.jpeg)")
	a.bindFlag(cmd, "bind.dpi", "dpi")
	a.bindFlag(cmd, "bind.title", "title")
	a.bindFlag(cmd, "batch.extensions", "ext")
	return cmd
}

func (a *app) runBind(cmd *cobra.Command, src, output string) error {
	conv, err := a.converter()
	if err != nil {
		return err
	}
	pages, err := bind.Collect(src, a.cfg.Batch.NormalizedExtensions())
	if err != nil {
		return err
	}

	if output == "" {
		output = defaultOutput(src, ".pdf")
	}
	f, commit, err := createOutput(output)
	if err != nil {
		return err
	}
	werr := bind.Bind(cmd.Context(), conv, f, pages, bind.Options{
		DPI:         a.cfg.Bind.DPI,
		Title:       a.cfg.Bind.Title,
		Compression: 6,
		Logger:      a.log,
	})
	if err := commit(werr); err != nil {
		return err
	}

	size := "?"
	if fi, err := os.Stat(output); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(a.stderr, "Bound %d page(s) from %s → %s (%s)\n", len(pages), src, output, size)
	return nil
}
