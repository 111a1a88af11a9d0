package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deepteams/webp2png/internal/batch"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch -o <dir> <dir|zip>",
		Short: "Convert every image in a folder or zip archive",
		Long: `Batch converts each matching file in a directory (not recursive) or a .zip
archive to <output>/<name>.png. Existing outputs are skipped unless
--overwrite is set. A failed file does not stop the others; the command exits
non-zero if any file failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return a.runBatch(cmd, args[0], output)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output directory (required)")
	cmd.Flags().IntP("workers", "j", 4, "concurrent conversions")
	cmd.Flags().Bool("overwrite", false, "replace existing outputs")
	cmd.Flags().StringSlice("ext", nil, "extensions to convert (default .webp,.png,.jpg,.jpeg)")
	_ = cmd.MarkFlagRequired("output")
	a.bindFlag(cmd, "batch.workers", "workers")
	a.bindFlag(cmd, "batch.overwrite", "overwrite")
	a.bindFlag(cmd, "batch.extensions", "ext")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, src, dst string) error {
	conv, err := a.converter()
	if err != nil {
		return err
	}

	sum, err := batch.Run(cmd.Context(), conv, src, dst, batch.Options{
		Workers:    a.cfg.Batch.Workers,
		Extensions: a.cfg.Batch.NormalizedExtensions(),
		Overwrite:  a.cfg.Batch.Overwrite,
		Logger:     a.log,
	})

	failed := color.New(color.FgRed).FprintfFunc()
	skipped := color.New(color.FgYellow).FprintfFunc()
	converted := color.New(color.FgGreen).FprintfFunc()

	var in, out uint64
	for _, item := range sum.Items {
		switch item.Status {
		case batch.Failed:
			failed(a.stdout, "failed:    %s (%v)\n", item.Input, item.Err)
		case batch.Skipped:
			skipped(a.stdout, "skipped:   %s (already exists)\n", item.Output)
		case batch.Converted:
			converted(a.stdout, "converted: %s → %s\n", item.Input, item.Output)
			in += uint64(item.InputBytes)
			out += uint64(item.OutputBytes)
		}
	}
	fmt.Fprintf(a.stdout, "\n%d converted, %d skipped, %d failed (%s → %s)\n",
		sum.Converted, sum.Skipped, sum.Failed, humanize.Bytes(in), humanize.Bytes(out))

	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", sum.Failed)
	}
	return nil
}
