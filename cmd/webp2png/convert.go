package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConvertCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [-o out.png] <input>",
		Short: "Convert one image to PNG",
		Long: `Convert decodes one image and writes its pixels as PNG. Use "-" as input to
read from stdin and "-o -" to write to stdout. Without -o the output is
<input base name>.png in the working directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return a.runConvert(cmd, args[0], output)
		},
	}
	cmd.Flags().StringP("output", "o", "", `output path ("-" for stdout)`)
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, input, output string) error {
	conv, err := a.converter()
	if err != nil {
		return err
	}
	data, err := a.readInput(input)
	if err != nil {
		return fmt.Errorf("convert: reading input: %w", err)
	}

	res, err := conv.TranscodeContext(cmd.Context(), data)
	if err != nil {
		return fmt.Errorf("convert: %s: %w", displayName(input), err)
	}

	if output == "-" {
		_, err := a.stdout.Write(res.Output)
		return err
	}
	if output == "" {
		output = defaultOutput(input, ".png")
	}
	f, commit, err := createOutput(output)
	if err != nil {
		return err
	}
	_, werr := f.Write(res.Output)
	if err := commit(werr); err != nil {
		return fmt.Errorf("convert: %w", err)
	}

	src := res.Source
	a.log.Debug("converted",
		zap.String("input", displayName(input)),
		zap.String("output", output),
		zap.String("format", src.Format),
		zap.Int("width", src.Width),
		zap.Int("height", src.Height))
	fmt.Fprintf(a.stderr, "Converted %s (%s %dx%d, %s) → %s (%s)\n",
		displayName(input), src.Format, src.Width, src.Height,
		humanize.Bytes(uint64(len(data))), output, humanize.Bytes(uint64(len(res.Output))))
	return nil
}
