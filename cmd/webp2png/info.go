package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <input>",
		Short: "Print an image header without decoding pixels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return a.runInfo(args[0], asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "print JSON instead of text")
	return cmd
}

func (a *app) runInfo(input string, asJSON bool) error {
	conv, err := a.converter()
	if err != nil {
		return err
	}
	data, err := a.readInput(input)
	if err != nil {
		return fmt.Errorf("info: reading input: %w", err)
	}
	info, err := conv.Inspect(data)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	w := a.stdout
	fmt.Fprintf(w, "File:       %s\n", displayName(input))
	fmt.Fprintf(w, "Format:     %s\n", info.Format)
	if info.Variant != "" {
		fmt.Fprintf(w, "Variant:    %s\n", info.Variant)
	}
	fmt.Fprintf(w, "Dimensions: %d x %d\n", info.Width, info.Height)
	fmt.Fprintf(w, "Alpha:      %v\n", info.HasAlpha)
	fmt.Fprintf(w, "Animation:  %v\n", info.Animated)
	if info.Animated {
		fmt.Fprintf(w, "Frames:     %d\n", info.Frames)
	}
	if input != "-" {
		if fi, err := os.Stat(input); err == nil {
			fmt.Fprintf(w, "File size:  %s\n", humanize.Bytes(uint64(fi.Size())))
		}
	}
	return nil
}
