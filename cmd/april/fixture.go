package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-asr-local-april/internal/modelfile"
)

// newFixtureCmd writes a network-less container the stub engine can load.
func newFixtureCmd() *cobra.Command {
	var (
		name     string
		language string
		vocab    string
		rate     int
	)
	cmd := &cobra.Command{
		Use:          "fixture <out.april>",
		Short:        "Write a model header for the stub engine",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := modelfile.DefaultParams(append([]string{"<blk>"}, strings.Split(vocab, "|")...))
			params.SampleRate = int32(rate)
			err := modelfile.WriteFile(args[0], modelfile.Info{
				Language:    language,
				Name:        name,
				Description: "Header-only fixture for the stub engine",
				Params:      params,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Stub Fixture", "model name")
	cmd.Flags().StringVar(&language, "language", "en", "language code (at most 8 bytes)")
	cmd.Flags().StringVar(&vocab, "vocab", " hel|lo| wor|ld|.", "token pieces separated by |")
	cmd.Flags().IntVar(&rate, "sample-rate", 16000, "sample rate in Hz")
	return cmd
}
