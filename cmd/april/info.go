package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-asr-local-april/internal/modelfile"
)

func newInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "info <model.april>",
		Short:        "Print model metadata",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, _, err := openModel(cmd, g, args[0])
			if err != nil {
				return err
			}
			defer model.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", model.Name())
			fmt.Fprintf(out, "Description: %s\n", model.Description())
			fmt.Fprintf(out, "Language:    %s\n", model.Language())
			fmt.Fprintf(out, "Sample rate: %d Hz\n", model.SampleRate())

			// The container header carries more than the engine exposes.
			info, err := modelfile.Read(args[0])
			if err != nil {
				return nil
			}
			p := info.Params
			fmt.Fprintf(out, "Version:     %d\n", info.Version)
			fmt.Fprintf(out, "Tokens:      %d (blank %d)\n", len(p.Tokens), p.BlankID)
			fmt.Fprintf(out, "Features:    %d mel, %d/%d ms frames\n", p.MelFeatures, p.FrameShiftMs, p.FrameLengthMs)
			fmt.Fprintf(out, "Networks:    %d\n", len(info.Networks))
			return nil
		},
	}
}
