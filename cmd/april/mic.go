package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
	"github.com/nupi-ai/plugin-asr-local-april/internal/audio"
	"github.com/nupi-ai/plugin-asr-local-april/internal/transcript"
)

func newMicCmd(g *globalFlags) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:          "mic <model.april>",
		Short:        "Transcribe the default microphone until Enter is pressed",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMic(cmd, g, args[0], save)
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "also write the captured audio to this WAV file")
	return cmd
}

func runMic(cmd *cobra.Command, g *globalFlags, modelPath, savePath string) error {
	model, logger, err := openModel(cmd, g, modelPath)
	if err != nil {
		return err
	}
	defer model.Close()

	out := cmd.OutOrStdout()
	var agg transcript.Aggregator
	session, err := asr.NewSession(model, asr.ModeAsyncRealtime, func(ev asr.Event) {
		agg.Handle(ev)
		printEvent(out, ev)
	}, asr.WithLogger(logger))
	if err != nil {
		return err
	}
	defer session.Close()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("malgo init: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(model.SampleRate())
	deviceConfig.Alsa.NoMMap = 1

	var (
		mu       sync.Mutex
		captured []int16
	)
	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		pcm := pSample[:2*int(framecount)]
		if savePath != "" {
			mu.Lock()
			captured = append(captured, asr.DecodePCM16(pcm)...)
			mu.Unlock()
		}
		if err := session.Feed(pcm); err != nil {
			logger.Debug("feed after close", "error", err)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("device start: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening at %d Hz with %s. Press Enter to stop...\n", model.SampleRate(), model.Name())
	bufio.NewReader(cmd.InOrStdin()).ReadString('\n')

	if err := device.Stop(); err != nil {
		logger.Warn("device stop failed", "error", err)
	}
	logger.Debug("stopping", "speedup", session.RealtimeSpeedup())
	if err := session.Flush(context.Background()); err != nil {
		return err
	}
	if err := session.Close(); err != nil {
		return err
	}
	if text := agg.Committed(); text != "" {
		fmt.Fprintf(out, "\n%s\n", text)
	}

	if savePath == "" {
		return nil
	}
	f, err := os.Create(savePath)
	if err != nil {
		return err
	}
	mu.Lock()
	err = audio.WriteWAV(f, captured, model.SampleRate())
	mu.Unlock()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
