package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
	"github.com/nupi-ai/plugin-asr-local-april/internal/audio"
	"github.com/nupi-ai/plugin-asr-local-april/internal/engine"
	"github.com/nupi-ai/plugin-asr-local-april/internal/transcript"
)

type globalFlags struct {
	engine   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var (
		g    globalFlags
		mode string
		srt  bool
	)
	root := &cobra.Command{
		Use:   "april <model.april> <audio>",
		Short: "Transcribe audio with an april model",
		Long: `Transcribe 16-bit mono PCM audio with an april model.

The audio argument may be:
  a .wav file    16-bit PCM mono WAV at the model's sample rate
  any other file raw little-endian PCM16 at the model's sample rate
  -              raw PCM16 read from standard input
  ?              one second of silence

Examples:
  april en-us.april speech.wav
  april en-us.april speech.wav --srt > speech.srt
  arecord -f S16_LE -r 16000 -c 1 -t raw | april en-us.april -`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := asr.ParseMode(mode)
			if err != nil {
				return err
			}
			return runTranscribe(cmd, g, args[0], args[1], m, srt)
		},
	}
	root.PersistentFlags().StringVar(&g.engine, "engine", "auto", "recognition engine: auto, april or stub")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	root.Flags().StringVar(&mode, "mode", "sync", "session mode: sync, async-realtime or async-nonrealtime")
	root.Flags().BoolVar(&srt, "srt", false, "write SubRip subtitles built from final results")

	root.AddCommand(newInfoCmd(&g), newMicCmd(&g), newFixtureCmd())
	return root
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv = slog.LevelDebug
	case "info":
		lv = slog.LevelInfo
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}

// openModel picks the engine named by g and loads path with it.
func openModel(cmd *cobra.Command, g *globalFlags, path string) (*asr.Model, *slog.Logger, error) {
	logger := newLogger(cmd.ErrOrStderr(), g.logLevel)

	var eng engine.Engine
	switch g.engine {
	case "stub":
		eng = engine.NewStubEngine()
	case "april", "auto":
		native, err := engine.NewNativeEngine()
		switch {
		case err == nil:
			eng = native
		case g.engine == "auto" && !engine.NativeAvailable():
			logger.Warn("native april engine not compiled in, using stub engine")
			eng = engine.NewStubEngine()
		default:
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown engine %q (want auto, april or stub)", g.engine)
	}

	model, err := asr.NewRuntime(eng, logger).LoadModel(path)
	if err != nil {
		return nil, nil, err
	}
	return model, logger, nil
}

func runTranscribe(cmd *cobra.Command, g globalFlags, modelPath, audioPath string, mode asr.Mode, srt bool) error {
	model, logger, err := openModel(cmd, &g, modelPath)
	if err != nil {
		return err
	}
	defer model.Close()

	pcm, err := audio.Load(audioPath, model.SampleRate(), cmd.InOrStdin())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var handler asr.Handler
	var srtWriter *transcript.SRTWriter
	if srt {
		srtWriter = transcript.NewSRTWriter(out)
		handler = srtWriter.Handle
	} else {
		handler = func(ev asr.Event) { printEvent(out, ev) }
	}

	// The whole file is queued at once, so async sessions get room for all of it.
	audioLen := time.Duration(len(pcm)/2) * time.Second / time.Duration(model.SampleRate())
	session, err := asr.NewSession(model, mode, handler,
		asr.WithQueueDuration(audioLen+time.Second),
		asr.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Feed(pcm); err != nil {
		return err
	}
	if err := session.Flush(context.Background()); err != nil {
		return err
	}
	if err := session.Close(); err != nil {
		return err
	}
	if srtWriter != nil {
		return srtWriter.Err()
	}
	return nil
}

func printEvent(w io.Writer, ev asr.Event) {
	switch ev.Type {
	case asr.EventPartial:
		fmt.Fprintf(w, "- %s\n", ev.Text())
	case asr.EventFinal:
		fmt.Fprintf(w, "@ %s\n", ev.Text())
	case asr.EventSilence:
		fmt.Fprintln(w, "Silence")
	case asr.EventCantKeepUp:
		fmt.Fprintln(w, "Can't keep up")
	default:
		fmt.Fprintln(w, "Unknown")
	}
}
