package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nupi-ai/plugin-asr-local-april/internal/audio"
	"github.com/nupi-ai/plugin-asr-local-april/internal/modelfile"
)

func run(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(bytes.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func fixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.april")
	if _, err := run(t, nil, "fixture", path); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return path
}

// speech is 300 ms of loud square wave followed by 400 ms of silence.
func speech() []int16 {
	out := make([]int16, 16*700)
	for i := 0; i < 16*300; i++ {
		if i%2 == 0 {
			out[i] = 4000
		} else {
			out[i] = -4000
		}
	}
	return out
}

func TestFixtureRoundTrip(t *testing.T) {
	path := fixture(t)
	info, err := modelfile.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Stub Fixture" || info.Language != "en" {
		t.Fatalf("info = %+v", info)
	}
	want := []string{"<blk>", " hel", "lo", " wor", "ld", "."}
	if strings.Join(info.Params.Tokens, "|") != strings.Join(want, "|") {
		t.Fatalf("tokens = %q, want %q", info.Params.Tokens, want)
	}
}

func TestInfo(t *testing.T) {
	out, err := run(t, nil, "info", "--engine", "stub", fixture(t))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Name:        Stub Fixture",
		"Language:    en",
		"Sample rate: 16000 Hz",
		"Tokens:      6 (blank 0)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTranscribeWAV(t *testing.T) {
	model := fixture(t)
	wavPath := filepath.Join(t.TempDir(), "speech.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := audio.WriteWAV(f, speech(), 16000); err != nil {
		t.Fatal(err)
	}
	f.Close()

	for _, mode := range []string{"sync", "async-realtime", "async-nonrealtime"} {
		t.Run(mode, func(t *testing.T) {
			out, err := run(t, nil, "--engine", "stub", "--mode", mode, model, wavPath)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out, "- ") {
				t.Errorf("no partial results:\n%s", out)
			}
			if !strings.Contains(out, "@  hello wor\n") {
				t.Errorf("missing final result:\n%s", out)
			}
		})
	}
}

func TestTranscribeStdinSRT(t *testing.T) {
	out, err := run(t, audio.EncodePCM16(speech()), "--engine", "stub", "--srt", fixture(t), "-")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "1\n00:00:00,000 --> ") {
		t.Errorf("unexpected subtitles:\n%s", out)
	}
	if !strings.Contains(out, "hello wor") {
		t.Errorf("subtitle text missing:\n%s", out)
	}
}

func TestTranscribeBlank(t *testing.T) {
	out, err := run(t, nil, "--engine", "stub", fixture(t), "?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Silence\n" {
		t.Fatalf("output = %q, want one silence line", out)
	}
}

func TestTranscribeInvalidMode(t *testing.T) {
	if _, err := run(t, nil, "--engine", "stub", "--mode", "turbo", fixture(t), "?"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestUnknownEngine(t *testing.T) {
	if _, err := run(t, nil, "info", "--engine", "whisper", fixture(t)); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}
