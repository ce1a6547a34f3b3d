// Package audio loads PCM16 mono input for recognition sessions.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/youpy/go-wav"
)

const (
	// Stdin as a path reads raw PCM16 from standard input.
	Stdin = "-"
	// Blank as a path yields one second of silence.
	Blank = "?"
)

var ErrUnsupportedWAV = errors.New("audio: unsupported wav format")

// Load returns little-endian PCM16 for path. WAV files (by extension) are
// validated against sampleRate; any other file is taken as raw PCM16.
func Load(path string, sampleRate int, stdin io.Reader) ([]byte, error) {
	switch path {
	case Stdin:
		pcm, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("audio: read stdin: %w", err)
		}
		return pcm, nil
	case Blank:
		return make([]byte, 2*sampleRate), nil
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		samples, err := ReadWAV(f, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return EncodePCM16(samples), nil
	}
	return os.ReadFile(path)
}

// ReadWAV decodes a 16-bit PCM mono WAV stream recorded at sampleRate.
func ReadWAV(r interface {
	io.Reader
	io.ReaderAt
}, sampleRate int) ([]int16, error) {
	rd := wav.NewReader(r)
	format, err := rd.Format()
	if err != nil {
		return nil, fmt.Errorf("audio: wav format: %w", err)
	}
	switch {
	case format.AudioFormat != wav.AudioFormatPCM:
		return nil, fmt.Errorf("%w: audio format %d, want PCM", ErrUnsupportedWAV, format.AudioFormat)
	case format.NumChannels != 1:
		return nil, fmt.Errorf("%w: %d channels, want mono", ErrUnsupportedWAV, format.NumChannels)
	case format.BitsPerSample != 16:
		return nil, fmt.Errorf("%w: %d bits per sample, want 16", ErrUnsupportedWAV, format.BitsPerSample)
	case int(format.SampleRate) != sampleRate:
		return nil, fmt.Errorf("%w: sample rate %d, model expects %d", ErrUnsupportedWAV, format.SampleRate, sampleRate)
	}

	var out []int16
	for {
		samples, err := rd.ReadSamples()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("audio: read wav samples: %w", err)
		}
		for _, s := range samples {
			out = append(out, int16(s.Values[0]))
		}
	}
	return out, nil
}

// WriteWAV encodes samples as a 16-bit PCM mono WAV stream.
func WriteWAV(w io.Writer, samples []int16, sampleRate int) error {
	out := make([]wav.Sample, len(samples))
	for i, v := range samples {
		out[i] = wav.Sample{Values: [2]int{int(v), 0}}
	}
	return wav.NewWriter(w, uint32(len(out)), 1, uint32(sampleRate), 16).WriteSamples(out)
}

// EncodePCM16 is the inverse of asr.DecodePCM16.
func EncodePCM16(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}
