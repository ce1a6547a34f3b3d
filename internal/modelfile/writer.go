package modelfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// DefaultParams returns the parameters used by the reference exporter for
// 16 kHz models with the given vocabulary.
func DefaultParams(tokens []string) Params {
	return Params{
		BatchSize:     1,
		SegmentSize:   9,
		SegmentStep:   4,
		MelFeatures:   80,
		SampleRate:    16000,
		FrameShiftMs:  10,
		FrameLengthMs: 25,
		RoundPow2:     1,
		MelLow:        20,
		MelHigh:       0,
		SnipEdges:     0,
		BlankID:       0,
		Tokens:        tokens,
	}
}

// Encode writes info as a container without embedded networks. The Networks
// field is ignored.
func Encode(w io.Writer, info Info) error {
	if len(info.Language) > languageLen {
		return fmt.Errorf("modelfile: language %q longer than %d bytes", info.Language, languageLen)
	}
	if info.Kind == KindUnknown {
		info.Kind = KindLSTMTransducerStateless
	}

	var params bytes.Buffer
	params.WriteString(paramsMagic)
	p := info.Params
	for _, v := range []int32{
		p.BatchSize, p.SegmentSize, p.SegmentStep, p.MelFeatures, p.SampleRate,
		p.FrameShiftMs, p.FrameLengthMs, p.RoundPow2, p.MelLow, p.MelHigh, p.SnipEdges,
		int32(len(p.Tokens)), p.BlankID,
	} {
		binary.Write(&params, binary.LittleEndian, v)
	}
	for _, tok := range p.Tokens {
		binary.Write(&params, binary.LittleEndian, int32(len(tok)))
		params.WriteString(tok)
	}

	var header bytes.Buffer
	lang := make([]byte, languageLen)
	copy(lang, info.Language)
	header.Write(lang)
	binary.Write(&header, binary.LittleEndian, uint64(len(info.Name)))
	header.WriteString(info.Name)
	binary.Write(&header, binary.LittleEndian, uint64(len(info.Description)))
	header.WriteString(info.Description)
	binary.Write(&header, binary.LittleEndian, uint32(info.Kind))

	// magic + version + header size + header + params offset/size + network count
	paramsOffset := uint64(len(Magic)+4+8+header.Len()) + 8 + 8 + 8
	binary.Write(&header, binary.LittleEndian, paramsOffset)
	binary.Write(&header, binary.LittleEndian, uint64(params.Len()))
	binary.Write(&header, binary.LittleEndian, uint64(0))

	var out bytes.Buffer
	out.WriteString(Magic)
	binary.Write(&out, binary.LittleEndian, uint32(Version))
	binary.Write(&out, binary.LittleEndian, uint64(header.Len()))
	out.Write(header.Bytes())
	out.Write(params.Bytes())

	_, err := w.Write(out.Bytes())
	return err
}

// WriteFile encodes info into a new file at path.
func WriteFile(path string, info Info) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, info); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
