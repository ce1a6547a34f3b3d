// Package modelfile reads and writes the header of .april model containers.
//
// Only the metadata and the PARAMS block are interpreted; the embedded
// networks are opaque byte ranges owned by the recognition engine.
package modelfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// Magic opens every model container.
	Magic = "APRILMDL"
	// Version is the only container version understood.
	Version = 1

	paramsMagic = "PARAMS\x00\x00"

	languageLen   = 8
	maxNetworks   = 8
	maxStringLen  = 1 << 16
	maxTokenLen   = 4096
	paramsFields  = 13
	paramsMinSize = len(paramsMagic) + paramsFields*4
)

// Kind identifies the network topology stored in the container.
type Kind uint32

const (
	KindUnknown                 Kind = 0
	KindLSTMTransducerStateless Kind = 1
)

var (
	ErrBadMagic           = errors.New("modelfile: magic check failed")
	ErrUnsupportedVersion = errors.New("modelfile: unsupported version")
	ErrCorrupt            = errors.New("modelfile: corrupt container")
)

// Section is a byte range inside the container.
type Section struct {
	Offset uint64
	Size   uint64
}

// Params mirrors the PARAMS block. All values are little-endian int32 on disk.
type Params struct {
	BatchSize     int32
	SegmentSize   int32
	SegmentStep   int32
	MelFeatures   int32
	SampleRate    int32
	FrameShiftMs  int32
	FrameLengthMs int32
	RoundPow2     int32
	MelLow        int32
	MelHigh       int32
	SnipEdges     int32
	BlankID       int32

	// Tokens is the vocabulary; its length is the token count.
	Tokens []string
}

// Info is the decoded model header.
type Info struct {
	Version     uint32
	Language    string
	Name        string
	Description string
	Kind        Kind
	Params      Params
	Networks    []Section
}

// Read opens path and decodes its header.
func Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a container from r.
func Decode(r io.ReadSeeker) (Info, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return Info{}, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Info{}, err
	}
	fileSize := uint64(size)

	rd := &reader{r: bufio.NewReader(r)}
	magic := rd.bytes(len(Magic))
	if rd.err != nil || string(magic) != Magic {
		return Info{}, ErrBadMagic
	}

	var info Info
	info.Version = rd.u32()
	if rd.err == nil && info.Version != Version {
		return Info{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, info.Version)
	}
	_ = rd.u64() // header size, informational

	info.Language = string(bytes.TrimRight(rd.bytes(languageLen), "\x00"))
	info.Name = rd.str()
	info.Description = rd.str()

	info.Kind = Kind(rd.u32())
	paramsOffset := rd.u64()
	paramsSize := rd.u64()
	numNetworks := rd.u64()
	if rd.err != nil {
		return Info{}, fmt.Errorf("%w: header: %v", ErrCorrupt, rd.err)
	}
	if info.Kind <= KindUnknown || info.Kind > KindLSTMTransducerStateless {
		return Info{}, fmt.Errorf("%w: unexpected model kind %d", ErrCorrupt, info.Kind)
	}
	if paramsSize < uint64(paramsMinSize) || !inBounds(paramsOffset, paramsSize, fileSize) {
		return Info{}, fmt.Errorf("%w: params out of bounds of file", ErrCorrupt)
	}
	if numNetworks > maxNetworks {
		return Info{}, fmt.Errorf("%w: too many networks %d", ErrCorrupt, numNetworks)
	}
	for i := uint64(0); i < numNetworks; i++ {
		s := Section{Offset: rd.u64(), Size: rd.u64()}
		if rd.err != nil {
			return Info{}, fmt.Errorf("%w: network table: %v", ErrCorrupt, rd.err)
		}
		if !inBounds(s.Offset, s.Size, fileSize) {
			return Info{}, fmt.Errorf("%w: network %d out of bounds of file", ErrCorrupt, i)
		}
		info.Networks = append(info.Networks, s)
	}

	if _, err := r.Seek(int64(paramsOffset), io.SeekStart); err != nil {
		return Info{}, err
	}
	params, err := decodeParams(io.LimitReader(r, int64(paramsSize)))
	if err != nil {
		return Info{}, err
	}
	info.Params = params
	return info, nil
}

// inBounds reports whether [off, off+size) lies within a file of fileSize
// bytes without overflowing.
func inBounds(off, size, fileSize uint64) bool {
	return off <= fileSize && size <= fileSize-off
}

func decodeParams(r io.Reader) (Params, error) {
	rd := &reader{r: bufio.NewReader(r)}
	if magic := rd.bytes(len(paramsMagic)); rd.err != nil || string(magic) != paramsMagic {
		return Params{}, fmt.Errorf("%w: params magic check failed", ErrCorrupt)
	}

	var p Params
	p.BatchSize = rd.i32()
	p.SegmentSize = rd.i32()
	p.SegmentStep = rd.i32()
	p.MelFeatures = rd.i32()
	p.SampleRate = rd.i32()
	p.FrameShiftMs = rd.i32()
	p.FrameLengthMs = rd.i32()
	p.RoundPow2 = rd.i32()
	p.MelLow = rd.i32()
	p.MelHigh = rd.i32()
	p.SnipEdges = rd.i32()
	tokenCount := rd.i32()
	p.BlankID = rd.i32()
	if rd.err != nil {
		return Params{}, fmt.Errorf("%w: params: %v", ErrCorrupt, rd.err)
	}
	if err := p.validate(tokenCount); err != nil {
		return Params{}, err
	}

	p.Tokens = make([]string, 0, tokenCount)
	for i := int32(0); i < tokenCount; i++ {
		n := rd.i32()
		if rd.err == nil && (n < 0 || n > maxTokenLen) {
			return Params{}, fmt.Errorf("%w: token %d has length %d", ErrCorrupt, i, n)
		}
		piece := rd.bytes(int(n))
		if rd.err != nil {
			return Params{}, fmt.Errorf("%w: token table: %v", ErrCorrupt, rd.err)
		}
		p.Tokens = append(p.Tokens, string(piece))
	}
	return p, nil
}

func (p Params) validate(tokenCount int32) error {
	check := func(ok bool, what string) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: params: %s", ErrCorrupt, what)
	}
	for _, err := range []error{
		check(p.BatchSize == 1, "batch_size must be 1"),
		check(p.SegmentSize > 0 && p.SegmentSize < 100, "segment_size out of range"),
		check(p.SegmentStep > 0 && p.SegmentStep <= p.SegmentSize, "segment_step out of range"),
		check(p.MelFeatures > 0 && p.MelFeatures < 256, "mel_features out of range"),
		check(p.SampleRate > 0 && p.SampleRate < 144000, "sample_rate out of range"),
		check(tokenCount > 0 && tokenCount < 16384, "token_count out of range"),
		check(p.BlankID >= 0 && p.BlankID < tokenCount, "blank_id out of range"),
		check(p.FrameShiftMs > 0 && p.FrameShiftMs <= p.FrameLengthMs, "frame_shift_ms out of range"),
		check(p.FrameLengthMs > 0 && p.FrameLengthMs <= 5000, "frame_length_ms out of range"),
		check(p.MelLow > 0 && p.MelLow < p.SampleRate, "mel_low out of range"),
		check(p.MelHigh == 0 || p.MelHigh > p.MelLow, "mel_high out of range"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// reader accumulates the first error so decoding reads linearly.
type reader struct {
	r   io.Reader
	err error
}

func (rd *reader) bytes(n int) []byte {
	if rd.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		rd.err = err
		return nil
	}
	return buf
}

func (rd *reader) u32() uint32 {
	b := rd.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (rd *reader) i32() int32 { return int32(rd.u32()) }

func (rd *reader) u64() uint64 {
	b := rd.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (rd *reader) str() string {
	n := rd.u64()
	if rd.err != nil {
		return ""
	}
	if n > maxStringLen {
		rd.err = fmt.Errorf("string of %d bytes exceeds limit", n)
		return ""
	}
	return string(rd.bytes(int(n)))
}
