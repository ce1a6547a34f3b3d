package asr

import "encoding/binary"

// DecodePCM16 converts little-endian 16-bit samples. An odd trailing byte
// is dropped.
func DecodePCM16(pcm []byte) []int16 {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}
