package audio

import (
	"encoding/binary"
	"math"
)

// Float32ToBytes encodes float32 samples as little-endian IEEE 754 bytes, the
// wire format for both the resampler and the ASR transcription payload.
func Float32ToBytes(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}

// BytesToFloat32 decodes little-endian IEEE 754 bytes into float32 samples.
// Trailing bytes that do not form a full sample are ignored.
func BytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// DownmixToMono averages interleaved multi-channel samples into mono.
// Single-channel input is returned as-is.
func DownmixToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
