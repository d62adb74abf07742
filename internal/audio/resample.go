package audio

import (
	"bytes"
	"fmt"

	"github.com/zaf/resample"
)

// Pipeline-wide audio constants.
const (
	// TargetSampleRate is the sample rate every downstream stage expects.
	TargetSampleRate = 16000

	// ChunkSamples is the fixed chunk size delivered to the segmenter:
	// 8000 samples = 0.5s at 16kHz.
	ChunkSamples = 8000
)

// Assembler converts native-rate mono float32 audio into fixed ChunkSamples
// chunks at TargetSampleRate. It runs on the capture consumer goroutine, never
// inside the realtime device callback. Not safe for concurrent use.
type Assembler struct {
	nativeRate int
	emit       func(chunk []float32)

	resampler *resample.Resampler // nil when nativeRate == TargetSampleRate
	resampled bytes.Buffer
	buf       []float32
}

// NewAssembler creates an Assembler that delivers chunks through emit.
// Resampling uses band-limited interpolation at high quality; a native rate
// already at the target bypasses the resampler entirely.
func NewAssembler(nativeRate int, emit func(chunk []float32)) (*Assembler, error) {
	if nativeRate <= 0 {
		return nil, fmt.Errorf("native sample rate must be positive, got %d", nativeRate)
	}
	if emit == nil {
		return nil, fmt.Errorf("emit callback cannot be nil")
	}

	a := &Assembler{
		nativeRate: nativeRate,
		emit:       emit,
	}

	if nativeRate != TargetSampleRate {
		r, err := resample.New(&a.resampled, float64(nativeRate), float64(TargetSampleRate),
			1, resample.F32, resample.HighQ)
		if err != nil {
			return nil, fmt.Errorf("failed to create resampler %d->%d: %w",
				nativeRate, TargetSampleRate, err)
		}
		a.resampler = r
	}

	return a, nil
}

// Push feeds a block of native-rate mono samples. Completed 8000-sample chunks
// are delivered to emit; any remainder is retained for the next call.
func (a *Assembler) Push(samples []float32) error {
	if len(samples) == 0 {
		return nil
	}

	if a.resampler == nil {
		a.buf = append(a.buf, samples...)
	} else {
		if _, err := a.resampler.Write(Float32ToBytes(samples)); err != nil {
			return fmt.Errorf("resample write failed: %w", err)
		}
		a.buf = append(a.buf, BytesToFloat32(a.resampled.Bytes())...)
		a.resampled.Reset()
	}

	for len(a.buf) >= ChunkSamples {
		chunk := make([]float32, ChunkSamples)
		copy(chunk, a.buf[:ChunkSamples])
		a.buf = a.buf[ChunkSamples:]
		a.emit(chunk)
	}

	return nil
}

// Pending returns the number of accumulated 16kHz samples not yet emitted.
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Close releases the resampler. Remaining buffered samples are dropped; a
// sub-chunk tail has no value once capture stops.
func (a *Assembler) Close() error {
	a.buf = nil
	if a.resampler != nil {
		if err := a.resampler.Close(); err != nil {
			return fmt.Errorf("failed to close resampler: %w", err)
		}
	}
	return nil
}
