package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// FrameSamples is the scoring frame size: 576 samples = 36ms at 16kHz.
	FrameSamples = 576

	// stateSize is the width of the recurrent hidden/cell tensors (1x1x128).
	stateSize = 128
)

// Scorer produces a speech probability for one fixed-size frame. A recurrent
// implementation carries state between calls, so a Scorer must only ever be
// used from a single goroutine.
type Scorer interface {
	Score(frame []float32) (float32, error)
	Close() error
}

var ortInit sync.Once

// SileroScorer scores frames with the Silero VAD ONNX model. The hidden and
// cell state tensors persist across calls and across segment flushes, so
// speech immediately following a flush is not mis-classified as
// segment-initial silence.
type SileroScorer struct {
	session *ort.AdvancedSession

	input *ort.Tensor[float32]
	prob  *ort.Tensor[float32]
	h     *ort.Tensor[float32]
	c     *ort.Tensor[float32]
	hn    *ort.Tensor[float32]
	cn    *ort.Tensor[float32]
}

// NewSileroScorer loads the model at modelPath. The ONNX runtime environment
// is initialized once per process and kept for its lifetime.
func NewSileroScorer(modelPath string) (*SileroScorer, error) {
	var initErr error
	ortInit.Do(func() {
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", initErr)
	}

	s := &SileroScorer{}

	var err error
	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, FrameSamples))
	if err == nil {
		s.prob, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	}
	if err == nil {
		s.h, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, stateSize))
	}
	if err == nil {
		s.c, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, stateSize))
	}
	if err == nil {
		s.hn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, stateSize))
	}
	if err == nil {
		s.cn, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, stateSize))
	}
	if err != nil {
		s.destroyTensors()
		return nil, fmt.Errorf("failed to allocate VAD tensors: %w", err)
	}

	s.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input", "h", "c"},
		[]string{"speech_probs", "hn", "cn"},
		[]ort.ArbitraryTensor{s.input, s.h, s.c},
		[]ort.ArbitraryTensor{s.prob, s.hn, s.cn},
		nil)
	if err != nil {
		s.destroyTensors()
		return nil, fmt.Errorf("failed to load VAD model %s: %w", modelPath, err)
	}

	return s, nil
}

// Score runs one inference step and advances the recurrent state.
func (s *SileroScorer) Score(frame []float32) (float32, error) {
	if len(frame) != FrameSamples {
		return 0, fmt.Errorf("expected %d samples, got %d", FrameSamples, len(frame))
	}

	copy(s.input.GetData(), frame)

	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("VAD inference failed: %w", err)
	}

	// Feed the new state back for the next frame.
	copy(s.h.GetData(), s.hn.GetData())
	copy(s.c.GetData(), s.cn.GetData())

	return s.prob.GetData()[0], nil
}

// Close releases the session and its tensors.
func (s *SileroScorer) Close() error {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	s.destroyTensors()
	return nil
}

func (s *SileroScorer) destroyTensors() {
	for _, t := range []*ort.Tensor[float32]{s.input, s.prob, s.h, s.c, s.hn, s.cn} {
		if t != nil {
			t.Destroy()
		}
	}
	s.input, s.prob, s.h, s.c, s.hn, s.cn = nil, nil, nil, nil, nil, nil
}
