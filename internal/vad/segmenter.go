package vad

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ammosu/realtime-subtitle/internal/audio"
)

// SegmenterConfig tunes the speech/silence state machine.
type SegmenterConfig struct {
	Threshold       float32 // speech probability cutoff
	SilenceFrames   int     // consecutive silence sub-frames before flush
	MaxBufferFrames int     // force flush at this many buffered sub-frames
}

// SegmenterStats is a snapshot of segmenter progress, used by the health
// endpoint to detect a stalled segmenter.
type SegmenterStats struct {
	FramesProcessed uint64    `json:"frames_processed"`
	SpeechFrames    uint64    `json:"speech_frames"`
	SegmentsEmitted uint64    `json:"segments_emitted"`
	LastActivity    time.Time `json:"last_activity"`
}

// MetricsRecorder receives per-frame and per-segment observations.
type MetricsRecorder interface {
	RecordVADFrame(speech bool)
	RecordSegmentEmitted(durationSeconds float64)
}

// Segmenter classifies fixed 576-sample sub-frames with a recurrent scorer
// and assembles contiguous speech into bounded segments. All mutable state
// except the stats snapshot is owned by the Run goroutine.
type Segmenter struct {
	scorer   Scorer
	config   SegmenterConfig
	logger   *slog.Logger
	recorder MetricsRecorder

	// Run-goroutine state.
	leftover []float32
	buf      []float32
	silCnt   int

	mu    sync.RWMutex
	stats SegmenterStats
}

// NewSegmenter creates a Segmenter over the given scorer.
func NewSegmenter(logger *slog.Logger, scorer Scorer, config SegmenterConfig) *Segmenter {
	return &Segmenter{
		scorer: scorer,
		config: config,
		logger: logger,
	}
}

// SetMetrics attaches a metrics recorder. Must be called before Run.
func (s *Segmenter) SetMetrics(recorder MetricsRecorder) {
	s.recorder = recorder
}

// Run consumes 8000-sample chunks and emits speech segments until the context
// is cancelled or the chunk channel closes. A scorer error is fatal: the loop
// logs, stops and returns it, since per-frame retries cannot fix a broken
// model session. The recurrent scorer state is deliberately never reset
// between segments.
func (s *Segmenter) Run(ctx context.Context, chunks <-chan []float32, segments chan<- []float32) error {
	s.logger.Debug("Segmenter started",
		slog.Int("silence_frames", s.config.SilenceFrames),
		slog.Int("max_buffer_frames", s.config.MaxBufferFrames),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if err := s.processChunk(ctx, chunk, segments); err != nil {
				s.logger.Error("Segmenter stopping on inference error",
					slog.String("error", err.Error()),
				)
				return err
			}
		}
	}
}

// processChunk splits a chunk into sub-frames, carrying any remainder to the
// next chunk, and advances the state machine one sub-frame at a time.
func (s *Segmenter) processChunk(ctx context.Context, chunk []float32, segments chan<- []float32) error {
	data := chunk
	if len(s.leftover) > 0 {
		data = append(s.leftover, chunk...)
	}

	nFrames := len(data) / FrameSamples
	s.leftover = append([]float32(nil), data[nFrames*FrameSamples:]...)

	for i := 0; i < nFrames; i++ {
		frame := data[i*FrameSamples : (i+1)*FrameSamples]

		prob, err := s.scorer.Score(frame)
		if err != nil {
			return fmt.Errorf("failed to score frame: %w", err)
		}

		speech := prob >= s.config.Threshold
		s.recordFrame(speech)

		if speech {
			s.buf = append(s.buf, frame...)
			s.silCnt = 0
		} else if len(s.buf) > 0 {
			// Keep the trailing tail; it often carries breath and final
			// consonants the ASR needs.
			s.buf = append(s.buf, frame...)
			s.silCnt++
			if s.silCnt >= s.config.SilenceFrames {
				if err := s.flush(ctx, segments, "silence"); err != nil {
					return err
				}
			}
		}

		// Duration cap, independent of the silence trigger.
		if len(s.buf) >= s.config.MaxBufferFrames*FrameSamples {
			if err := s.flush(ctx, segments, "max_buffer"); err != nil {
				return err
			}
		}
	}

	return nil
}

// flush emits the accumulated buffer as one segment and clears it. The
// recurrent scorer state is left untouched.
func (s *Segmenter) flush(ctx context.Context, segments chan<- []float32, reason string) error {
	segment := make([]float32, len(s.buf))
	copy(segment, s.buf)
	s.buf = s.buf[:0]
	s.silCnt = 0

	s.logger.Info("Speech segment flushed",
		slog.String("reason", reason),
		slog.Float64("duration", float64(len(segment))/audio.TargetSampleRate),
	)

	select {
	case segments <- segment:
	case <-ctx.Done():
		return nil
	}

	s.mu.Lock()
	s.stats.SegmentsEmitted++
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordSegmentEmitted(float64(len(segment)) / audio.TargetSampleRate)
	}

	return nil
}

func (s *Segmenter) recordFrame(speech bool) {
	s.mu.Lock()
	s.stats.FramesProcessed++
	if speech {
		s.stats.SpeechFrames++
	}
	s.stats.LastActivity = time.Now()
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordVADFrame(speech)
	}
}

// GetStats returns a snapshot of segmenter progress.
func (s *Segmenter) GetStats() SegmenterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
