package transcription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/ammosu/realtime-subtitle/internal/languages"
)

// MinSegmentSamples is the shortest segment worth recognizing. Anything
// under 125ms at 16kHz is a click or a breath, not speech.
const MinSegmentSamples = 2000

// Loop consumes speech segments and runs them through the recognition
// service one at a time. Sequential processing keeps subtitles in utterance
// order; when a request times out, the segments that queued up behind it
// are dropped rather than recognized late.
type Loop struct {
	client       *Client
	logger       *slog.Logger
	onTranscript func(text string)
	recorder     MetricsRecorder

	direction languages.Direction
	lastText  string
	dirMu     sync.RWMutex

	// Statistics
	segmentsReceived  uint64
	segmentsDiscarded uint64
	transcripts       uint64
	duplicatesDropped uint64
	backlogDropped    uint64

	statsMu sync.RWMutex
}

// LoopStats represents recognition loop statistics
type LoopStats struct {
	SegmentsReceived  uint64 `json:"segments_received"`
	SegmentsDiscarded uint64 `json:"segments_discarded"`
	Transcripts       uint64 `json:"transcripts"`
	DuplicatesDropped uint64 `json:"duplicates_dropped"`
	BacklogDropped    uint64 `json:"backlog_dropped"`
}

// NewLoop creates a recognition loop. onTranscript is called with each new
// transcript from the loop goroutine.
func NewLoop(logger *slog.Logger, client *Client, direction languages.Direction, onTranscript func(text string)) *Loop {
	return &Loop{
		client:       client,
		logger:       logger,
		onTranscript: onTranscript,
		direction:    direction,
	}
}

// SetMetrics attaches a metrics recorder.
func (l *Loop) SetMetrics(recorder MetricsRecorder) {
	l.recorder = recorder
}

// SetDirection changes the language hint sent with recognition requests and
// forgets the previous transcript so the first utterance in the new language
// is never mistaken for a duplicate.
func (l *Loop) SetDirection(direction languages.Direction) {
	l.dirMu.Lock()
	defer l.dirMu.Unlock()
	l.direction = direction
	l.lastText = ""
}

// Run processes segments until the channel closes or the context is
// cancelled. Recognition errors are logged and skipped; only context
// cancellation ends the loop early.
func (l *Loop) Run(ctx context.Context, segments <-chan []float32) error {
	l.logger.Info("Transcription loop started",
		slog.Int("min_segment_samples", MinSegmentSamples))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case segment, ok := <-segments:
			if !ok {
				l.logger.Info("Transcription loop stopped, segment channel closed")
				return nil
			}
			l.processSegment(ctx, segment, segments)
		}
	}
}

func (l *Loop) processSegment(ctx context.Context, segment []float32, segments <-chan []float32) {
	l.statsMu.Lock()
	l.segmentsReceived++
	l.statsMu.Unlock()

	if len(segment) < MinSegmentSamples {
		l.statsMu.Lock()
		l.segmentsDiscarded++
		l.statsMu.Unlock()
		l.logger.Debug("Discarded short segment",
			slog.Int("samples", len(segment)))
		return
	}

	l.dirMu.RLock()
	direction := l.direction
	l.dirMu.RUnlock()

	result, err := l.client.Transcribe(ctx, segment, direction.Source)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			l.drainBacklog(segments)
			return
		}
		l.logger.Error("Transcription failed",
			slog.Int("samples", len(segment)),
			slog.String("error", err.Error()))
		return
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}

	l.dirMu.Lock()
	if text == l.lastText {
		l.dirMu.Unlock()
		l.statsMu.Lock()
		l.duplicatesDropped++
		l.statsMu.Unlock()
		l.logger.Debug("Dropped duplicate transcript")
		return
	}
	l.lastText = text
	l.dirMu.Unlock()

	l.statsMu.Lock()
	l.transcripts++
	l.statsMu.Unlock()

	l.logger.Debug("Transcript ready",
		slog.String("language", result.Language),
		slog.Int("chars", len(text)))

	l.onTranscript(text)
}

// drainBacklog empties whatever segments queued up behind a timed-out
// request. Recognizing them now would put stale text on screen, so they
// are dropped and the loop resumes with live audio.
func (l *Loop) drainBacklog(segments <-chan []float32) {
	dropped := 0
	for {
		select {
		case _, ok := <-segments:
			if !ok {
				l.recordBacklogDrop(dropped)
				return
			}
			dropped++
		default:
			l.recordBacklogDrop(dropped)
			return
		}
	}
}

func (l *Loop) recordBacklogDrop(dropped int) {
	l.statsMu.Lock()
	l.backlogDropped += uint64(dropped)
	l.statsMu.Unlock()

	if l.recorder != nil {
		l.recorder.RecordBacklogDropped(dropped)
	}

	l.logger.Warn("Dropped segment backlog after timeout",
		slog.Int("segments", dropped))
}

// GetStats returns current loop statistics
func (l *Loop) GetStats() LoopStats {
	l.statsMu.RLock()
	defer l.statsMu.RUnlock()

	return LoopStats{
		SegmentsReceived:  l.segmentsReceived,
		SegmentsDiscarded: l.segmentsDiscarded,
		Transcripts:       l.transcripts,
		DuplicatesDropped: l.duplicatesDropped,
		BacklogDropped:    l.backlogDropped,
	}
}
