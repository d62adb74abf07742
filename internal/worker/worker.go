// Package worker wires the capture, segmentation, recognition and translation
// stages into one pipeline and drives it from the stdin/stdout control
// protocol.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ammosu/realtime-subtitle/internal/audio"
	"github.com/ammosu/realtime-subtitle/internal/config"
	"github.com/ammosu/realtime-subtitle/internal/ipc"
	"github.com/ammosu/realtime-subtitle/internal/languages"
	"github.com/ammosu/realtime-subtitle/internal/metrics"
	"github.com/ammosu/realtime-subtitle/internal/server"
	"github.com/ammosu/realtime-subtitle/internal/textnorm"
	"github.com/ammosu/realtime-subtitle/internal/transcription"
	"github.com/ammosu/realtime-subtitle/internal/translation"
	"github.com/ammosu/realtime-subtitle/internal/vad"
)

const (
	// commandPollInterval is how often the control loop checks for commands.
	commandPollInterval = 100 * time.Millisecond

	// Join timeouts for the pipeline goroutines at shutdown. A stage stuck
	// past its timeout is abandoned and logged rather than hanging exit.
	segmenterJoinTimeout     = 3 * time.Second
	transcriptionJoinTimeout = 5 * time.Second

	chunkQueueDepth   = 32
	segmentQueueDepth = 16
)

// Worker owns the subtitle pipeline: audio chunks flow from the capture
// source through the voice activity segmenter into the recognition loop,
// whose transcripts feed the translation debouncer. Events go out on the
// event writer; commands come in through the command reader.
type Worker struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	events   *ipc.EventWriter
	commands *ipc.CommandReader

	chunks   chan []float32
	segments chan []float32

	segmenter *vad.Segmenter
	asrClient *transcription.Client
	asrLoop   *transcription.Loop
	debouncer *translation.Debouncer

	// sourceFactory builds capture sources by kind; tests substitute it.
	sourceFactory func(kind string) audio.Source

	mu         sync.RWMutex
	source     audio.Source
	sourceKind string
	capturing  bool

	// stopMu fences chunk emission against teardown. A capture consumer that
	// outlives its stop window could otherwise hit the closed chunk channel.
	stopMu  sync.RWMutex
	stopped bool
}

// New builds the pipeline from configuration. The scorer carries the VAD
// model session; the translator is the chat completion client. Neither is
// started until Run.
func New(logger *slog.Logger, cfg *config.Config, scorer vad.Scorer,
	translator translation.Translator, events *ipc.EventWriter, commands *ipc.CommandReader) (*Worker, error) {

	normalizer, err := textnorm.NewNormalizer()
	if err != nil {
		return nil, fmt.Errorf("failed to create text normalizer: %w", err)
	}

	asrClient, err := transcription.NewClient(logger, transcription.Config{
		BaseURL: cfg.ASR.Server,
		Timeout: cfg.ASR.GetTimeoutDuration(),
	}, normalizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcription client: %w", err)
	}

	direction := cfg.Translation.GetDirection()

	w := &Worker{
		cfg:        cfg,
		logger:     logger,
		events:     events,
		commands:   commands,
		chunks:     make(chan []float32, chunkQueueDepth),
		segments:   make(chan []float32, segmentQueueDepth),
		asrClient:  asrClient,
		sourceKind: cfg.Audio.Source,
	}

	w.segmenter = vad.NewSegmenter(logger, scorer, vad.SegmenterConfig{
		Threshold:       cfg.VAD.Threshold,
		SilenceFrames:   cfg.VAD.SilenceFrames,
		MaxBufferFrames: cfg.VAD.MaxBufferFrames,
	})

	w.debouncer = translation.NewDebouncer(logger, translator, direction,
		cfg.Translation.GetDebounceDuration(), w.onTranslation)

	w.asrLoop = transcription.NewLoop(logger, asrClient, direction, w.onTranscript)

	w.sourceFactory = w.newSource
	w.source = w.sourceFactory(cfg.Audio.Source)

	return w, nil
}

// SetMetrics attaches Prometheus metrics to every pipeline stage.
func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
	w.segmenter.SetMetrics(m)
	w.asrClient.SetMetrics(m)
	w.asrLoop.SetMetrics(m)
	w.debouncer.SetMetrics(m)
}

// newSource constructs a capture source of the given kind.
func (w *Worker) newSource(kind string) audio.Source {
	if kind == config.SourceMicrophone {
		return audio.NewMicrophoneSource(w.logger, w.cfg.Audio.MicDevice)
	}
	return audio.NewMonitorSource(w.logger, w.cfg.Audio.MonitorDevice)
}

// onChunk is the capture callback. It must not block the audio path, so a
// full queue drops the chunk. Chunks arriving after teardown are discarded.
func (w *Worker) onChunk(chunk []float32) {
	w.stopMu.RLock()
	defer w.stopMu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.chunks <- chunk:
		if w.metrics != nil {
			w.metrics.RecordChunkCaptured()
		}
	default:
		if w.metrics != nil {
			w.metrics.RecordChunkDropped()
		}
		w.logger.Warn("Dropped audio chunk, pipeline backlogged")
	}
}

// onTranscript receives each new transcript from the recognition loop. The
// original text goes out immediately so the subtitle appears while the
// translation is still in flight.
func (w *Worker) onTranscript(text string) {
	w.emit(ipc.TextEvent(text, ""), "text")
	w.debouncer.Update(text)
}

// onTranslation receives each delivered translation.
func (w *Worker) onTranslation(original, translated string) {
	w.emit(ipc.TextEvent(original, translated), "text")
}

func (w *Worker) emit(ev ipc.Event, eventType string) {
	if err := w.events.Write(ev); err != nil {
		w.logger.Error("Failed to write event", slog.String("error", err.Error()))
		return
	}
	if w.metrics != nil {
		w.metrics.RecordEventEmitted(eventType)
	}
}

// Run starts the pipeline and processes commands until a stop command, the
// context is cancelled, or a pipeline stage fails.
func (w *Worker) Run(ctx context.Context) error {
	pipelineCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	segmenterErr := make(chan error, 1)
	segmenterExited := make(chan struct{})
	go func() {
		defer close(segmenterExited)
		segmenterErr <- w.segmenter.Run(pipelineCtx, w.chunks, w.segments)
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		w.asrLoop.Run(pipelineCtx, w.segments)
	}()

	w.mu.Lock()
	source := w.source
	w.mu.Unlock()
	if err := source.Start(w.onChunk); err != nil {
		cancel()
		return fmt.Errorf("failed to start audio capture: %w", err)
	}
	w.setCapturing(true)

	w.logger.Info("Worker pipeline running",
		slog.String("source", source.Name()),
		slog.String("direction", w.debouncer.Direction().String()),
	)

	// Tell the presentation layer the starting state.
	w.emit(ipc.DirectionEvent(w.debouncer.Direction().String()), "direction")
	w.emit(ipc.SourceEvent(source.Name()), "source")

	err := w.controlLoop(ctx, segmenterErr)
	w.teardown(cancel, segmenterExited, loopDone)
	return err
}

// controlLoop polls the command queue until told to stop.
func (w *Worker) controlLoop(ctx context.Context, segmenterErr <-chan error) error {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	cmdErrs := w.commands.Err()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping on context cancellation")
			return nil
		case err := <-segmenterErr:
			if err != nil {
				return fmt.Errorf("segmenter failed: %w", err)
			}
			return nil
		case parseErr, ok := <-cmdErrs:
			if !ok {
				// Command stream closed: the controlling process is gone.
				w.logger.Info("Command stream closed, stopping")
				return nil
			}
			w.logger.Warn("Ignoring malformed command",
				slog.String("error", parseErr.Error()))
		case <-ticker.C:
			for {
				cmd, ok := w.commands.Poll()
				if !ok {
					break
				}
				if stop := w.handleCommand(cmd); stop {
					return nil
				}
			}
		}
	}
}

// handleCommand executes one control command. Returns true for stop.
func (w *Worker) handleCommand(cmd ipc.Command) bool {
	w.logger.Info("Processing command", slog.String("command", cmd.String()))
	if w.metrics != nil {
		w.metrics.RecordCommandProcessed(cmd.Name)
	}

	switch cmd.Name {
	case ipc.CmdStop:
		return true

	case ipc.CmdToggle:
		direction := w.debouncer.Toggle()
		w.asrLoop.SetDirection(direction)
		w.emit(ipc.DirectionEvent(direction.String()), "direction")

	case ipc.CmdSetDirection:
		direction := languages.ParseDirection(cmd.Direction)
		w.debouncer.SetDirection(direction)
		w.asrLoop.SetDirection(direction)
		w.emit(ipc.DirectionEvent(direction.String()), "direction")

	case ipc.CmdSwitchSource:
		w.switchSource()
	}

	return false
}

// switchSource stops the running capture source and starts the other kind.
// If the new source fails to start, capture falls back to the previous kind
// so the worker never goes silently deaf.
func (w *Worker) switchSource() {
	w.mu.Lock()
	oldKind := w.sourceKind
	oldSource := w.source
	w.mu.Unlock()

	newKind := config.SourceMicrophone
	if oldKind == config.SourceMicrophone {
		newKind = config.SourceMonitor
	}

	oldSource.Stop()

	newSource := w.sourceFactory(newKind)
	if err := newSource.Start(w.onChunk); err != nil {
		w.logger.Error("Failed to start new capture source, reverting",
			slog.String("source", newKind),
			slog.String("error", err.Error()))

		revert := w.sourceFactory(oldKind)
		if err := revert.Start(w.onChunk); err != nil {
			w.logger.Error("Failed to restart previous capture source",
				slog.String("source", oldKind),
				slog.String("error", err.Error()))
			w.setCapturing(false)
			return
		}
		w.mu.Lock()
		w.source = revert
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.source = newSource
	w.sourceKind = newKind
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.RecordSourceSwitch()
	}
	w.logger.Info("Switched capture source",
		slog.String("from", oldKind),
		slog.String("to", newKind))
	w.emit(ipc.SourceEvent(newKind), "source")
}

// teardown stops the stages in dependency order: capture first so no new
// chunks arrive, then the segmenter and recognition loop drain out, then the
// debouncer drops whatever is still pending.
func (w *Worker) teardown(cancel context.CancelFunc, segmenterExited <-chan struct{}, loopDone <-chan struct{}) {
	w.logger.Info("Worker shutting down")

	w.mu.Lock()
	source := w.source
	w.mu.Unlock()
	source.Stop()
	w.setCapturing(false)

	// Taking the write lock waits out any emission already in flight, and
	// stopped turns later callbacks into no-ops before the channel closes.
	w.stopMu.Lock()
	w.stopped = true
	w.stopMu.Unlock()
	close(w.chunks)

	select {
	case <-segmenterExited:
		// Safe to close only once the segmenter can no longer send.
		close(w.segments)
	case <-time.After(segmenterJoinTimeout):
		w.logger.Warn("Segmenter did not stop in time, abandoning",
			slog.Duration("timeout", segmenterJoinTimeout))
		cancel()
	}

	select {
	case <-loopDone:
	case <-time.After(transcriptionJoinTimeout):
		w.logger.Warn("Transcription loop did not stop in time, abandoning",
			slog.Duration("timeout", transcriptionJoinTimeout))
		cancel()
	}

	w.debouncer.Shutdown()

	w.logger.Info("Worker stopped")
}

func (w *Worker) setCapturing(capturing bool) {
	w.mu.Lock()
	w.capturing = capturing
	w.mu.Unlock()
}

// Status implements server.StatusProvider.
func (w *Worker) Status() server.PipelineStatus {
	w.mu.RLock()
	capturing := w.capturing
	sourceKind := w.sourceKind
	w.mu.RUnlock()

	return server.PipelineStatus{
		Capturing:   capturing,
		Source:      sourceKind,
		Direction:   w.debouncer.Direction().String(),
		Segmenter:   w.segmenter.GetStats(),
		Transcriber: w.asrClient.GetStats(),
		Loop:        w.asrLoop.GetStats(),
		Debouncer:   w.debouncer.GetStats(),
	}
}
