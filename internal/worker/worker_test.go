package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ammosu/realtime-subtitle/internal/audio"
	"github.com/ammosu/realtime-subtitle/internal/config"
	"github.com/ammosu/realtime-subtitle/internal/ipc"
	"github.com/ammosu/realtime-subtitle/internal/languages"
	"github.com/ammosu/realtime-subtitle/internal/transcription"
	"github.com/ammosu/realtime-subtitle/internal/translation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeSource is an in-memory capture source; push delivers chunks to the
// worker's callback as the real device would.
type fakeSource struct {
	name string

	mu        sync.Mutex
	callback  func(chunk []float32)
	started   bool
	failStart bool
}

func (f *fakeSource) Start(callback func(chunk []float32)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStart {
		return errors.New("no capture device")
	}
	f.callback = callback
	f.started = true
	return nil
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeSource) push(chunk []float32) {
	f.mu.Lock()
	callback := f.callback
	f.mu.Unlock()
	if callback != nil {
		callback(chunk)
	}
}

// eventCollector implements io.Writer for the event stream and decodes each
// newline-delimited event as it arrives.
type eventCollector struct {
	mu     sync.Mutex
	events []ipc.Event
}

func (c *eventCollector) Write(p []byte) (int, error) {
	var ev ipc.Event
	if err := json.Unmarshal(bytes.TrimSpace(p), &ev); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return len(p), nil
}

func (c *eventCollector) snapshot() []ipc.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ipc.Event(nil), c.events...)
}

func (c *eventCollector) waitFor(t *testing.T, match func(ipc.Event) bool, what string) ipc.Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		for _, ev := range c.snapshot() {
			if match(ev) {
				return ev
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, events: %+v", what, c.snapshot())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// autoTranslator completes immediately with a marked translation.
type autoTranslator struct{}

func (autoTranslator) Translate(_ context.Context, text string, _ languages.Direction) (translation.Result, error) {
	return translation.Result{Corrected: text, Translated: "T:" + text}, nil
}

// stubScorer treats any frame with nonzero mean as speech.
type stubScorer struct{}

func (stubScorer) Score(frame []float32) (float32, error) {
	var sum float32
	for _, s := range frame {
		sum += s
	}
	if sum/float32(len(frame)) > 0.25 {
		return 0.9, nil
	}
	return 0.1, nil
}

func (stubScorer) Close() error { return nil }

type testHarness struct {
	worker   *Worker
	source   *fakeSource
	events   *eventCollector
	commands *io.PipeWriter
	done     chan error
}

func newHarness(t *testing.T, cfg *config.Config) *testHarness {
	t.Helper()

	events := &eventCollector{}
	pr, pw := io.Pipe()

	w, err := New(testLogger(), cfg, stubScorer{}, autoTranslator{},
		ipc.NewEventWriter(events), ipc.NewCommandReader(pr))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	sources := map[string]*fakeSource{}
	w.sourceFactory = func(kind string) audio.Source {
		src := &fakeSource{name: kind}
		sources[kind] = src
		return src
	}
	initial := &fakeSource{name: cfg.Audio.Source}
	sources[cfg.Audio.Source] = initial
	w.source = initial

	return &testHarness{
		worker:   w,
		source:   initial,
		events:   events,
		commands: pw,
		done:     make(chan error, 1),
	}
}

func (h *testHarness) run() {
	go func() {
		h.done <- h.worker.Run(context.Background())
	}()
}

func (h *testHarness) sendCommand(t *testing.T, cmd string) {
	t.Helper()
	if _, err := io.WriteString(h.commands, cmd+"\n"); err != nil {
		t.Fatalf("failed to send command %q: %v", cmd, err)
	}
}

func (h *testHarness) stop(t *testing.T) {
	t.Helper()
	h.sendCommand(t, "stop")
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func TestWorkerCommands(t *testing.T) {
	cfg := config.Default()
	h := newHarness(t, cfg)
	h.run()

	// Startup announces direction and source.
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Direction) == "en→zh"
	}, "initial direction event")
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Source) == "monitor"
	}, "initial source event")

	h.sendCommand(t, "toggle")
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Direction) == "zh→en"
	}, "toggled direction event")

	h.sendCommand(t, "set_direction:ja→en")
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Direction) == "ja→en"
	}, "set_direction event")

	h.sendCommand(t, "switch_source")
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Source) == "mic"
	}, "source switch event")

	// Malformed commands are ignored, the worker keeps running.
	h.sendCommand(t, "bogus")

	status := h.worker.Status()
	if !status.Capturing || status.Source != "mic" || status.Direction != "ja→en" {
		t.Errorf("status = %+v, want capturing on mic with ja→en", status)
	}

	h.stop(t)

	if h.source.running() {
		t.Error("initial source still running after switch and stop")
	}
}

func TestWorkerPipelineEndToEnd(t *testing.T) {
	asr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transcription.Result{Language: "english", Text: "hello world."})
	}))
	defer asr.Close()

	cfg := config.Default()
	cfg.ASR.Server = asr.URL
	cfg.Translation.DebounceMS = 20

	h := newHarness(t, cfg)
	h.run()

	// Wait until capture is live before pushing audio.
	deadline := time.Now().Add(5 * time.Second)
	for !h.source.running() {
		if time.Now().After(deadline) {
			t.Fatal("capture never started")
		}
		time.Sleep(10 * time.Millisecond)
	}

	speech := make([]float32, audio.ChunkSamples)
	for i := range speech {
		speech[i] = 1
	}
	silence := make([]float32, audio.ChunkSamples)

	// 2s of speech then 1s of silence: one segment, one transcript.
	for i := 0; i < 4; i++ {
		h.source.push(speech)
	}
	h.source.push(silence)
	h.source.push(silence)

	// The original text arrives first, without a translation.
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return ev.IsText() && str(ev.Original) == "hello world." && str(ev.Translated) == ""
	}, "untranslated transcript event")

	// The translated update follows once the debouncer dispatches.
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return ev.IsText() && str(ev.Translated) == "T:hello world."
	}, "translated transcript event")

	status := h.worker.Status()
	if status.Segmenter.SegmentsEmitted != 1 {
		t.Errorf("segments emitted = %d, want 1", status.Segmenter.SegmentsEmitted)
	}
	if status.Loop.Transcripts != 1 {
		t.Errorf("transcripts = %d, want 1", status.Loop.Transcripts)
	}

	h.stop(t)
}

func TestWorkerIgnoresChunksAfterStop(t *testing.T) {
	cfg := config.Default()
	h := newHarness(t, cfg)
	h.run()

	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Source) == "monitor"
	}, "initial source event")

	h.stop(t)

	// A capture consumer that outlived its stop window may still deliver a
	// chunk. It must be dropped, not sent on the closed pipeline channel.
	chunk := make([]float32, audio.ChunkSamples)
	h.source.push(chunk)
	h.source.push(chunk)
}

func TestWorkerSwitchSourceRevertsOnFailure(t *testing.T) {
	cfg := config.Default()
	h := newHarness(t, cfg)

	h.worker.sourceFactory = func(kind string) audio.Source {
		src := &fakeSource{name: kind}
		if kind == config.SourceMicrophone {
			src.failStart = true
		}
		return src
	}

	h.run()
	h.events.waitFor(t, func(ev ipc.Event) bool {
		return str(ev.Source) == "monitor"
	}, "initial source event")

	h.sendCommand(t, "switch_source")

	// Give the control loop time to process the command and fail the switch.
	time.Sleep(500 * time.Millisecond)

	status := h.worker.Status()
	if !status.Capturing || status.Source != config.SourceMonitor {
		t.Errorf("status = %+v, want capture reverted to monitor", status)
	}

	// No source event for the failed switch.
	for _, ev := range h.events.snapshot() {
		if str(ev.Source) == config.SourceMicrophone {
			t.Errorf("unexpected source event for failed switch: %+v", ev)
		}
	}

	h.stop(t)
}
