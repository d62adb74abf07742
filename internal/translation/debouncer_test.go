package translation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ammosu/realtime-subtitle/internal/languages"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// translateCall is one in-flight call against the fake translator. The test
// completes it by sending on done, which lets tests finish calls out of
// dispatch order.
type translateCall struct {
	text      string
	direction languages.Direction
	done      chan Result
}

type fakeTranslator struct {
	calls chan *translateCall
	auto  bool
}

func newFakeTranslator(auto bool) *fakeTranslator {
	return &fakeTranslator{calls: make(chan *translateCall, 16), auto: auto}
}

func (f *fakeTranslator) Translate(ctx context.Context, text string, direction languages.Direction) (Result, error) {
	if f.auto {
		return Result{Corrected: text, Translated: "T:" + text}, nil
	}
	call := &translateCall{text: text, direction: direction, done: make(chan Result, 1)}
	f.calls <- call
	select {
	case r := <-call.done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (f *fakeTranslator) nextCall(t *testing.T) *translateCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("expected a translation call")
		return nil
	}
}

func (f *fakeTranslator) expectNoCall(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected translation call for %q", call.text)
	case <-time.After(within):
	}
}

// resultSink collects delivered translations.
type resultSink struct {
	mu      sync.Mutex
	results [][2]string
}

func (s *resultSink) add(original, translated string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, [2]string{original, translated})
}

func (s *resultSink) all() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]string(nil), s.results...)
}

func (s *resultSink) waitFor(t *testing.T, n int) [][2]string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := s.all()
		if len(got) >= n {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d results, have %v", n, got)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDebouncerStaleCompletionDiscarded(t *testing.T) {
	translator := newFakeTranslator(false)
	sink := &resultSink{}
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 10*time.Second, sink.add)
	defer d.Shutdown()

	// Sentence-terminal text dispatches synchronously, so each Update runs
	// in its own goroutine and blocks inside the fake translator.
	go d.Update("first sentence.")
	call1 := translator.nextCall(t)

	go d.Update("second sentence.")
	call2 := translator.nextCall(t)

	// The newer dispatch completes first and is delivered.
	call2.done <- Result{Corrected: "second sentence.", Translated: "第二句。"}
	sink.waitFor(t, 1)

	// The older dispatch completes late and must be discarded.
	call1.done <- Result{Corrected: "first sentence.", Translated: "第一句。"}

	deadline := time.Now().Add(5 * time.Second)
	for d.GetStats().StaleDrops != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stale completion not dropped, stats = %+v", d.GetStats())
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A third dispatch still works after the stale drop.
	go d.Update("third sentence.")
	call3 := translator.nextCall(t)
	call3.done <- Result{Corrected: "third sentence.", Translated: "第三句。"}

	got := sink.waitFor(t, 2)
	if len(got) != 2 {
		t.Fatalf("delivered results = %v, want 2", got)
	}
	if got[0][1] != "第二句。" || got[1][1] != "第三句。" {
		t.Errorf("delivered translations = %v, want 第二句。 then 第三句。", got)
	}
}

func TestDebouncerCoalescesRapidUpdates(t *testing.T) {
	translator := newFakeTranslator(false)
	sink := &resultSink{}
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 50*time.Millisecond, sink.add)
	defer d.Shutdown()

	d.Update("the quick")
	d.Update("the quick brown")
	d.Update("the quick brown fox")

	call := translator.nextCall(t)
	if call.text != "the quick brown fox" {
		t.Errorf("translated text = %q, want the final revision", call.text)
	}
	call.done <- Result{Corrected: call.text, Translated: "translated"}

	sink.waitFor(t, 1)
	translator.expectNoCall(t, 150*time.Millisecond)
}

func TestDebouncerIdenticalUpdatesDoNotResetTimer(t *testing.T) {
	translator := newFakeTranslator(false)
	sink := &resultSink{}
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 80*time.Millisecond, sink.add)
	defer d.Shutdown()

	// Recognition often re-emits the same partial several times per second.
	// Repeats must not push the timer back, or a steady stream of identical
	// updates would defer translation forever.
	d.Update("still talking")
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		d.Update("still talking")
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case call := <-translator.calls:
		if call.text != "still talking" {
			t.Errorf("translated text = %q, want still talking", call.text)
		}
		call.done <- Result{Corrected: call.text, Translated: "translated"}
	default:
		t.Fatal("timer never fired during identical updates")
	}
}

func TestDebouncerSentenceTerminalBypassesTimer(t *testing.T) {
	translator := newFakeTranslator(false)
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 10*time.Second, func(string, string) {})
	defer d.Shutdown()

	start := time.Now()
	go d.Update("that is all. ")
	call := translator.nextCall(t)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("sentence-terminal dispatch took %v, should not wait for debounce", elapsed)
	}
	call.done <- Result{Corrected: call.text, Translated: "done"}

	if d.GetStats().Immediate != 1 {
		t.Errorf("stats.Immediate = %d, want 1", d.GetStats().Immediate)
	}
}

func TestDebouncerSkipsUnchangedText(t *testing.T) {
	translator := newFakeTranslator(true)
	sink := &resultSink{}
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 20*time.Millisecond, sink.add)
	defer d.Shutdown()

	d.Update("hello there.")
	sink.waitFor(t, 1)

	// Same text again: already translated, nothing dispatched.
	d.Update("hello there.")
	time.Sleep(100 * time.Millisecond)

	if got := sink.all(); len(got) != 1 {
		t.Errorf("delivered results = %v, want exactly 1", got)
	}
	if stats := d.GetStats(); stats.Dispatched != 1 {
		t.Errorf("stats.Dispatched = %d, want 1", stats.Dispatched)
	}
}

func TestDebouncerToggle(t *testing.T) {
	translator := newFakeTranslator(true)
	sink := &resultSink{}
	d := NewDebouncer(testLogger(), translator, languages.Direction{Source: "en", Target: "zh"}, 20*time.Millisecond, sink.add)
	defer d.Shutdown()

	d.Update("hello there.")
	sink.waitFor(t, 1)

	got := d.Toggle()
	if got.Source != "zh" || got.Target != "en" {
		t.Errorf("Toggle() = %v, want zh→en", got)
	}
	if back := d.Toggle(); back.Source != "en" || back.Target != "zh" {
		t.Errorf("second Toggle() = %v, want en→zh", back)
	}

	// Toggling cleared the cache, so the same text translates again.
	d.Update("hello there.")
	sink.waitFor(t, 2)
}

func TestDebouncerSetDirectionClearsCache(t *testing.T) {
	translator := newFakeTranslator(true)
	sink := &resultSink{}
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 20*time.Millisecond, sink.add)
	defer d.Shutdown()

	d.Update("hello there.")
	sink.waitFor(t, 1)

	d.SetDirection(languages.Direction{Source: "ja", Target: "en"})
	if dir := d.Direction(); dir.Source != "ja" {
		t.Errorf("Direction() = %v after SetDirection", dir)
	}

	d.Update("hello there.")
	sink.waitFor(t, 2)
}

func TestDebouncerShutdownStopsDispatch(t *testing.T) {
	translator := newFakeTranslator(false)
	d := NewDebouncer(testLogger(), translator, languages.DefaultDirection, 200*time.Millisecond, func(string, string) {})

	d.Update("pending text")
	d.Shutdown()

	translator.expectNoCall(t, 100*time.Millisecond)

	// Updates after shutdown are ignored.
	d.Update("more text.")
	translator.expectNoCall(t, 100*time.Millisecond)
}
