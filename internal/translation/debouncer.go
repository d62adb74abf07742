package translation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ammosu/realtime-subtitle/internal/languages"
)

// MetricsRecorder receives translation request observations.
type MetricsRecorder interface {
	RecordTranslationDispatched()
	RecordTranslationDelivered(durationSeconds float64)
	RecordTranslationStale()
	RecordTranslationFailure()
}

// sentenceEndings are the terminators that mark a transcript as a finished
// sentence worth translating right away instead of waiting out the debounce.
var sentenceEndings = []string{".", "?", "!", "。", "？", "！"}

// Debouncer batches rapidly-updating transcripts before translating them.
// Recognition refines the same utterance several times per second; sending
// every revision to the translation API wastes quota and flickers the
// subtitle. Instead each update restarts a short timer, and only the text
// that survives the quiet period is translated. A transcript ending in
// sentence punctuation skips the wait.
//
// Translations run concurrently, so a slow request can finish after a newer
// one was dispatched. Every dispatch takes a sequence number; a completion
// whose number is no longer current is discarded instead of overwriting a
// fresher subtitle.
type Debouncer struct {
	translator Translator
	logger     *slog.Logger
	onResult   func(original, translated string)
	debounce   time.Duration
	recorder   MetricsRecorder

	mu             sync.Mutex
	pending        string
	lastTranslated string
	seq            uint64
	direction      languages.Direction
	timer          *time.Timer
	closed         bool

	ctx    context.Context
	cancel context.CancelFunc

	// Statistics
	dispatched uint64
	delivered  uint64
	staleDrops uint64
	errors     uint64
	immediate  uint64
}

// DebouncerStats represents debouncer statistics
type DebouncerStats struct {
	Dispatched uint64 `json:"dispatched"`
	Delivered  uint64 `json:"delivered"`
	StaleDrops uint64 `json:"stale_drops"`
	Errors     uint64 `json:"errors"`
	Immediate  uint64 `json:"immediate"`
}

// NewDebouncer creates a debouncer. onResult receives each delivered
// translation and may be called from the timer goroutine or from the
// goroutine that called Update.
func NewDebouncer(logger *slog.Logger, translator Translator, direction languages.Direction, debounce time.Duration, onResult func(original, translated string)) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		translator: translator,
		logger:     logger,
		onResult:   onResult,
		debounce:   debounce,
		direction:  direction,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetMetrics attaches a metrics recorder.
func (d *Debouncer) SetMetrics(recorder MetricsRecorder) {
	d.recorder = recorder
}

// Update records the latest transcript. Text ending in sentence punctuation
// dispatches immediately; otherwise the debounce timer restarts and whatever
// text is pending when it fires gets translated. A repeat of the current
// pending text is a no-op so that identical updates cannot keep pushing the
// timer back.
func (d *Debouncer) Update(text string) {
	d.mu.Lock()
	if d.closed || text == d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = text

	if endsSentence(text) {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
		d.immediate++
		d.mu.Unlock()
		d.dispatch()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.dispatch)
	d.mu.Unlock()
}

// dispatch translates the pending text. The lock is released during the API
// call; the sequence number taken here decides at completion whether the
// result is still the newest.
func (d *Debouncer) dispatch() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	text := d.pending
	if text == "" || text == d.lastTranslated {
		d.mu.Unlock()
		return
	}
	d.seq++
	mySeq := d.seq
	direction := d.direction
	d.dispatched++
	d.mu.Unlock()

	if d.recorder != nil {
		d.recorder.RecordTranslationDispatched()
	}

	startTime := time.Now()
	result, err := d.translator.Translate(d.ctx, text, direction)
	if err != nil {
		d.mu.Lock()
		d.errors++
		d.mu.Unlock()
		if d.recorder != nil {
			d.recorder.RecordTranslationFailure()
		}
		if d.ctx.Err() == nil {
			d.logger.Error("Translation failed",
				slog.String("direction", direction.String()),
				slog.String("error", err.Error()))
		}
		return
	}

	d.mu.Lock()
	if mySeq != d.seq {
		d.staleDrops++
		d.mu.Unlock()
		if d.recorder != nil {
			d.recorder.RecordTranslationStale()
		}
		d.logger.Debug("Dropped stale translation",
			slog.Uint64("seq", mySeq),
			slog.Uint64("current", d.seq))
		return
	}
	d.lastTranslated = text
	d.delivered++
	closed := d.closed
	d.mu.Unlock()

	if !closed {
		if d.recorder != nil {
			d.recorder.RecordTranslationDelivered(time.Since(startTime).Seconds())
		}
		d.onResult(result.Corrected, result.Translated)
	}
}

// Direction returns the current translation direction.
func (d *Debouncer) Direction() languages.Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.direction
}

// Toggle swaps source and target languages and returns the new direction.
// The pending and last-translated caches are cleared so the current
// transcript can be retranslated in the new direction.
func (d *Debouncer) Toggle() languages.Direction {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.direction = d.direction.Swapped()
	d.lastTranslated = ""
	d.pending = ""
	return d.direction
}

// SetDirection replaces the translation direction and clears the
// last-translated cache.
func (d *Debouncer) SetDirection(direction languages.Direction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.direction = direction
	d.lastTranslated = ""
	d.pending = ""
}

// Shutdown stops the timer and cancels any in-flight translation. Further
// updates are ignored.
func (d *Debouncer) Shutdown() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.cancel()
}

// GetStats returns current debouncer statistics
func (d *Debouncer) GetStats() DebouncerStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DebouncerStats{
		Dispatched: d.dispatched,
		Delivered:  d.delivered,
		StaleDrops: d.staleDrops,
		Errors:     d.errors,
		Immediate:  d.immediate,
	}
}

// endsSentence reports whether text ends with sentence punctuation.
func endsSentence(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, ending := range sentenceEndings {
		if strings.HasSuffix(trimmed, ending) {
			return true
		}
	}
	return false
}
