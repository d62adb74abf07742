package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the subtitle worker
type Metrics struct {
	// Audio capture metrics
	ChunksCaptured prometheus.Counter
	ChunksDropped  prometheus.Counter
	SourceSwitches prometheus.Counter

	// VAD metrics
	VADFramesProcessed prometheus.Counter
	VADSpeechFrames    prometheus.Counter
	SegmentsEmitted    prometheus.Counter
	SegmentDuration    prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionTimeouts  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	BacklogDropped         prometheus.Counter

	// Translation metrics
	TranslationsDispatched prometheus.Counter
	TranslationsDelivered  prometheus.Counter
	TranslationsStale      prometheus.Counter
	TranslationFailures    prometheus.Counter
	TranslationDuration    prometheus.Histogram

	// IPC metrics
	EventsEmitted     *prometheus.CounterVec
	CommandsProcessed *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Audio capture metrics
		ChunksCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_audio_chunks_captured_total",
			Help: "Total number of half-second audio chunks captured",
		}),
		ChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_audio_chunks_dropped_total",
			Help: "Total number of audio buffers dropped at the capture callback",
		}),
		SourceSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_audio_source_switches_total",
			Help: "Total number of capture source switches",
		}),

		// VAD metrics
		VADFramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_vad_frames_processed_total",
			Help: "Total number of VAD frames scored",
		}),
		VADSpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_vad_speech_frames_total",
			Help: "Total number of VAD frames classified as speech",
		}),
		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_speech_segments_total",
			Help: "Total number of speech segments emitted",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtitle_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.125, 2, 8), // 125ms to ~16s
		}),

		// Transcription metrics
		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_transcription_timeouts_total",
			Help: "Total number of transcription requests that timed out",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtitle_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		BacklogDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_segment_backlog_dropped_total",
			Help: "Total number of segments dropped after a transcription timeout",
		}),

		// Translation metrics
		TranslationsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_translations_dispatched_total",
			Help: "Total number of translation requests dispatched",
		}),
		TranslationsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_translations_delivered_total",
			Help: "Total number of translations delivered to the event stream",
		}),
		TranslationsStale: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_translations_stale_total",
			Help: "Total number of translations discarded as stale",
		}),
		TranslationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtitle_translation_failures_total",
			Help: "Total number of failed translation requests",
		}),
		TranslationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtitle_translation_duration_seconds",
			Help:    "Duration of translation requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		}),

		// IPC metrics
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtitle_events_emitted_total",
			Help: "Total number of events written to the event stream",
		}, []string{"type"}),
		CommandsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtitle_commands_processed_total",
			Help: "Total number of control commands processed",
		}, []string{"command"}),
	}
}

// RecordChunkCaptured increments the captured chunks counter
func (m *Metrics) RecordChunkCaptured() {
	m.ChunksCaptured.Inc()
}

// RecordChunkDropped increments the dropped chunks counter
func (m *Metrics) RecordChunkDropped() {
	m.ChunksDropped.Inc()
}

// RecordSourceSwitch increments the source switches counter
func (m *Metrics) RecordSourceSwitch() {
	m.SourceSwitches.Inc()
}

// RecordVADFrame increments VAD frames processed and optionally speech frames
func (m *Metrics) RecordVADFrame(isSpeech bool) {
	m.VADFramesProcessed.Inc()
	if isSpeech {
		m.VADSpeechFrames.Inc()
	}
}

// RecordSegmentEmitted records an emitted speech segment
func (m *Metrics) RecordSegmentEmitted(durationSeconds float64) {
	m.SegmentsEmitted.Inc()
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordTranscriptionRequest increments the transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure() {
	m.TranscriptionFailures.Inc()
}

// RecordTranscriptionTimeout records a timed-out transcription
func (m *Metrics) RecordTranscriptionTimeout() {
	m.TranscriptionTimeouts.Inc()
	m.TranscriptionFailures.Inc()
}

// RecordBacklogDropped adds to the dropped backlog counter
func (m *Metrics) RecordBacklogDropped(count int) {
	m.BacklogDropped.Add(float64(count))
}

// RecordTranslationDispatched increments the dispatched translations counter
func (m *Metrics) RecordTranslationDispatched() {
	m.TranslationsDispatched.Inc()
}

// RecordTranslationDelivered records a delivered translation
func (m *Metrics) RecordTranslationDelivered(durationSeconds float64) {
	m.TranslationsDelivered.Inc()
	m.TranslationDuration.Observe(durationSeconds)
}

// RecordTranslationStale increments the stale translations counter
func (m *Metrics) RecordTranslationStale() {
	m.TranslationsStale.Inc()
}

// RecordTranslationFailure increments the translation failures counter
func (m *Metrics) RecordTranslationFailure() {
	m.TranslationFailures.Inc()
}

// RecordEventEmitted records an event written to the event stream
func (m *Metrics) RecordEventEmitted(eventType string) {
	m.EventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordCommandProcessed records a processed control command
func (m *Metrics) RecordCommandProcessed(command string) {
	m.CommandsProcessed.WithLabelValues(command).Inc()
}
