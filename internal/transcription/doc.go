// Package transcription implements the HTTP client for the speech recognition
// service and the loop that feeds it. Segments are posted as raw float32 PCM,
// results are deduplicated against the previous transcript, and a timed-out
// request causes the queued backlog to be dropped rather than recognized late.
package transcription
