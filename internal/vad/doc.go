// Package vad implements voice-activity segmentation: a recurrent Silero
// scorer over 576-sample frames and a state machine that assembles contiguous
// speech into bounded segments.
package vad
