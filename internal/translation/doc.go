// Package translation turns recognized transcripts into subtitles in the
// target language. A debouncer coalesces the rapid transcript revisions the
// recognizer produces, and the OpenAI chat completion API does the correction
// and translation with direction-specific prompts.
package translation
