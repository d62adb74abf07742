// Package languages holds the supported language table and the translation
// direction type shared across the pipeline.
package languages
