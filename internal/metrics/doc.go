// Package metrics defines Prometheus metrics for the subtitle worker and
// helper methods for recording them from the pipeline stages.
package metrics
