// Package ipc implements the message protocol between the pipeline worker
// process and the presentation layer: newline-delimited JSON events outbound,
// plain-text commands inbound.
package ipc
