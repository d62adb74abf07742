// Package audio implements device capture for the subtitle pipeline: loopback
// (system output) and microphone sources behind one contract, with native-rate
// to 16kHz resampling and fixed-size chunk assembly.
package audio
