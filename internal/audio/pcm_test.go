package audio

import (
	"math"
	"testing"
)

func TestFloat32BytesRoundTrip(t *testing.T) {
	samples := []float32{0, 1, -1, 0.5, -0.25, 1e-7, float32(math.Pi)}

	data := Float32ToBytes(samples)
	if len(data) != len(samples)*4 {
		t.Fatalf("encoded length = %d, want %d", len(data), len(samples)*4)
	}

	decoded := BytesToFloat32(data)
	if len(decoded) != len(samples) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("sample %d: got %v, want %v", i, decoded[i], samples[i])
		}
	}
}

func TestBytesToFloat32IgnoresTrailingBytes(t *testing.T) {
	data := Float32ToBytes([]float32{1, 2})
	data = append(data, 0xAA, 0xBB) // partial sample

	decoded := BytesToFloat32(data)
	if len(decoded) != 2 {
		t.Errorf("decoded length = %d, want 2", len(decoded))
	}
}

func TestFloat32ToBytesLittleEndian(t *testing.T) {
	// 1.0 is 0x3F800000; little-endian layout puts the zero bytes first.
	data := Float32ToBytes([]float32{1.0})
	want := []byte{0x00, 0x00, 0x80, 0x3F}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, data[i], want[i])
		}
	}
}

func TestDownmixToMono(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := DownmixToMono(stereo, 2)

	want := []float32{0.5, 0.5, 0}
	if len(mono) != len(want) {
		t.Fatalf("mono length = %d, want %d", len(mono), len(want))
	}
	for i := range want {
		if mono[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, mono[i], want[i])
		}
	}

	// Mono input passes through untouched.
	in := []float32{1, 2, 3}
	out := DownmixToMono(in, 1)
	if len(out) != 3 || out[0] != 1 || out[2] != 3 {
		t.Errorf("mono passthrough = %v", out)
	}
}
