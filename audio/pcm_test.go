package audio

import (
	"math"
	"testing"
	"time"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := make([]float32, 512)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) / 17.0))
	}

	out := DecodePCM16(EncodePCM16(in), CaptureRate, 1)
	if len(out) != len(in) {
		t.Fatalf("round-trip length = %d, want %d", len(out), len(in))
	}
	const step = 1.0 / 32768.0
	for i := range in {
		if diff := math.Abs(float64(in[i] - out[i])); diff > step {
			t.Fatalf("sample %d: |%f - %f| = %f, want <= %f", i, in[i], out[i], diff, step)
		}
	}
}

func TestEncodePCM16Clamps(t *testing.T) {
	data := EncodePCM16([]float32{2.5, -3.0, 0})
	got := DecodePCM16(data, CaptureRate, 1)

	if got[0] < 0.99 {
		t.Fatalf("clamped high sample = %f, want ~1.0", got[0])
	}
	if got[1] > -0.99 {
		t.Fatalf("clamped low sample = %f, want ~-1.0", got[1])
	}
	if got[2] != 0 {
		t.Fatalf("zero sample = %f, want 0", got[2])
	}
}

func TestDecodePCM16IgnoresTrailingByte(t *testing.T) {
	got := DecodePCM16([]byte{0x00, 0x40, 0xFF}, PlaybackRate, 1)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestBufferDuration(t *testing.T) {
	buf := NewBuffer(make([]byte, PlaybackRate*2), PlaybackRate)
	if buf.Duration() != time.Second {
		t.Fatalf("Duration() = %s, want 1s", buf.Duration())
	}
	if (Buffer{}).Duration() != 0 {
		t.Fatalf("empty buffer duration = %s, want 0", Buffer{}.Duration())
	}
}

func TestBase64RoundTrip(t *testing.T) {
	data := []byte{0, 1, 2, 250, 251, 252}
	decoded, err := DecodeBase64(EncodeBase64(data))
	if err != nil {
		t.Fatalf("DecodeBase64() error = %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatalf("round-trip mismatch: %v != %v", decoded, data)
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	if _, err := DecodeBase64("not!!base64"); err == nil {
		t.Fatalf("DecodeBase64() error = nil, want error")
	}
}
