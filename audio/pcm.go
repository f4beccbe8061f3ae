// Package audio implements the realtime audio path of the voice session:
// the PCM16 wire codec, the microphone capture pipeline and the gapless
// playback scheduler. Everything here is sample-rate agnostic except for
// the defaults, which match the remote endpoint (16 kHz up, 24 kHz down).
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"time"
)

const (
	// CaptureRate is the microphone sample rate expected by the remote endpoint.
	CaptureRate = 16000
	// PlaybackRate is the sample rate of inbound audio payloads.
	PlaybackRate = 24000
)

// EncodePCM16 quantizes float samples in [-1, 1] to little-endian PCM16.
// Out-of-range samples are clamped before quantizing so extreme input can
// never wrap around the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}

// DecodePCM16 converts little-endian PCM16 bytes to float samples in [-1, 1].
// A trailing odd byte is ignored. channels is accepted for wire-format
// symmetry; inbound audio is mono so channel de-interleaving is not done here.
func DecodePCM16(data []byte, sampleRate, channels int) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// EncodeBase64 returns the transport text form of a binary payload.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes the transport text form back to binary.
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// Buffer is a fully decoded audio buffer with a known duration.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// NewBuffer decodes a PCM16 payload into a playable buffer.
func NewBuffer(pcm []byte, sampleRate int) Buffer {
	return Buffer{
		Samples:    DecodePCM16(pcm, sampleRate, 1),
		SampleRate: sampleRate,
	}
}

// Duration returns the play time of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}
