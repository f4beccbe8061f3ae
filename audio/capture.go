package audio

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrPermissionDenied means microphone access was refused. Recoverable:
	// the session degrades to voice-disabled instead of failing.
	ErrPermissionDenied = errors.New("audio: microphone permission denied")
	// ErrDeviceUnavailable means no capture hardware exists.
	ErrDeviceUnavailable = errors.New("audio: no capture device available")
)

// DefaultFrameSize is the number of samples per capture frame (~256 ms at 16 kHz).
const DefaultFrameSize = 4096

// Frame is an immutable fixed-length block of mono samples from the microphone.
type Frame struct {
	Samples    []float32
	SampleRate int
}

// CaptureDevice is the hardware boundary of the capture pipeline. The device
// pushes raw PCM16 bytes at its own cadence; chunking into fixed frames
// happens above it.
type CaptureDevice interface {
	Start(onData func(pcm []byte)) error
	Stop() error
}

// Capture acquires a microphone stream and delivers fixed-size frames to a
// callback. A muted capture drops frames outright rather than substituting
// silence, so nothing is sent upstream while the user is muted.
type Capture struct {
	device    CaptureDevice
	frameSize int
	rate      int
	muted     atomic.Bool

	mu      sync.Mutex
	started bool
	pending []byte
}

// NewCapture wires a capture pipeline over device. frameSize <= 0 selects
// DefaultFrameSize.
func NewCapture(device CaptureDevice, sampleRate, frameSize int) *Capture {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	if sampleRate <= 0 {
		sampleRate = CaptureRate
	}
	return &Capture{device: device, frameSize: frameSize, rate: sampleRate}
}

// Start acquires the device and begins delivering frames to onFrame.
// Device and permission failures come back as wrapped ErrDeviceUnavailable /
// ErrPermissionDenied; the caller surfaces them as a status, never a crash.
func (c *Capture) Start(onFrame func(Frame)) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.pending = nil
	c.mu.Unlock()

	err := c.device.Start(func(pcm []byte) {
		c.ingest(pcm, onFrame)
	})
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// ingest accumulates device-cadence chunks and emits fixed frames.
func (c *Capture) ingest(pcm []byte, onFrame func(Frame)) {
	if c.muted.Load() {
		// Dropped, not buffered: stale speech must not surface after unmute.
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		return
	}

	frameBytes := c.frameSize * 2
	var frames []Frame

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, pcm...)
	for len(c.pending) >= frameBytes {
		chunk := c.pending[:frameBytes]
		frames = append(frames, Frame{
			Samples:    DecodePCM16(chunk, c.rate, 1),
			SampleRate: c.rate,
		})
		c.pending = c.pending[frameBytes:]
	}
	c.mu.Unlock()

	for _, f := range frames {
		onFrame(f)
	}
}

// SetMuted sets the advisory mute flag. A frame already in flight when mute
// lands is tolerated; no lock is taken on the device path.
func (c *Capture) SetMuted(muted bool) {
	c.muted.Store(muted)
}

// Muted reports the mute flag.
func (c *Capture) Muted() bool {
	return c.muted.Load()
}

// Stop releases the device. Idempotent.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.pending = nil
	c.mu.Unlock()

	_ = c.device.Stop()
}
