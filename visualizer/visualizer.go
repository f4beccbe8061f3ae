// Package visualizer turns the energy of the output audio path into a pair
// of visual parameters (scale, glow) that the UI shell renders as the agent
// speaks. It polls a read-only tap of recently played samples on a fixed
// cadence; it never touches playback state.
package visualizer

import (
	"math"
	"math/cmplx"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

const (
	// defaultInterval approximates one display refresh.
	defaultInterval = 16 * time.Millisecond
	// windowSize is the number of recent samples fed to the FFT.
	windowSize = 256
	// binWindow is how many low-frequency bins are averaged into the level.
	binWindow = 16
	// smoothing blends the previous level into the current one to avoid flicker.
	smoothing = 0.5
)

// Tap exposes recently played output samples.
type Tap interface {
	ReadRecent(dst []float32) int
}

// Frame is one visual update. Level is the smoothed normalized energy in
// [0, 1]; Scale and Glow are the deterministic mappings the UI applies.
type Frame struct {
	Level float64 `json:"level"`
	Scale float64 `json:"scale"`
	Glow  float64 `json:"glow"`
}

// Baseline is the frame emitted when no session is connected.
var Baseline = Frame{Level: 0, Scale: 1, Glow: 10}

// Visualizer runs the per-refresh measurement loop for exactly as long as a
// session is connected. Start/Stop are tied 1:1 to the connected state.
type Visualizer struct {
	tap      Tap
	interval time.Duration
	onFrame  func(Frame)

	mu    sync.Mutex
	stop  chan struct{}
	level float64
	buf   []float32
}

// New creates a visualizer over tap; onFrame receives every update,
// including the baseline emitted on Stop.
func New(tap Tap, onFrame func(Frame)) *Visualizer {
	return &Visualizer{
		tap:      tap,
		interval: defaultInterval,
		onFrame:  onFrame,
		buf:      make([]float32, windowSize),
	}
}

// Start launches the measurement loop. No-op when already running.
func (v *Visualizer) Start() {
	v.mu.Lock()
	if v.stop != nil {
		v.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	v.stop = stop
	v.mu.Unlock()

	go v.run(stop)
}

func (v *Visualizer) run(stop chan struct{}) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if frame, ok := v.measure(); ok {
				v.onFrame(frame)
			}
		}
	}
}

// Stop cancels the loop and resets to baseline immediately.
func (v *Visualizer) Stop() {
	v.mu.Lock()
	if v.stop == nil {
		v.mu.Unlock()
		return
	}
	close(v.stop)
	v.stop = nil
	v.level = 0
	v.mu.Unlock()

	v.onFrame(Baseline)
}

// measure reads the tap, reduces the low-bin spectrum to one scalar and
// applies smoothing plus the visual mapping. ok is false when the loop was
// stopped between ticks.
func (v *Visualizer) measure() (Frame, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stop == nil {
		return Frame{}, false
	}

	n := v.tap.ReadRecent(v.buf)
	window := make([]float64, windowSize)
	for i := 0; i < n; i++ {
		window[i] = float64(v.buf[i])
	}

	spectrum := fft.FFTReal(window)
	sum := 0.0
	for i := 1; i <= binWindow && i < len(spectrum); i++ {
		sum += cmplx.Abs(spectrum[i])
	}
	mean := sum / binWindow

	// A full-scale tone concentrated in one bin yields windowSize/2 magnitude
	// spread over binWindow bins; normalize against that.
	normalized := mean / (float64(windowSize) / 2 / binWindow)
	normalized = math.Min(1, normalized)

	v.level = smoothing*v.level + (1-smoothing)*normalized
	return Frame{
		Level: v.level,
		Scale: 1 + 0.15*v.level,
		Glow:  10 + 20*v.level,
	}, true
}
