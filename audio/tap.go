package audio

import "sync"

// Tap is a read-only view of the most recently played output samples. The
// playback path writes into it; the visualizer reads from it. Neither side
// blocks the other beyond a short ring-buffer copy.
type Tap struct {
	mu     sync.Mutex
	ring   []float32
	pos    int
	filled int
}

// NewTap creates a tap holding the last size samples.
func NewTap(size int) *Tap {
	if size <= 0 {
		size = 2048
	}
	return &Tap{ring: make([]float32, size)}
}

func (t *Tap) write(samples []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range samples {
		t.ring[t.pos] = s
		t.pos = (t.pos + 1) % len(t.ring)
	}
	t.filled += len(samples)
	if t.filled > len(t.ring) {
		t.filled = len(t.ring)
	}
}

// ReadRecent copies up to len(dst) of the most recent samples into dst,
// newest last, and returns how many were copied.
func (t *Tap) ReadRecent(dst []float32) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(dst)
	if n > t.filled {
		n = t.filled
	}
	start := (t.pos - n + len(t.ring)) % len(t.ring)
	for i := 0; i < n; i++ {
		dst[i] = t.ring[(start+i)%len(t.ring)]
	}
	return n
}

// Reset clears the tap so a torn-down session reads as silence.
func (t *Tap) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.ring {
		t.ring[i] = 0
	}
	t.pos = 0
	t.filled = 0
}
