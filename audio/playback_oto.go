package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// sinkEntry is one queued buffer inside the oto sink.
type sinkEntry struct {
	sink    *OtoSink
	pcm     []byte
	done    func()
	stopped bool
}

// Stop implements Handle. The entry is skipped (or its remainder dropped)
// at the next reader pull; the sink flush clears oto's own buffer so no
// stale tail plays out.
func (e *sinkEntry) Stop() {
	e.sink.stopEntry(e)
}

// OtoSink plays scheduled buffers through the speaker. It keeps a single
// pull-based oto player alive and feeds it from an ordered queue, so
// consecutive buffers are gapless by construction; silence is produced when
// the queue runs dry. A Tap of played samples feeds the visualizer.
type OtoSink struct {
	sampleRate int
	tap        *Tap

	mu      sync.Mutex
	ctx     *oto.Context
	player  *oto.Player
	queue   []*sinkEntry
	closed  bool
	pending []func() // completion callbacks collected under mu, run outside it
}

// oto allows exactly one context per process, so it is opened once and
// shared by every sink the daemon ever creates.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func otoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("open speaker: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// NewOtoSink opens the speaker at sampleRate (mono PCM16). The tap may be
// nil when no visualizer is attached.
func NewOtoSink(sampleRate int, tap *Tap) (*OtoSink, error) {
	if sampleRate <= 0 {
		sampleRate = PlaybackRate
	}
	ctx, err := otoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	_ = ctx.Resume()

	s := &OtoSink{sampleRate: sampleRate, tap: tap, ctx: ctx}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Schedule implements Sink. The at hint is satisfied by queue order: the
// scheduler only hands over buffers whose start is the tail of the stream,
// so appending preserves exact back-to-back timing.
func (s *OtoSink) Schedule(buf Buffer, at time.Time, done func()) Handle {
	e := &sinkEntry{sink: s, pcm: EncodePCM16(buf.Samples), done: done}

	s.mu.Lock()
	if s.closed {
		// A buffer landing after Close never plays, so done never fires.
		// Schedule is called under the scheduler's lock and done re-enters it;
		// invoking it here would deadlock the caller.
		e.stopped = true
		s.mu.Unlock()
		return e
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	return e
}

func (s *OtoSink) stopEntry(e *sinkEntry) {
	s.mu.Lock()
	e.stopped = true
	allStopped := true
	for _, q := range s.queue {
		if !q.stopped {
			allStopped = false
			break
		}
	}
	player := s.player
	s.mu.Unlock()

	// When the whole queue is aborted (interruption) reset the player so the
	// ~100 ms already handed to oto does not play out as an audible tail.
	if allStopped && player != nil {
		player.Pause()
		player.Reset()
		player.Play()
	}
}

// Read implements io.Reader for the oto player. It drains queued entries in
// order and emits silence when nothing is queued, keeping the device clock
// running.
func (s *OtoSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	n := 0
	for n < len(p) && len(s.queue) > 0 {
		e := s.queue[0]
		if e.stopped || len(e.pcm) == 0 {
			if !e.stopped && e.done != nil {
				s.pending = append(s.pending, e.done)
			}
			s.queue = s.queue[1:]
			continue
		}
		c := copy(p[n:], e.pcm)
		e.pcm = e.pcm[c:]
		n += c
		if len(e.pcm) == 0 {
			if e.done != nil {
				s.pending = append(s.pending, e.done)
			}
			s.queue = s.queue[1:]
		}
	}
	callbacks := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}

	if s.tap != nil && n > 0 {
		s.tap.write(DecodePCM16(p[:n], s.sampleRate, 1))
	}

	// Pad with silence instead of starving the player.
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Close stops playback and releases the speaker. Idempotent.
func (s *OtoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		_ = player.Close()
	}
	if s.tap != nil {
		s.tap.Reset()
	}
	// oto contexts cannot be torn down; suspend so an idle process stays quiet.
	if s.ctx != nil {
		_ = s.ctx.Suspend()
	}
	return nil
}
