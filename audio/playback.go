package audio

import (
	"sync"
	"time"
)

// Clock abstracts time so scheduling is deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Handle identifies one buffer handed to the output graph.
type Handle interface {
	// Stop aborts the buffer whether it is playing or still pending.
	Stop()
}

// Sink is the output audio graph. Schedule must not block and must not
// invoke done synchronously; done fires once when the buffer finishes
// playing (not when it is stopped, and never for a buffer handed to an
// already closed sink).
type Sink interface {
	Schedule(buf Buffer, at time.Time, done func()) Handle
	Close() error
}

// Scheduler plays decoded buffers back-to-back in arrival order. It owns the
// "next start" cursor and the set of currently scheduled buffers; nothing
// else mutates either. The cursor is monotonically non-decreasing except on
// Interrupt, where it resets to now.
type Scheduler struct {
	sink  Sink
	clock Clock

	mu        sync.Mutex
	cursor    time.Time
	scheduled map[uint64]Handle
	seq       uint64
}

// NewScheduler creates a scheduler over sink using the wall clock.
func NewScheduler(sink Sink) *Scheduler {
	return NewSchedulerWithClock(sink, realClock{})
}

// NewSchedulerWithClock is NewScheduler with an injected clock.
func NewSchedulerWithClock(sink Sink, clock Clock) *Scheduler {
	return &Scheduler{
		sink:      sink,
		clock:     clock,
		scheduled: make(map[uint64]Handle),
	}
}

// Enqueue schedules buf to start at max(cursor, now) and advances the cursor
// by the buffer's duration. Ordering is fixed by the cursor, not by decode
// latency: a late-decoded buffer still starts exactly where its predecessor
// ends.
func (s *Scheduler) Enqueue(buf Buffer) {
	if len(buf.Samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	startAt := s.cursor
	if startAt.Before(now) {
		startAt = now
	}

	id := s.seq
	s.seq++
	handle := s.sink.Schedule(buf, startAt, func() {
		s.mu.Lock()
		delete(s.scheduled, id)
		s.mu.Unlock()
	})
	s.scheduled[id] = handle
	s.cursor = startAt.Add(buf.Duration())
}

// Interrupt stops every scheduled buffer, clears the set and resets the
// cursor to now. Holding the mutex across the whole operation means a buffer
// racing in through Enqueue either lands before the sweep (and is stopped)
// or after (and schedules against the reset cursor) — never half-tracked.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, h := range s.scheduled {
		h.Stop()
		delete(s.scheduled, id)
	}
	s.cursor = s.clock.Now()
}

// ScheduledCount reports how many buffers are scheduled but not yet finished.
func (s *Scheduler) ScheduledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scheduled)
}

// Cursor returns the next playback start time.
func (s *Scheduler) Cursor() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close interrupts playback and releases the sink. Idempotent as long as the
// sink's Close is.
func (s *Scheduler) Close() error {
	s.Interrupt()
	return s.sink.Close()
}
