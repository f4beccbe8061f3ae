package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/techaid-za/voicedesk/audio"
	"github.com/techaid-za/voicedesk/messages"
	"github.com/techaid-za/voicedesk/observability"
	"github.com/techaid-za/voicedesk/tools"
)

// State is the session lifecycle phase reported to the UI shell.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// CapturePipeline is the microphone side of the session.
type CapturePipeline interface {
	Start(onFrame func(audio.Frame)) error
	SetMuted(muted bool)
	Muted() bool
	Stop()
}

// Playback is the speaker side of the session.
type Playback interface {
	Enqueue(buf audio.Buffer)
	Interrupt()
	Close() error
}

// Visual drives the orb animation loop.
type Visual interface {
	Start()
	Stop()
}

// Devices bundles the local audio endpoints for one session.
type Devices struct {
	Capture  CapturePipeline
	Playback Playback
	Visual   Visual
}

// Config wires a Controller together.
type Config struct {
	ID             string
	Dial           RemoteDialer
	Devices        Devices
	Store          Store
	Metrics        *observability.Metrics
	WhatsAppNumber string
	SystemPrompt   string // defaults to DefaultSystemPrompt
	Emit           func(msg *messages.ServerMessage)
}

// Controller runs one voice session end to end: it owns the upstream
// link, the local audio endpoints, and the tool dispatcher, and reports
// state transitions to the UI shell.
type Controller struct {
	id         string
	dial       RemoteDialer
	devices    Devices
	store      Store
	metrics    *observability.Metrics
	dispatcher *tools.Dispatcher
	emit       func(msg *messages.ServerMessage)
	prompt     string

	CreatedAt time.Time

	mu             sync.RWMutex
	state          State
	remote         RemoteChannel
	closed         bool
	voiceDisabled  bool
	seenScans      map[string]struct{}
	openedAt       time.Time
	firstAudioSeen bool
	lastActivity   time.Time
}

// NewController builds a session in the disconnected state. Open starts it.
func NewController(cfg Config) *Controller {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	emit := cfg.Emit
	if emit == nil {
		emit = func(*messages.ServerMessage) {}
	}
	store := cfg.Store
	if store == nil {
		store = noopStore{}
	}

	c := &Controller{
		id:           cfg.ID,
		dial:         cfg.Dial,
		devices:      cfg.Devices,
		store:        store,
		metrics:      cfg.Metrics,
		emit:         emit,
		prompt:       prompt,
		CreatedAt:    time.Now(),
		state:        StateDisconnected,
		seenScans:    make(map[string]struct{}),
		lastActivity: time.Now(),
	}

	c.dispatcher = tools.NewDispatcher(c, cfg.WhatsAppNumber)
	c.dispatcher.SetSaveHook(func(rec tools.BookingRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.store.SaveBooking(ctx, rec); err != nil {
			log.Printf("⚠️ [%s] Failed to save booking draft: %v", c.shortID(), err)
		}
	})

	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastActivity returns the time of the most recent audio or control traffic.
func (c *Controller) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// Open dials the upstream link, starts the local audio endpoints, and
// nudges the agent to greet. userContext is what the visitor was looking
// at when they opened the assistant; it may be empty.
func (c *Controller) Open(ctx context.Context, userContext string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("session already open (state %s)", c.state)
	}
	c.state = StateConnecting
	c.openedAt = time.Now()
	c.mu.Unlock()

	c.emit(messages.NewStatusMessage(c.id, string(StateConnecting), ""))

	// Seed the booking form with whatever an earlier visit left behind.
	if rec, ok, err := c.store.LoadBooking(ctx); err != nil {
		log.Printf("⚠️ [%s] Failed to load booking draft: %v", c.shortID(), err)
	} else if ok {
		c.dispatcher.RestoreBooking(rec)
	}

	remote, err := c.dial(ctx, c.prompt, RemoteHandlers{
		OnAudio:       c.handleAudio,
		OnToolCall:    c.handleToolCalls,
		OnInterrupted: c.handleInterrupted,
		OnComplete:    c.handleTurnComplete,
		OnError:       c.handleRemoteError,
	})
	if err != nil {
		c.mu.Lock()
		c.state = StateError
		c.mu.Unlock()
		c.emit(messages.NewErrorMessage(c.id, messages.ErrCodeSessionFailed, err.Error()))
		c.emit(messages.NewStatusMessage(c.id, string(StateError), "could not reach the voice service"))
		return fmt.Errorf("dial remote: %w", err)
	}

	c.mu.Lock()
	c.remote = remote
	c.mu.Unlock()

	// A dead microphone degrades the session, it does not end it: the
	// agent can still speak and drive the UI.
	if err := c.devices.Capture.Start(c.handleCaptureFrame); err != nil {
		log.Printf("⚠️ [%s] Microphone unavailable: %v", c.shortID(), err)
		c.mu.Lock()
		c.voiceDisabled = true
		c.mu.Unlock()
		c.emit(messages.NewErrorMessage(c.id, messages.ErrCodeVoiceUnavailable, err.Error()))
		c.countEvent("voice_disabled")
	}

	c.devices.Visual.Start()

	if err := remote.SendSystemText(GreetingText(userContext)); err != nil {
		log.Printf("⚠️ [%s] Failed to send greeting nudge: %v", c.shortID(), err)
	}

	c.mu.Lock()
	c.state = StateConnected
	c.lastActivity = time.Now()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.ActiveSessions.Inc()
	}
	c.countEvent("open")

	c.emit(messages.NewStatusMessage(c.id, string(StateConnected), ""))
	log.Printf("✅ [%s] Session open", c.shortID())
	return nil
}

// SetMuted toggles the microphone. Muted frames are dropped at the
// capture stage, nothing is sent upstream.
func (c *Controller) SetMuted(muted bool) {
	c.devices.Capture.SetMuted(muted)
	if muted {
		c.countEvent("muted")
	} else {
		c.countEvent("unmuted")
	}
}

// VoiceDisabled reports whether the session is running without a microphone.
func (c *Controller) VoiceDisabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voiceDisabled
}

// InjectScanResult forwards a scanner result to the agent. Each distinct
// result is injected exactly once per session.
func (c *Controller) InjectScanResult(res tools.ScanResult) error {
	fp := res.Fingerprint()

	c.mu.Lock()
	if c.closed || c.remote == nil {
		c.mu.Unlock()
		return fmt.Errorf("session is not connected")
	}
	if _, seen := c.seenScans[fp]; seen {
		c.mu.Unlock()
		return nil
	}
	c.seenScans[fp] = struct{}{}
	remote := c.remote
	c.lastActivity = time.Now()
	c.mu.Unlock()

	c.countEvent("scan_result")
	return remote.SendSystemText(res.Summary())
}

// Booking returns the dispatcher's current best-known booking record.
func (c *Controller) Booking() tools.BookingRecord {
	return c.dispatcher.Booking()
}

// Close tears the session down in order: microphone first so nothing new
// goes upstream, then local playback, then the visualizer, then the
// upstream link. Safe to call more than once.
func (c *Controller) Close() error {
	return c.closeWith(StateDisconnected, "")
}

func (c *Controller) closeWith(final State, detail string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = final
	remote := c.remote
	c.remote = nil
	c.mu.Unlock()

	c.devices.Capture.Stop()
	c.devices.Playback.Interrupt()
	if err := c.devices.Playback.Close(); err != nil {
		log.Printf("⚠️ [%s] Playback close: %v", c.shortID(), err)
	}
	c.devices.Visual.Stop()

	if remote != nil {
		if err := remote.Close(); err != nil {
			log.Printf("⚠️ [%s] Remote close: %v", c.shortID(), err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.store.DropSession(ctx, c.id)

	if c.metrics != nil {
		c.metrics.ActiveSessions.Dec()
	}
	c.countEvent("close")

	c.emit(messages.NewStatusMessage(c.id, string(final), detail))
	log.Printf("🔌 [%s] Session closed (%s)", c.shortID(), final)
	return nil
}

func (c *Controller) handleCaptureFrame(f audio.Frame) {
	c.mu.RLock()
	remote := c.remote
	closed := c.closed
	c.mu.RUnlock()

	if closed || remote == nil {
		return
	}

	if err := remote.SendAudioFrame(audio.EncodePCM16(f.Samples)); err != nil {
		log.Printf("❌ [%s] Failed to send audio upstream: %v", c.shortID(), err)
		return
	}

	c.touch()
	if c.metrics != nil {
		c.metrics.AudioFrames.WithLabelValues("in").Inc()
	}
}

func (c *Controller) handleAudio(pcm []byte, sampleRate int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	first := !c.firstAudioSeen
	c.firstAudioSeen = true
	openedAt := c.openedAt
	c.lastActivity = time.Now()
	c.mu.Unlock()

	if first && c.metrics != nil {
		c.metrics.ObserveFirstAudioLatency(time.Since(openedAt))
	}

	c.devices.Playback.Enqueue(audio.NewBuffer(pcm, sampleRate))
	if c.metrics != nil {
		c.metrics.AudioFrames.WithLabelValues("out").Inc()
	}
}

func (c *Controller) handleToolCalls(calls []tools.Call) {
	c.touch()

	results := c.dispatcher.Dispatch(calls)

	if c.metrics != nil {
		for _, r := range results {
			outcome := "ok"
			if _, failed := r.Response["error"]; failed {
				outcome = "error"
			}
			c.metrics.ToolCalls.WithLabelValues(r.Name, outcome).Inc()
		}
	}

	c.mu.RLock()
	remote := c.remote
	c.mu.RUnlock()
	if remote == nil {
		return
	}

	if err := remote.SendToolResults(results); err != nil {
		log.Printf("❌ [%s] Failed to send tool results: %v", c.shortID(), err)
	}
}

// handleInterrupted flushes everything queued locally the moment the
// agent is barged in on. The playback cursor resets so the next reply
// starts immediately.
func (c *Controller) handleInterrupted() {
	c.devices.Playback.Interrupt()
	if c.metrics != nil {
		c.metrics.Interruptions.Inc()
	}
	c.countEvent("interrupted")
}

func (c *Controller) handleTurnComplete() {
	c.countEvent("turn_complete")
}

func (c *Controller) handleRemoteError(err error) {
	c.emit(messages.NewErrorMessage(c.id, messages.ErrCodeUpstreamError, err.Error()))
	c.closeWith(StateError, err.Error())
}

// Tool side effects are forwarded to the UI shell as messages.

func (c *Controller) UpdateContactLink(contactURL string) {
	c.emit(messages.NewContactLinkMessage(c.id, contactURL))
}

func (c *Controller) OpenBookingForm(rec tools.BookingRecord) {
	c.emit(messages.NewBookingFormMessage(c.id, rec))
}

func (c *Controller) OpenScanner() {
	c.emit(messages.NewOpenScannerMessage(c.id))
}

func (c *Controller) Navigate(section string) {
	c.emit(messages.NewNavigateMessage(c.id, section))
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *Controller) countEvent(event string) {
	if c.metrics != nil {
		c.metrics.SessionEvents.WithLabelValues(event).Inc()
	}
}

func (c *Controller) shortID() string {
	if len(c.id) >= 8 {
		return c.id[:8]
	}
	return c.id
}
