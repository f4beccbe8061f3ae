package gemini

import (
	"context"
	"fmt"
	"log"
	"sync"

	"google.golang.org/genai"

	"github.com/techaid-za/voicedesk/tools"
)

const (
	DefaultModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	DefaultVoice = "Zephyr"

	captureRate  = 16000
	playbackRate = 24000
)

// Config holds the upstream connection parameters.
type Config struct {
	APIKey string
	Model  string // defaults to DefaultModel
	Voice  string // defaults to DefaultVoice
}

// Channel manages the full-duplex voice link to the Gemini Live API.
// Set the callbacks before calling Connect.
type Channel struct {
	client  *genai.Client
	session *genai.Session
	model   string
	voice   string

	// Callbacks for handling server events
	OnAudio       func(pcm []byte, sampleRate int)
	OnToolCall    func(calls []tools.Call)
	OnInterrupted func()
	OnComplete    func()
	OnError       func(err error)

	mu     sync.RWMutex
	closed bool
}

// NewChannel creates the API client. No connection is made yet.
func NewChannel(ctx context.Context, cfg Config) (*Channel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	return &Channel{
		client: client,
		model:  model,
		voice:  voice,
	}, nil
}

// Connect establishes the Live session and starts the receive loop.
func (c *Channel) Connect(ctx context.Context, systemPrompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("channel is closed")
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{"AUDIO"},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: systemPrompt},
			},
		},
		Tools: Declarations(),
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: c.voice,
				},
			},
		},
	}

	session, err := c.client.Live.Connect(ctx, c.model, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Live API: %w", err)
	}

	c.session = session
	log.Printf("✅ Connected to Gemini Live (%s, voice %s)", c.model, c.voice)

	go c.receiveLoop()
	return nil
}

func (c *Channel) receiveLoop() {
	for {
		c.mu.RLock()
		if c.closed || c.session == nil {
			c.mu.RUnlock()
			return
		}
		session := c.session
		c.mu.RUnlock()

		// Receive blocks until a message arrives or the link drops
		resp, err := session.Receive()
		if err != nil {
			c.mu.RLock()
			closed := c.closed
			c.mu.RUnlock()

			if !closed {
				log.Printf("❌ Gemini receive error: %v", err)
				if c.OnError != nil {
					c.OnError(err)
				}
			}
			return
		}

		c.handleMessage(resp)
	}
}

func (c *Channel) handleMessage(resp *genai.LiveServerMessage) {
	if resp.ToolCall != nil && len(resp.ToolCall.FunctionCalls) > 0 {
		log.Printf("📥 Received from Gemini: %d function call(s)", len(resp.ToolCall.FunctionCalls))
		if c.OnToolCall != nil {
			calls := make([]tools.Call, 0, len(resp.ToolCall.FunctionCalls))
			for _, fc := range resp.ToolCall.FunctionCalls {
				calls = append(calls, tools.Call{
					ID:   fc.ID,
					Name: fc.Name,
					Args: fc.Args,
				})
			}
			c.OnToolCall(calls)
		}
	}

	if resp.ServerContent == nil {
		return
	}

	// The model was barged in on; whatever is queued locally is stale.
	if resp.ServerContent.Interrupted {
		log.Println("📥 Received from Gemini: interrupted")
		if c.OnInterrupted != nil {
			c.OnInterrupted()
		}
	}

	if resp.ServerContent.ModelTurn != nil {
		for _, part := range resp.ServerContent.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 && c.OnAudio != nil {
				c.OnAudio(part.InlineData.Data, playbackRate)
			}
		}
	}

	if resp.ServerContent.TurnComplete && c.OnComplete != nil {
		c.OnComplete()
	}
}

// SendAudioFrame forwards one PCM16 microphone frame upstream.
func (c *Channel) SendAudioFrame(pcm []byte) error {
	c.mu.RLock()
	session := c.session
	closed := c.closed
	c.mu.RUnlock()

	if closed || session == nil {
		return fmt.Errorf("channel is closed or not connected")
	}

	err := session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", captureRate),
			Data:     pcm,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// SendSystemText injects an out-of-band system message into the
// conversation (greeting nudge, scan results).
func (c *Channel) SendSystemText(text string) error {
	c.mu.RLock()
	session := c.session
	closed := c.closed
	c.mu.RUnlock()

	if closed || session == nil {
		return fmt.Errorf("channel is closed or not connected")
	}

	turnComplete := true
	err := session.SendClientContent(genai.LiveSendClientContentParameters{
		Turns: []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: text}},
			},
		},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}

	log.Printf("📤 Sent system text to Gemini (%d chars)", len(text))
	return nil
}

// SendToolResults returns function call results upstream.
func (c *Channel) SendToolResults(results []tools.Result) error {
	c.mu.RLock()
	session := c.session
	closed := c.closed
	c.mu.RUnlock()

	if closed || session == nil {
		return fmt.Errorf("channel is closed or not connected")
	}

	responses := make([]*genai.FunctionResponse, 0, len(results))
	for _, r := range results {
		responses = append(responses, &genai.FunctionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: r.Response,
		})
	}

	err := session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: responses,
	})
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}

	log.Printf("📤 Sent %d tool response(s) to Gemini", len(responses))
	return nil
}

// Close terminates the upstream connection. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
