package session

import (
	"context"

	"github.com/techaid-za/voicedesk/tools"
)

// RemoteChannel is the upstream voice link for one session.
type RemoteChannel interface {
	SendAudioFrame(pcm []byte) error
	SendSystemText(text string) error
	SendToolResults(results []tools.Result) error
	Close() error
}

// RemoteHandlers are the event callbacks a dialer must wire before the
// link starts delivering.
type RemoteHandlers struct {
	OnAudio       func(pcm []byte, sampleRate int)
	OnToolCall    func(calls []tools.Call)
	OnInterrupted func()
	OnComplete    func()
	OnError       func(err error)
}

// RemoteDialer opens the upstream link with the given system prompt.
type RemoteDialer func(ctx context.Context, systemPrompt string, h RemoteHandlers) (RemoteChannel, error)
