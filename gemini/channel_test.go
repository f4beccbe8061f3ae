package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/techaid-za/voicedesk/tools"
)

func TestHandleMessageToolCalls(t *testing.T) {
	var got []tools.Call
	c := &Channel{
		OnToolCall: func(calls []tools.Call) { got = calls },
	}

	c.handleMessage(&genai.LiveServerMessage{
		ToolCall: &genai.LiveServerToolCall{
			FunctionCalls: []*genai.FunctionCall{
				{ID: "fc-1", Name: tools.NameNavigate, Args: map[string]any{"section": "services"}},
				{ID: "fc-2", Name: tools.NameOpenScanner},
			},
		},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(got))
	}
	if got[0].ID != "fc-1" || got[0].Name != tools.NameNavigate {
		t.Errorf("unexpected first call: %+v", got[0])
	}
	if got[0].Args["section"] != "services" {
		t.Errorf("args not carried over: %+v", got[0].Args)
	}
}

func TestHandleMessageInterruptedBeforeAudio(t *testing.T) {
	var order []string
	c := &Channel{
		OnInterrupted: func() { order = append(order, "interrupted") },
		OnAudio:       func(pcm []byte, rate int) { order = append(order, "audio") },
	}

	c.handleMessage(&genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			Interrupted: true,
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{Data: []byte{0, 1, 2, 3}}},
				},
			},
		},
	})

	if len(order) != 2 || order[0] != "interrupted" || order[1] != "audio" {
		t.Fatalf("expected interrupt to fire before audio, got %v", order)
	}
}

func TestHandleMessageAudioRate(t *testing.T) {
	var gotRate int
	c := &Channel{
		OnAudio: func(pcm []byte, rate int) { gotRate = rate },
	}

	c.handleMessage(&genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{
				Parts: []*genai.Part{
					{InlineData: &genai.Blob{Data: []byte{0, 1}}},
				},
			},
		},
	})

	if gotRate != playbackRate {
		t.Errorf("expected rate %d, got %d", playbackRate, gotRate)
	}
}

func TestHandleMessageTurnComplete(t *testing.T) {
	done := false
	c := &Channel{OnComplete: func() { done = true }}

	c.handleMessage(&genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{TurnComplete: true},
	})

	if !done {
		t.Error("expected OnComplete to fire")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := &Channel{}
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := c.SendAudioFrame([]byte{0, 1}); err == nil {
		t.Error("expected send after close to fail")
	}
}

func TestDeclarationsCoverAllTools(t *testing.T) {
	decls := Declarations()
	if len(decls) != 1 {
		t.Fatalf("expected a single tool group, got %d", len(decls))
	}

	names := map[string]bool{}
	for _, fd := range decls[0].FunctionDeclarations {
		names[fd.Name] = true
	}
	for _, want := range []string{
		tools.NameUpdateContact, tools.NameOpenBooking,
		tools.NameOpenScanner, tools.NameNavigate,
	} {
		if !names[want] {
			t.Errorf("missing declaration for %s", want)
		}
	}
}
