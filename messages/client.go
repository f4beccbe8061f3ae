package messages

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/techaid-za/voicedesk/tools"
)

// Inbound message types (UI shell -> daemon).
const (
	TypeOpen       = "open"
	TypeClose      = "close"
	TypeSetMuted   = "set_muted"
	TypeScanResult = "scan_result"
	TypePing       = "ping"
)

// ClientMessage is one envelope from the UI shell. Payload is decoded
// in a second pass once the type is known.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OpenPayload carries the correlation context supplied when the voice
// window opens ("what the visitor was looking at").
type OpenPayload struct {
	Context string `json:"context,omitempty"`
}

// SetMutedPayload toggles microphone mute.
type SetMutedPayload struct {
	Muted bool `json:"muted"`
}

// DecodeClient parses an inbound envelope.
func DecodeClient(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode client message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("decode client message: missing type")
	}
	return &msg, nil
}

// DecodeOpen parses the payload of an "open" message. A missing payload
// means no context.
func (m *ClientMessage) DecodeOpen() (OpenPayload, error) {
	var p OpenPayload
	if len(m.Payload) == 0 {
		return p, nil
	}
	if err := sonic.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("decode open payload: %w", err)
	}
	return p, nil
}

// DecodeSetMuted parses the payload of a "set_muted" message.
func (m *ClientMessage) DecodeSetMuted() (SetMutedPayload, error) {
	var p SetMutedPayload
	if len(m.Payload) == 0 {
		return p, fmt.Errorf("decode set_muted payload: missing payload")
	}
	if err := sonic.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("decode set_muted payload: %w", err)
	}
	return p, nil
}

// DecodeScanResult parses the payload of a "scan_result" message.
func (m *ClientMessage) DecodeScanResult() (tools.ScanResult, error) {
	var p tools.ScanResult
	if len(m.Payload) == 0 {
		return p, fmt.Errorf("decode scan_result payload: missing payload")
	}
	if err := sonic.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("decode scan_result payload: %w", err)
	}
	return p, nil
}
