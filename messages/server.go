package messages

import (
	"github.com/bytedance/sonic"

	"github.com/techaid-za/voicedesk/tools"
	"github.com/techaid-za/voicedesk/visualizer"
)

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeSessionLimit     = "SESSION_LIMIT"
	ErrCodeVoiceUnavailable = "VOICE_UNAVAILABLE"
	ErrCodeUpstreamError    = "UPSTREAM_ERROR"
)

// Outbound message types (daemon -> UI shell).
const (
	TypeStatus      = "status"
	TypeVisual      = "visual"
	TypeContactLink = "contact_link"
	TypeBookingForm = "booking_form"
	TypeOpenScanner = "open_scanner"
	TypeNavigate    = "navigate"
	TypeError       = "error"
	TypePong        = "pong"
)

// ServerMessage represents a message sent to the UI shell
type ServerMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// StatusPayload reports the session state machine
type StatusPayload struct {
	Status  string `json:"status"` // "connecting", "connected", "disconnected", "error"
	Message string `json:"message,omitempty"`
}

// ContactLinkPayload carries the prefilled chat hand-off URL
type ContactLinkPayload struct {
	URL string `json:"url"`
}

// NavigatePayload names the shell section to scroll to
type NavigatePayload struct {
	Section string `json:"section"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode serializes an outbound message.
func Encode(msg *ServerMessage) ([]byte, error) {
	return sonic.Marshal(msg)
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewVisualMessage creates an orb animation frame message
func NewVisualMessage(sessionID string, frame visualizer.Frame) *ServerMessage {
	return &ServerMessage{
		Type:      TypeVisual,
		SessionID: sessionID,
		Payload:   frame,
	}
}

// NewContactLinkMessage creates a contact hand-off message
func NewContactLinkMessage(sessionID, contactURL string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeContactLink,
		SessionID: sessionID,
		Payload:   ContactLinkPayload{URL: contactURL},
	}
}

// NewBookingFormMessage creates a booking form update message
func NewBookingFormMessage(sessionID string, record tools.BookingRecord) *ServerMessage {
	return &ServerMessage{
		Type:      TypeBookingForm,
		SessionID: sessionID,
		Payload:   record,
	}
}

// NewOpenScannerMessage asks the shell to raise the device scanner
func NewOpenScannerMessage(sessionID string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeOpenScanner,
		SessionID: sessionID,
	}
}

// NewNavigateMessage asks the shell to scroll to a section
func NewNavigateMessage(sessionID, section string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeNavigate,
		SessionID: sessionID,
		Payload:   NavigatePayload{Section: section},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// NewPongMessage answers a client ping
func NewPongMessage(sessionID string) *ServerMessage {
	return &ServerMessage{
		Type:      TypePong,
		SessionID: sessionID,
	}
}
