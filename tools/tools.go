// Package tools implements the tool-calling side of the voice session: the
// closed set of operations the remote agent may invoke mid-conversation,
// argument validation at the dispatch boundary, and the booking/scan record
// types those operations exchange with the UI shell.
package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Tool names the remote agent may call. Anything else is answered as
// unsupported, never dropped.
const (
	NameUpdateContact = "update_whatsapp_context"
	NameOpenBooking   = "open_booking_form"
	NameOpenScanner   = "open_scanner"
	NameNavigate      = "navigate_to_section"
)

// Call is one inbound tool invocation. ID is the opaque correlation token
// that pairs it with its Result.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Result answers one Call, matched by ID, never by arrival order.
type Result struct {
	ID       string
	Name     string
	Response map[string]any
}

// ServiceTypes is the closed set of bookable service categories.
var ServiceTypes = []string{"Repair", "Diagnostic", "Software", "Network"}

// Sections the agent may navigate the UI to.
var Sections = []string{"home", "services", "remote", "contact"}

var (
	errSummaryRequired = errors.New("summary is required")
	errUnknownSection  = errors.New("unknown section")
	errBadServiceType  = errors.New("invalid serviceType")
)

// BookingRecord is the partial booking form state. Fields the agent has not
// gathered yet stay empty; repeated tool calls merge instead of replacing.
type BookingRecord struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
	DeviceType  string `json:"deviceType,omitempty"`
	ServiceType string `json:"serviceType,omitempty"`
	Issue       string `json:"issue,omitempty"`
}

// Merge overlays in on top of r: non-empty incoming fields win, known fields
// survive when the incoming record omits them.
func (r BookingRecord) Merge(in BookingRecord) BookingRecord {
	pick := func(old, new string) string {
		if strings.TrimSpace(new) != "" {
			return new
		}
		return old
	}
	return BookingRecord{
		Name:        pick(r.Name, in.Name),
		Phone:       pick(r.Phone, in.Phone),
		Email:       pick(r.Email, in.Email),
		Address:     pick(r.Address, in.Address),
		DeviceType:  pick(r.DeviceType, in.DeviceType),
		ServiceType: pick(r.ServiceType, in.ServiceType),
		Issue:       pick(r.Issue, in.Issue),
	}
}

// IsZero reports whether no field has been filled in.
func (r BookingRecord) IsZero() bool {
	return r == BookingRecord{}
}

// ScanResult is the record produced by the visual scanner collaborator.
type ScanResult struct {
	DeviceType   string `json:"deviceType"`
	Model        string `json:"model"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Condition    string `json:"condition"`
	Description  string `json:"description"`
}

// Fingerprint is a stable digest used to inject each distinct result into
// the conversation exactly once.
func (s ScanResult) Fingerprint() string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		s.DeviceType, s.Model, s.SerialNumber, s.Condition, s.Description,
	}, "\x1f")))
	return hex.EncodeToString(h[:8])
}

// Summary renders the result as a one-shot system text for the agent.
func (s ScanResult) Summary() string {
	var b strings.Builder
	b.WriteString("System: A device scan just completed on the user's screen. ")
	fmt.Fprintf(&b, "Device: %s %s.", s.DeviceType, s.Model)
	if s.SerialNumber != "" {
		fmt.Fprintf(&b, " Serial: %s.", s.SerialNumber)
	}
	if s.Condition != "" {
		fmt.Fprintf(&b, " Condition: %s.", s.Condition)
	}
	if s.Description != "" {
		fmt.Fprintf(&b, " Notes: %s.", s.Description)
	}
	b.WriteString(" Use this to help the user; offer to pre-fill the booking form.")
	return b.String()
}

// decodeString pulls an optional string argument out of the loosely typed
// wire mapping.
func decodeString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func decodeContactSummary(args map[string]any) (string, error) {
	summary := strings.TrimSpace(decodeString(args, "summary"))
	if summary == "" {
		return "", errSummaryRequired
	}
	return summary, nil
}

func decodeBooking(args map[string]any) (BookingRecord, error) {
	rec := BookingRecord{
		Name:        decodeString(args, "name"),
		Phone:       decodeString(args, "phone"),
		Email:       decodeString(args, "email"),
		Address:     decodeString(args, "address"),
		DeviceType:  decodeString(args, "deviceType"),
		ServiceType: decodeString(args, "serviceType"),
		Issue:       decodeString(args, "issue"),
	}
	if rec.ServiceType != "" && !contains(ServiceTypes, rec.ServiceType) {
		return BookingRecord{}, fmt.Errorf("%w: %q", errBadServiceType, rec.ServiceType)
	}
	return rec, nil
}

func decodeSection(args map[string]any) (string, error) {
	section := strings.ToLower(strings.TrimSpace(decodeString(args, "section")))
	if !contains(Sections, section) {
		return "", fmt.Errorf("%w: %q", errUnknownSection, section)
	}
	return section, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
