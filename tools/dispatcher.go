package tools

import (
	"fmt"
	"log"
	"net/url"
	"sync"
)

// Effects is everything a tool side effect can do to the outside world. The
// UI shell bridge implements it; tests use a recorder.
type Effects interface {
	UpdateContactLink(url string)
	OpenBookingForm(rec BookingRecord)
	OpenScanner()
	Navigate(section string)
}

// Dispatcher resolves inbound tool calls against the fixed registry, runs
// the side effects synchronously, and produces one id-tagged Result per
// Call. It owns the best-known booking record for the session so repeated
// open_booking_form calls merge instead of duplicating.
type Dispatcher struct {
	effects        Effects
	whatsappNumber string

	mu         sync.Mutex
	booking    BookingRecord
	contactURL string
	save       func(BookingRecord)
}

// NewDispatcher creates a dispatcher whose contact link starts as the bare
// wa.me URL for whatsappNumber.
func NewDispatcher(effects Effects, whatsappNumber string) *Dispatcher {
	return &Dispatcher{
		effects:        effects,
		whatsappNumber: whatsappNumber,
		contactURL:     fmt.Sprintf("https://wa.me/%s", whatsappNumber),
	}
}

// SetSaveHook installs the storage collaborator called after every booking
// merge.
func (d *Dispatcher) SetSaveHook(save func(BookingRecord)) {
	d.mu.Lock()
	d.save = save
	d.mu.Unlock()
}

// RestoreBooking seeds the best-known record, typically from the load hook
// of the storage collaborator at session open.
func (d *Dispatcher) RestoreBooking(rec BookingRecord) {
	d.mu.Lock()
	d.booking = rec
	d.mu.Unlock()
}

// Booking returns the current best-known record.
func (d *Dispatcher) Booking() BookingRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.booking
}

// ContactURL returns the current outbound contact link.
func (d *Dispatcher) ContactURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contactURL
}

// Dispatch answers a whole inbound batch. Every call gets a Result carrying
// its own id — unknown names and failed side effects included — so the
// remote agent's turn is never left waiting.
func (d *Dispatcher) Dispatch(calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, Result{
			ID:       call.ID,
			Name:     call.Name,
			Response: d.dispatchOne(call),
		})
	}
	return results
}

func (d *Dispatcher) dispatchOne(call Call) map[string]any {
	switch call.Name {
	case NameUpdateContact:
		summary, err := decodeContactSummary(call.Args)
		if err != nil {
			return failure(err)
		}
		link := fmt.Sprintf("https://wa.me/%s?text=%s", d.whatsappNumber, url.QueryEscape(summary))
		d.mu.Lock()
		d.contactURL = link
		d.mu.Unlock()
		d.effects.UpdateContactLink(link)
		return map[string]any{"result": "WhatsApp link updated on the user's screen."}

	case NameOpenBooking:
		incoming, err := decodeBooking(call.Args)
		if err != nil {
			return failure(err)
		}
		d.mu.Lock()
		d.booking = d.booking.Merge(incoming)
		merged := d.booking
		save := d.save
		d.mu.Unlock()
		d.effects.OpenBookingForm(merged)
		if save != nil {
			save(merged)
		}
		return map[string]any{"result": "Booking form opened/updated on the user's screen."}

	case NameOpenScanner:
		d.effects.OpenScanner()
		return map[string]any{"result": "Visual scanner opened on the user's screen."}

	case NameNavigate:
		section, err := decodeSection(call.Args)
		if err != nil {
			return failure(err)
		}
		d.effects.Navigate(section)
		return map[string]any{"result": fmt.Sprintf("Navigated the user to the %s section.", section)}

	default:
		log.Printf("⚠️ unsupported tool called: %s", call.Name)
		return map[string]any{"error": fmt.Sprintf("unsupported tool: %s", call.Name)}
	}
}

func failure(err error) map[string]any {
	return map[string]any{"error": err.Error()}
}
