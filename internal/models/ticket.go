package models

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// TicketState is the explicit lifecycle of a ticket. The export format keeps
// the legacy completed/isDeleted boolean pair; when both are set, deleted
// wins.
type TicketState string

const (
	StateActive    TicketState = "active"
	StateCompleted TicketState = "completed"
	StateDeleted   TicketState = "deleted"
)

func ValidState(s string) bool {
	switch TicketState(s) {
	case StateActive, StateCompleted, StateDeleted:
		return true
	}
	return false
}

type Ticket struct {
	ID            string
	ProductName   string
	Serial        string
	BarcodeFormat string
	Expiry        string
	Image         string
	OriginalImage string
	Images        []string
	Tags          []string
	RedeemURL     string
	State         TicketState
	CreatedAt     int64 // epoch ms
	CompletedAt   int64
	DeletedAt     int64

	// Extra keeps unknown fields from imported payloads so a re-export does
	// not drop them.
	Extra map[string]json.RawMessage
}

// ticketWire is the on-disk / export JSON shape, legacy boolean flags included.
type ticketWire struct {
	ID            string   `json:"id"`
	ProductName   string   `json:"productName"`
	Serial        string   `json:"serial,omitempty"`
	BarcodeFormat string   `json:"barcodeFormat,omitempty"`
	Expiry        string   `json:"expiry,omitempty"`
	Image         string   `json:"image,omitempty"`
	OriginalImage string   `json:"originalImage,omitempty"`
	Images        []string `json:"images,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	RedeemURL     string   `json:"redeemUrl,omitempty"`
	Completed     bool     `json:"completed"`
	IsDeleted     bool     `json:"isDeleted"`
	CreatedAt     int64    `json:"createdAt,omitempty"`
	CompletedAt   int64    `json:"completedAt,omitempty"`
	DeletedAt     int64    `json:"deletedAt,omitempty"`
}

var ticketKnownKeys = map[string]struct{}{
	"id": {}, "productName": {}, "serial": {}, "barcodeFormat": {},
	"expiry": {}, "image": {}, "originalImage": {}, "images": {},
	"tags": {}, "redeemUrl": {}, "completed": {}, "isDeleted": {},
	"createdAt": {}, "completedAt": {}, "deletedAt": {},
}

func (t *Ticket) UnmarshalJSON(data []byte) error {
	var w ticketWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = Ticket{
		ID:            w.ID,
		ProductName:   w.ProductName,
		Serial:        w.Serial,
		BarcodeFormat: w.BarcodeFormat,
		Expiry:        w.Expiry,
		Image:         w.Image,
		OriginalImage: w.OriginalImage,
		Images:        w.Images,
		Tags:          w.Tags,
		RedeemURL:     w.RedeemURL,
		CreatedAt:     w.CreatedAt,
		CompletedAt:   w.CompletedAt,
		DeletedAt:     w.DeletedAt,
	}

	switch {
	case w.IsDeleted:
		t.State = StateDeleted
	case w.Completed:
		t.State = StateCompleted
	default:
		t.State = StateActive
	}

	for k, v := range raw {
		if _, known := ticketKnownKeys[k]; known {
			continue
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = v
	}
	return nil
}

func (t *Ticket) MarshalJSON() ([]byte, error) {
	w := ticketWire{
		ID:            t.ID,
		ProductName:   t.ProductName,
		Serial:        t.Serial,
		BarcodeFormat: t.BarcodeFormat,
		Expiry:        t.Expiry,
		Image:         t.Image,
		OriginalImage: t.OriginalImage,
		Images:        t.Images,
		Tags:          t.Tags,
		RedeemURL:     t.RedeemURL,
		Completed:     t.State == StateCompleted,
		IsDeleted:     t.State == StateDeleted,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
		DeletedAt:     t.DeletedAt,
	}
	if len(t.Extra) == 0 {
		return json.Marshal(w)
	}

	known, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range t.Extra {
		if _, clash := ticketKnownKeys[k]; clash {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

func (t *Ticket) Clone() *Ticket {
	c := *t
	c.Images = append([]string(nil), t.Images...)
	c.Tags = append([]string(nil), t.Tags...)
	if t.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(t.Extra))
		for k, v := range t.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func (t *Ticket) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

var expiryLayouts = []string{
	"2006/01/02",
	"2006-01-02",
	"2006/1/2",
	"2006-1-2",
	time.RFC3339,
}

// ParseExpiry parses the loosely-formatted expiry strings the wallet accepts.
func ParseExpiry(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range expiryLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ExpiringSoon reports whether the ticket falls inside the notification
// window: at most notifyDays calendar days before expiry, or up to one day
// past it. Tickets without a parsable expiry never match.
func (t *Ticket) ExpiringSoon(now time.Time, notifyDays int) bool {
	if t.State != StateActive {
		return false
	}
	exp, ok := ParseExpiry(t.Expiry)
	if !ok {
		return false
	}
	diffDays := daysBetween(now, exp)
	return diffDays <= notifyDays && diffDays >= -1
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	u := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(u.Sub(f).Hours() / 24)
}
