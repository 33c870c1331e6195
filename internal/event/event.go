// Package event defines the webhook payload the booking plugin sends and its
// per-event-type validation.
package event

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Event types fired by the booking plugin.
const (
	TypeBookingCreated       = "booking_created"
	TypeBookingUpdated       = "booking_updated"
	TypeBookingStatusChanged = "booking_status_changed"
	// TypeReminder is not a webhook type; it tags scheduler-driven sends in
	// the notification log.
	TypeReminder = "reminder"
)

// Booking statuses the plugin reports.
const (
	StatusApproved  = "approved"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
)

// Envelope is the raw webhook body: a type tag plus the booking snapshot.
type Envelope struct {
	EventType string   `json:"event_type"`
	Data      *Booking `json:"data"`
}

// ChatID tolerates both numeric and quoted-string JSON encodings; the
// WordPress side stores chat ids as strings.
type ChatID int64

func (c *ChatID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("chat id: %w", err)
	}
	*c = ChatID(n)
	return nil
}

// Party is an actor sub-object (agent or customer) embedded in a booking.
// TelegramChatID is the legacy single-address field; the modern path resolves
// agent addresses through bindings instead.
type Party struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	TelegramChatID ChatID `json:"telegram_chat_id,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

type ServiceInfo struct {
	Name string `json:"name"`
}

// Change is one field of the structured diff attached to update events.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Booking is the snapshot carried by every event.
type Booking struct {
	BookingID   int64        `json:"booking_id"`
	AgentID     int64        `json:"agent_id,omitempty"`
	Agent       *Party       `json:"agent"`
	Customer    *Party       `json:"customer"`
	Service     *ServiceInfo `json:"service"`
	StartDate   string       `json:"start_date"`
	StartTime   string       `json:"start_time"`
	EndTime     string       `json:"end_time"`
	BookingCode string       `json:"booking_code,omitempty"`
	MeetURL     string       `json:"google_meet_url,omitempty"`

	// Update events only.
	Changes map[string]Change `json:"changes,omitempty"`

	// Status-change events only.
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

// Validate checks the minimum field set for the given event type.
// Missing fields mean the event is dropped (logged by the caller), never a
// partial delivery.
func Validate(eventType string, b *Booking) error {
	if b == nil {
		return fmt.Errorf("%s: missing data", eventType)
	}
	var missing []string
	if b.BookingID == 0 {
		missing = append(missing, "booking_id")
	}
	if b.Agent == nil {
		missing = append(missing, "agent")
	}
	if b.Customer == nil {
		missing = append(missing, "customer")
	}
	if b.Service == nil {
		missing = append(missing, "service")
	}
	if eventType == TypeBookingStatusChanged {
		if b.OldStatus == "" {
			missing = append(missing, "old_status")
		}
		if b.NewStatus == "" {
			missing = append(missing, "new_status")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing required fields: %s", eventType, strings.Join(missing, ", "))
	}
	return nil
}

// Known reports whether eventType is one the dispatcher handles.
func Known(eventType string) bool {
	switch eventType {
	case TypeBookingCreated, TypeBookingUpdated, TypeBookingStatusChanged:
		return true
	}
	return false
}
