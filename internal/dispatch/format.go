package dispatch

import (
	"sort"
	"strings"

	"latebot/internal/event"
	"latebot/internal/storage"
	"latebot/internal/timeutil"
	"latebot/pkg/tgui"
)

// statusIcon decorates status-change messages.
var statusIcon = map[string]string{
	event.StatusApproved:  "✅",
	event.StatusCancelled: "❌",
	event.StatusPending:   "⏳",
}

func iconFor(status string) string {
	if icon, ok := statusIcon[status]; ok {
		return icon
	}
	return "\U0001f4dd"
}

// changeLabel maps diff keys to display labels; unknown keys pass through.
var changeLabel = map[string]string{
	"start_date":  "Date",
	"start_time":  "Start time",
	"end_time":    "End time",
	"service":     "Service",
	"agent":       "Agent",
	"status":      "Status",
	"customer":    "Customer",
	"meet_url":    "Meet link",
	"google_meet": "Meet link",
}

func formatEvent(eventType string, b *event.Booking, role, srcZone, zone string) string {
	switch eventType {
	case event.TypeBookingCreated:
		return formatCreated(b, role, srcZone, zone)
	case event.TypeBookingUpdated:
		return formatUpdated(b, role, srcZone, zone)
	case event.TypeBookingStatusChanged:
		return formatStatusChanged(b, role, srcZone, zone)
	}
	return ""
}

func formatCreated(b *event.Booking, role, srcZone, zone string) string {
	var sb strings.Builder
	if role == storage.RoleAgent {
		sb.WriteString("\U0001f514 " + tgui.B("New booking").String() + "\n\n")
		writeCounterpart(&sb, "Customer", b.Customer)
	} else {
		sb.WriteString("✅ " + tgui.B("Your booking is confirmed").String() + "\n\n")
		writeCounterpart(&sb, "Agent", b.Agent)
	}
	writeCore(&sb, b, srcZone, zone)
	return sb.String()
}

func formatUpdated(b *event.Booking, role, srcZone, zone string) string {
	var sb strings.Builder
	if role == storage.RoleAgent {
		sb.WriteString("✏️ " + tgui.B("Booking updated").String() + "\n\n")
		writeCounterpart(&sb, "Customer", b.Customer)
	} else {
		sb.WriteString("✏️ " + tgui.B("Your booking was updated").String() + "\n\n")
		writeCounterpart(&sb, "Agent", b.Agent)
	}
	writeCore(&sb, b, srcZone, zone)

	if len(b.Changes) > 0 {
		sb.WriteString("\n" + tgui.B("Changes").String() + "\n")
		keys := make([]string, 0, len(b.Changes))
		for k := range b.Changes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ch := b.Changes[k]
			label := changeLabel[k]
			if label == "" {
				label = k
			}
			sb.WriteString(tgui.Esc(label).String() + ": " +
				tgui.I(ch.Old).String() + " → " + tgui.B(ch.New).String() + "\n")
		}
	}
	return sb.String()
}

func formatStatusChanged(b *event.Booking, role, srcZone, zone string) string {
	var sb strings.Builder
	icon := iconFor(b.NewStatus)
	if role == storage.RoleAgent {
		sb.WriteString(icon + " " + tgui.B("Booking status changed").String() + "\n\n")
		writeCounterpart(&sb, "Customer", b.Customer)
	} else {
		switch b.NewStatus {
		case event.StatusCancelled:
			sb.WriteString(icon + " " + tgui.B("Your booking was cancelled").String() + "\n\n")
		case event.StatusApproved:
			sb.WriteString(icon + " " + tgui.B("Your booking was approved").String() + "\n\n")
		default:
			sb.WriteString(icon + " " + tgui.B("Your booking status changed").String() + "\n\n")
		}
		writeCounterpart(&sb, "Agent", b.Agent)
	}
	writeCore(&sb, b, srcZone, zone)
	sb.WriteString("\nStatus: " + tgui.I(b.OldStatus).String() + " → " + tgui.B(b.NewStatus).String() + "\n")
	return sb.String()
}

func formatReminder(b *event.Booking, role, srcZone, zone string) string {
	var sb strings.Builder
	sb.WriteString("⏰ " + tgui.B("Upcoming booking").String() + "\n\n")
	if role == storage.RoleAgent {
		writeCounterpart(&sb, "Customer", b.Customer)
	} else {
		writeCounterpart(&sb, "Agent", b.Agent)
	}
	writeCore(&sb, b, srcZone, zone)
	return sb.String()
}

// writeCore renders the shared service/date/time block, converting display
// times into the recipient's zone when one is known.
func writeCore(sb *strings.Builder, b *event.Booking, srcZone, zone string) {
	if b.Service != nil && b.Service.Name != "" {
		sb.WriteString("Service: " + tgui.B(b.Service.Name).String() + "\n")
	}

	date, start := b.StartDate, b.StartTime
	if d, s, err := timeutil.ConvertZone(b.StartDate, b.StartTime, srcZone, zone); err == nil {
		date, start = d, s
	}
	end := b.EndTime
	if _, e, err := timeutil.ConvertZone(b.StartDate, b.EndTime, srcZone, zone); err == nil {
		end = e
	}

	sb.WriteString("Date: " + tgui.B(date).String() + "\n")
	if end != "" {
		sb.WriteString("Time: " + tgui.B(start+" - "+end).String())
	} else {
		sb.WriteString("Time: " + tgui.B(start).String())
	}
	if zone != "" && zone != srcZone {
		sb.WriteString(" " + tgui.I(zone).String())
	}
	sb.WriteString("\n")

	if b.BookingCode != "" {
		sb.WriteString("Code: " + tgui.Code(b.BookingCode).String() + "\n")
	}
	if b.MeetURL != "" {
		sb.WriteString(tgui.Link("Join meeting", b.MeetURL).String() + "\n")
	}
}

func writeCounterpart(sb *strings.Builder, label string, p *event.Party) {
	if p == nil || p.Name == "" {
		return
	}
	sb.WriteString(label + ": " + tgui.B(p.Name).String() + "\n")
	if p.Phone != "" {
		sb.WriteString("Phone: " + tgui.Code(p.Phone).String() + "\n")
	}
}
