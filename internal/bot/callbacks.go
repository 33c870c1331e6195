package bot

import (
	"context"
	"strconv"
	"strings"

	"latebot/internal/dispatch"
	"latebot/internal/event"
	"latebot/internal/timeutil"
	kit "latebot/internal/transport"
	logx "latebot/pkg/logx"
	"latebot/pkg/tgui"
)

func (b *Bot) handleCallback(ctx context.Context, cb *kit.Callback) {
	action, payload := tgui.SplitData(cb.Data)

	switch action {
	case dispatch.ActionBookingDetails:
		b.cbBookingDetails(ctx, cb, payload)
	case dispatch.ActionBookingApprove:
		b.cbBookingStatus(ctx, cb, payload, event.StatusApproved)
	case dispatch.ActionBookingCancel:
		b.cbBookingStatus(ctx, cb, payload, event.StatusCancelled)
	case actionSettingsMenu:
		b.cbSettingsMenu(ctx, cb)
	case actionSettingsToggle:
		b.cbSettingsToggle(ctx, cb, payload)
	case actionLeadMenu:
		b.cbLeadMenu(ctx, cb)
	case actionLeadSet:
		b.cbLeadSet(ctx, cb, payload)
	case actionZoneMenu:
		b.cbZoneMenu(ctx, cb)
	case actionZoneRegion:
		b.cbZoneRegion(ctx, cb, payload)
	case actionZoneSet:
		b.cbZoneSet(ctx, cb, payload)
	default:
		b.answer(ctx, cb.ID, "")
	}
}

func (b *Bot) cbBookingDetails(ctx context.Context, cb *kit.Callback, payload string) {
	bookingID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		b.answer(ctx, cb.ID, "Bad booking reference")
		return
	}

	res := b.lp.Booking(ctx, bookingID, cb.ChatID)
	if !res.Success || res.Booking == nil {
		msg := res.Message
		if msg == "" {
			msg = "Booking not found"
		}
		b.answer(ctx, cb.ID, msg)
		return
	}

	zone := b.displayZone(ctx, cb.ChatID)
	text := formatBookingDetails(res.Booking, b.cfg.SourceZone, zone)
	b.answer(ctx, cb.ID, "")
	b.reply(ctx, cb.ChatID, text)
}

// cbBookingStatus performs the approve/cancel actions attached to creation
// notices. Authorization lives upstream: the plugin rejects status changes
// the chat is not allowed to make.
func (b *Bot) cbBookingStatus(ctx context.Context, cb *kit.Callback, payload, newStatus string) {
	bookingID, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		b.answer(ctx, cb.ID, "Bad booking reference")
		return
	}

	res := b.lp.SetStatus(ctx, bookingID, cb.ChatID, newStatus)
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "Could not change the booking"
		}
		b.answer(ctx, cb.ID, msg)
		return
	}

	b.log.Info("booking status set via callback",
		logx.Int64("chat", cb.ChatID), logx.Int64("booking", bookingID), logx.String("status", newStatus))
	if newStatus == event.StatusApproved {
		b.answer(ctx, cb.ID, "Booking approved ✅")
	} else {
		b.answer(ctx, cb.ID, "Booking cancelled ❌")
	}
}

func formatBookingDetails(bk *event.Booking, srcZone, zone string) string {
	var sb strings.Builder
	sb.WriteString("\U0001f4cb " + tgui.B("Booking details").String() + "\n\n")
	if bk.Service != nil && bk.Service.Name != "" {
		sb.WriteString("Service: " + tgui.B(bk.Service.Name).String() + "\n")
	}
	if bk.Agent != nil && bk.Agent.Name != "" {
		sb.WriteString("Agent: " + tgui.Esc(bk.Agent.Name).String() + "\n")
	}
	if bk.Customer != nil && bk.Customer.Name != "" {
		sb.WriteString("Customer: " + tgui.Esc(bk.Customer.Name).String() + "\n")
		if bk.Customer.Phone != "" {
			sb.WriteString("Phone: " + tgui.Code(bk.Customer.Phone).String() + "\n")
		}
		if bk.Customer.Email != "" {
			sb.WriteString("Email: " + tgui.Code(bk.Customer.Email).String() + "\n")
		}
	}

	date, start := bk.StartDate, bk.StartTime
	if d, s, err := timeutil.ConvertZone(bk.StartDate, bk.StartTime, srcZone, zone); err == nil {
		date, start = d, s
	}
	end := bk.EndTime
	if _, e, err := timeutil.ConvertZone(bk.StartDate, bk.EndTime, srcZone, zone); err == nil {
		end = e
	}
	sb.WriteString("Date: " + tgui.B(date).String() + "\n")
	if end != "" {
		sb.WriteString("Time: " + tgui.B(start+" - "+end).String() + "\n")
	} else {
		sb.WriteString("Time: " + tgui.B(start).String() + "\n")
	}
	if bk.BookingCode != "" {
		sb.WriteString("Code: " + tgui.Code(bk.BookingCode).String() + "\n")
	}
	if bk.MeetURL != "" {
		sb.WriteString(tgui.Link("Join meeting", bk.MeetURL).String() + "\n")
	}
	return sb.String()
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.adapter.AnswerCallback(ctx, callbackID, text); err != nil {
		b.log.Debug("callback answer failed", logx.Err(err))
	}
}
