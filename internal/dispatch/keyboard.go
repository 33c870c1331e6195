package dispatch

import (
	"latebot/internal/storage"
	"latebot/pkg/tgui"
)

// Callback actions carried by booking keyboards. Handled by the bot package.
const (
	ActionBookingDetails = "bk_details"
	ActionBookingApprove = "bk_approve"
	ActionBookingCancel  = "bk_cancel"
)

// BookingKeyboard builds the inline actions attached to creation notices.
// Approving is an agent action; customers only get details and cancel.
func BookingKeyboard(bookingID int64, role string) *tgui.Inline {
	id := itoa(bookingID)
	kb := tgui.NewInline()
	kb.Row(tgui.Btn("\U0001f4cb Details", tgui.Data(ActionBookingDetails, id)))
	if role == storage.RoleAgent {
		kb.Row(tgui.Btn("✅ Approve", tgui.Data(ActionBookingApprove, id)))
	}
	kb.Row(tgui.Btn("❌ Cancel", tgui.Data(ActionBookingCancel, id)))
	return kb
}
