// Package dispatch turns booking lifecycle events into per-recipient
// Telegram deliveries: it resolves recipients through the directory, applies
// preference filtering, formats role-specific messages and records every
// attempt in the notification log.
package dispatch

import (
	"context"
	"strconv"

	"latebot/internal/directory"
	"latebot/internal/event"
	"latebot/internal/storage"
	kit "latebot/internal/transport"
	logx "latebot/pkg/logx"
)

type Dispatcher struct {
	dir    *directory.Directory
	sender kit.Sender
	store  storage.Store
	log    logx.Logger

	// sourceZone is the IANA zone booking date/time strings are expressed in.
	sourceZone string
}

func New(dir *directory.Directory, sender kit.Sender, store storage.Store, sourceZone string, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{dir: dir, sender: sender, store: store, log: log, sourceZone: sourceZone}
}

// Dispatch handles one webhook event. It never returns an error: malformed
// payloads and delivery failures are logged and dropped, because a bad
// webhook or an unreachable recipient must not crash the process.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, b *event.Booking) {
	if !event.Known(eventType) {
		d.log.Warn("unknown event type", logx.String("event", eventType))
		return
	}
	if err := event.Validate(eventType, b); err != nil {
		d.log.Error("event dropped", logx.Err(err))
		return
	}
	if eventType == event.TypeBookingUpdated && len(b.Changes) == 0 {
		// Nothing user-visible changed.
		return
	}

	log := d.log.With(logx.String("event", eventType), logx.Int64("booking", b.BookingID))

	// notified tracks addresses already delivered to within this one call,
	// so the legacy fallback can't double-deliver to a bound address.
	notified := map[int64]struct{}{}

	// 1. Modern path: every chat bound to the agent.
	if b.AgentID != 0 {
		bindings, err := d.dir.BindingsForAgent(ctx, b.AgentID)
		if err != nil {
			log.Error("binding lookup failed", logx.Int64("agent", b.AgentID), logx.Err(err))
		}
		for _, bind := range bindings {
			d.deliverOne(ctx, log, eventType, b, recipient{
				chatID: bind.ChatID,
				role:   storage.RoleAgent,
				zone:   bind.Timezone,
				bound:  true,
			}, notified)
		}
	}

	// 2. Legacy fallback: single agent address embedded in the payload.
	if chat := int64(b.Agent.TelegramChatID); chat != 0 {
		d.deliverOne(ctx, log, eventType, b, recipient{
			chatID: chat,
			role:   storage.RoleAgent,
		}, notified)
	}

	// 3. Counterpart: customer address from the payload (no fan-out).
	if chat := int64(b.Customer.TelegramChatID); chat != 0 {
		d.deliverOne(ctx, log, eventType, b, recipient{
			chatID: chat,
			role:   storage.RoleCustomer,
			zone:   b.Customer.Timezone,
		}, notified)
	}
}

type recipient struct {
	chatID int64
	role   string
	zone   string // fallback display zone when settings carry none
	// bound recipients come from an agent binding, which is itself an opt-in.
	// Payload-only addresses must have a settings row to receive anything.
	bound bool
}

// resolveSettings returns the effective settings for a recipient, with
// ok=false meaning the address never opted in and must be skipped.
func (d *Dispatcher) resolveSettings(ctx context.Context, r recipient) (storage.Settings, bool, error) {
	if r.bound {
		s, err := d.dir.SettingsOrDefault(ctx, r.chatID)
		if err != nil {
			return storage.Settings{}, false, err
		}
		return s, true, nil
	}
	return d.dir.ExplicitSettings(ctx, r.chatID)
}

// deliverOne evaluates preferences and delivers to a single recipient.
// Failures are recorded and isolated; they never abort sibling deliveries.
func (d *Dispatcher) deliverOne(ctx context.Context, log logx.Logger, eventType string, b *event.Booking, r recipient, notified map[int64]struct{}) {
	if _, dup := notified[r.chatID]; dup {
		return
	}

	settings, ok, err := d.resolveSettings(ctx, r)
	if err != nil {
		log.Error("settings lookup failed", logx.Int64("chat", r.chatID), logx.Err(err))
		return
	}
	if !ok {
		// No binding, no settings row: the address never opted in.
		return
	}
	if !wantsEvent(settings, eventType, b.NewStatus) {
		return
	}

	zone := settings.Timezone
	if zone == "" {
		zone = r.zone
	}

	text := formatEvent(eventType, b, r.role, d.sourceZone, zone)
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if eventType == event.TypeBookingCreated {
		opt.ReplyMarkupAdapter = BookingKeyboard(b.BookingID, r.role).Markup()
	}

	_, sendErr := d.sender.SendText(ctx, kit.ChatTarget{ChatID: r.chatID}, text, opt)
	d.logAttempt(ctx, r.chatID, eventType, b.BookingID, sendErr)
	if sendErr != nil {
		log.Error("delivery failed", logx.Int64("chat", r.chatID), logx.Err(sendErr))
		return
	}

	notified[r.chatID] = struct{}{}
	log.Info("notification sent", logx.Int64("chat", r.chatID), logx.String("role", r.role))
}

// SendReminder is the scheduler's send-one path: role-specific reminder text,
// no action keyboard. Delivery failures are logged, not returned; the caller
// marks the ledger either way (a failed reminder is not retried).
func (d *Dispatcher) SendReminder(ctx context.Context, u storage.User, b *event.Booking) {
	settings, err := d.dir.SettingsOrDefault(ctx, u.ChatID)
	if err != nil {
		d.log.Error("settings lookup failed", logx.Int64("chat", u.ChatID), logx.Err(err))
		settings = storage.DefaultSettings(u.ChatID, 0)
	}
	zone := settings.Timezone
	if zone == "" {
		zone = u.Timezone
	}

	text := formatReminder(b, u.Role, d.sourceZone, zone)
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

	_, sendErr := d.sender.SendText(ctx, kit.ChatTarget{ChatID: u.ChatID}, text, opt)
	d.logAttempt(ctx, u.ChatID, event.TypeReminder, b.BookingID, sendErr)
	if sendErr != nil {
		d.log.Error("reminder delivery failed",
			logx.Int64("chat", u.ChatID), logx.Int64("booking", b.BookingID), logx.Err(sendErr))
		return
	}
	d.log.Info("reminder sent", logx.Int64("chat", u.ChatID), logx.Int64("booking", b.BookingID))
}

func (d *Dispatcher) logAttempt(ctx context.Context, chatID int64, eventType string, bookingID int64, sendErr error) {
	e := storage.NotificationLogEntry{
		ChatID:    chatID,
		Type:      eventType,
		BookingID: bookingID,
		Success:   sendErr == nil,
	}
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	if err := d.store.AppendNotificationLog(ctx, e); err != nil {
		d.log.Warn("notification log write failed", logx.Err(err))
	}
}

// wantsEvent applies the per-category preference gate. A transition to
// cancelled needs only the cancel preference; any other status transition
// needs the update preference.
func wantsEvent(s storage.Settings, eventType, newStatus string) bool {
	switch eventType {
	case event.TypeBookingCreated:
		return s.NotifyOnCreate
	case event.TypeBookingUpdated:
		return s.NotifyOnUpdate
	case event.TypeBookingStatusChanged:
		if newStatus == event.StatusCancelled {
			return s.NotifyOnCancel
		}
		return s.NotifyOnUpdate
	}
	return false
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
