package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"latebot/internal/directory"
	"latebot/internal/storage"
	"latebot/internal/timeutil"
	kit "latebot/internal/transport"
	logx "latebot/pkg/logx"
	"latebot/pkg/tgui"
)

// Settings menu callback actions.
const (
	actionSettingsMenu   = "set_menu"
	actionSettingsToggle = "set_toggle"
	actionLeadMenu       = "set_lead"
	actionLeadSet        = "set_lead_v"
	actionZoneMenu       = "set_tz"
	actionZoneRegion     = "tz_region"
	actionZoneSet        = "tz_zone"
)

// leadChoices are the reminder lead times offered by the picker, in minutes.
var leadChoices = []int{15, 30, 60, 120, 1440}

func leadLabel(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		d := minutes / 1440
		if d == 1 {
			return "1 day"
		}
		return strconv.Itoa(d) + " days"
	case minutes >= 60 && minutes%60 == 0:
		h := minutes / 60
		if h == 1 {
			return "1 hour"
		}
		return strconv.Itoa(h) + " hours"
	default:
		return strconv.Itoa(minutes) + " min"
	}
}

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "\U0001f6ab"
}

func (b *Bot) cmdSettings(ctx context.Context, m *kit.Message) {
	s, err := b.dir.SettingsOrDefault(ctx, m.ChatID)
	if err != nil {
		b.log.Error("settings lookup failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		b.reply(ctx, m.ChatID, "❌ Something went wrong, try again later.")
		return
	}
	text, kb := settingsMenu(s)
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyMarkupAdapter: kb.Markup()}
	if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, opt); err != nil {
		b.log.Warn("settings send failed", logx.Int64("chat", m.ChatID), logx.Err(err))
	}
}

func settingsMenu(s storage.Settings) (string, *tgui.Inline) {
	var sb strings.Builder
	sb.WriteString("⚙️ " + tgui.B("Notification settings").String() + "\n\n")
	sb.WriteString("New bookings: " + onOff(s.NotifyOnCreate) + "\n")
	sb.WriteString("Updates: " + onOff(s.NotifyOnUpdate) + "\n")
	sb.WriteString("Cancellations: " + onOff(s.NotifyOnCancel) + "\n")
	sb.WriteString("Reminders: " + onOff(s.NotifyReminders) + "\n")
	sb.WriteString("Reminder lead: " + tgui.B(leadLabel(s.ReminderLeadMinutes)).String() + "\n")
	zone := s.Timezone
	if zone == "" {
		zone = "not set"
	}
	sb.WriteString("Timezone: " + tgui.B(timeutil.ZoneLabel(zone)).String() + "\n")

	kb := tgui.NewInline()
	kb.Row(
		tgui.Btn(onOff(s.NotifyOnCreate)+" New", tgui.Data(actionSettingsToggle, directory.PrefCreate.String())),
		tgui.Btn(onOff(s.NotifyOnUpdate)+" Updates", tgui.Data(actionSettingsToggle, directory.PrefUpdate.String())),
	)
	kb.Row(
		tgui.Btn(onOff(s.NotifyOnCancel)+" Cancels", tgui.Data(actionSettingsToggle, directory.PrefCancel.String())),
		tgui.Btn(onOff(s.NotifyReminders)+" Reminders", tgui.Data(actionSettingsToggle, directory.PrefReminders.String())),
	)
	kb.Row(tgui.Btn("⏰ Reminder lead", tgui.Data(actionLeadMenu, "")))
	kb.Row(tgui.Btn("\U0001f30d Timezone", tgui.Data(actionZoneMenu, "")))
	return sb.String(), kb
}

// editSettingsMenu re-renders the menu in place after a change.
func (b *Bot) editSettingsMenu(ctx context.Context, cb *kit.Callback) {
	s, err := b.dir.SettingsOrDefault(ctx, cb.ChatID)
	if err != nil {
		b.log.Error("settings lookup failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		return
	}
	text, kb := settingsMenu(s)
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, ReplyMarkupAdapter: kb.Markup()}
	if err := b.adapter.EditText(ctx, ref, text, opt); err != nil {
		b.log.Debug("settings edit failed", logx.Err(err))
	}
}

func (b *Bot) cbSettingsMenu(ctx context.Context, cb *kit.Callback) {
	b.answer(ctx, cb.ID, "")
	b.editSettingsMenu(ctx, cb)
}

func (b *Bot) cbSettingsToggle(ctx context.Context, cb *kit.Callback, payload string) {
	pref, err := directory.ParsePref(payload)
	if err != nil {
		b.answer(ctx, cb.ID, "Unknown setting")
		return
	}

	s, err := b.dir.SettingsOrDefault(ctx, cb.ChatID)
	if err != nil {
		b.log.Error("settings lookup failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		b.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	s = pref.Toggle(s)
	if err := b.store.UpsertSettings(ctx, s); err != nil {
		b.log.Error("settings save failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		b.answer(ctx, cb.ID, "Something went wrong")
		return
	}

	b.answer(ctx, cb.ID, "Saved")
	b.editSettingsMenu(ctx, cb)
}

func (b *Bot) cbLeadMenu(ctx context.Context, cb *kit.Callback) {
	kb := tgui.NewInline()
	for _, minutes := range leadChoices {
		kb.Row(tgui.Btn(leadLabel(minutes), tgui.Data(actionLeadSet, strconv.Itoa(minutes))))
	}
	kb.Row(tgui.Btn("« Back", tgui.Data(actionSettingsMenu, "")))

	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	opt := &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: kb.Markup()}
	b.answer(ctx, cb.ID, "")
	if err := b.adapter.EditText(ctx, ref, "⏰ "+tgui.B("Remind me before the booking:").String(), opt); err != nil {
		b.log.Debug("lead menu edit failed", logx.Err(err))
	}
}

func (b *Bot) cbLeadSet(ctx context.Context, cb *kit.Callback, payload string) {
	minutes, err := strconv.Atoi(payload)
	if err != nil || !validLead(minutes) {
		b.answer(ctx, cb.ID, "Unknown lead time")
		return
	}

	s, err := b.dir.SettingsOrDefault(ctx, cb.ChatID)
	if err != nil {
		b.log.Error("settings lookup failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		b.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	s.ReminderLeadMinutes = minutes
	if err := b.store.UpsertSettings(ctx, s); err != nil {
		b.log.Error("settings save failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		b.answer(ctx, cb.ID, "Something went wrong")
		return
	}

	b.answer(ctx, cb.ID, "Lead time set to "+leadLabel(minutes))
	b.editSettingsMenu(ctx, cb)
}

func validLead(minutes int) bool {
	for _, v := range leadChoices {
		if v == minutes {
			return true
		}
	}
	return false
}

func (b *Bot) cbZoneMenu(ctx context.Context, cb *kit.Callback) {
	kb := tgui.NewInline()
	for _, r := range timeutil.Regions {
		kb.Row(tgui.Btn(r.Name, tgui.Data(actionZoneRegion, r.Key)))
	}
	kb.Row(tgui.Btn("« Back", tgui.Data(actionSettingsMenu, "")))

	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	opt := &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: kb.Markup()}
	b.answer(ctx, cb.ID, "")
	if err := b.adapter.EditText(ctx, ref, "\U0001f30d "+tgui.B("Pick a region:").String(), opt); err != nil {
		b.log.Debug("zone menu edit failed", logx.Err(err))
	}
}

func (b *Bot) cbZoneRegion(ctx context.Context, cb *kit.Callback, payload string) {
	region, ok := timeutil.RegionByKey(payload)
	if !ok {
		b.answer(ctx, cb.ID, "Unknown region")
		return
	}

	kb := tgui.NewInline()
	for _, z := range region.Zones {
		kb.Row(tgui.Btn(z.Label, tgui.Data(actionZoneSet, z.ID)))
	}
	kb.Row(tgui.Btn("« Back", tgui.Data(actionZoneMenu, "")))

	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	opt := &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: kb.Markup()}
	b.answer(ctx, cb.ID, "")
	if err := b.adapter.EditText(ctx, ref, "\U0001f30d "+tgui.B(region.Name).String(), opt); err != nil {
		b.log.Debug("zone list edit failed", logx.Err(err))
	}
}

func (b *Bot) cbZoneSet(ctx context.Context, cb *kit.Callback, payload string) {
	if !timeutil.KnownZone(payload) {
		b.answer(ctx, cb.ID, "Unknown timezone")
		return
	}

	s, err := b.dir.SettingsOrDefault(ctx, cb.ChatID)
	if err != nil {
		b.log.Error("settings lookup failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		b.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	s.Timezone = payload
	if err := b.store.UpsertSettings(ctx, s); err != nil {
		b.log.Error("settings save failed", logx.Int64("chat", cb.ChatID), logx.Err(err))
		b.answer(ctx, cb.ID, "Something went wrong")
		return
	}

	// Mirror the zone onto the user row and bindings so the scheduler and the
	// dispatcher see it without a settings lookup.
	if err := b.store.SetUserTimezone(ctx, cb.ChatID, payload); err != nil && !isNotFound(err) {
		b.log.Warn("user timezone update failed", logx.Err(err))
	}
	if err := b.store.SetBindingTimezone(ctx, cb.ChatID, payload); err != nil && !isNotFound(err) {
		b.log.Warn("binding timezone update failed", logx.Err(err))
	}

	b.answer(ctx, cb.ID, "Timezone set to "+timeutil.ZoneLabel(payload))
	b.editSettingsMenu(ctx, cb)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
