package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"latebot/internal/event"
	"latebot/internal/storage"
	"latebot/internal/timeutil"
	kit "latebot/internal/transport"
	logx "latebot/pkg/logx"
	"latebot/pkg/tgui"
)

const helpText = `<b>Commands</b>
/start &lt;token&gt; - link your account
/today - today's bookings
/week - this week's bookings
/settings - notification preferences
/unbind - remove your agent link
/help - this message`

// cmdStart handles both token kinds: an agent bind token issued through the
// admin API, or a registration token issued by the booking plugin UI. Without
// a token it just greets.
func (b *Bot) cmdStart(ctx context.Context, m *kit.Message, token string) {
	if token == "" {
		b.reply(ctx, m.ChatID, "\U0001f44b Welcome! Link your account with /start <token>.\n\n"+helpText)
		return
	}

	if b.redeemBindToken(ctx, m, token) {
		return
	}
	b.registerViaPlugin(ctx, m, token)
}

// redeemBindToken tries the local one-time agent token path. Returns false
// when the token is unknown locally, so the caller can fall through to the
// plugin registration path.
func (b *Bot) redeemBindToken(ctx context.Context, m *kit.Message, token string) bool {
	t, err := b.store.TokenByValue(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		b.log.Error("token lookup failed", logx.Err(err))
		b.reply(ctx, m.ChatID, "❌ Something went wrong, try again later.")
		return true
	}

	switch {
	case t.Status == storage.TokenUsed:
		b.reply(ctx, m.ChatID, "❌ This link token was already used.")
		return true
	case t.Status == storage.TokenExpired, time.Now().After(t.ExpiresAt):
		b.reply(ctx, m.ChatID, "❌ This link token has expired. Request a new one.")
		return true
	}

	bind := storage.Binding{
		ChatID:    m.ChatID,
		AgentID:   t.AgentID,
		Username:  m.FromUsername,
		CreatedAt: time.Now(),
	}
	if err := b.store.CreateBinding(ctx, bind); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		b.log.Error("binding create failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		b.reply(ctx, m.ChatID, "❌ Could not complete the link, try again later.")
		return true
	}
	if err := b.store.MarkTokenUsed(ctx, token); err != nil {
		b.log.Warn("token mark-used failed", logx.Err(err))
	}

	b.log.Info("agent bound", logx.Int64("chat", m.ChatID), logx.Int64("agent", t.AgentID))
	b.reply(ctx, m.ChatID,
		"✅ "+tgui.B("Account linked").String()+"\nYou will now receive booking notifications. Tune them with /settings.")
	return true
}

// registerViaPlugin redeems a registration token against the booking plugin
// and records the resulting user locally.
func (b *Bot) registerViaPlugin(ctx context.Context, m *kit.Message, token string) {
	res := b.lp.Register(ctx, token, m.ChatID, m.FromUsername)
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "invalid or expired token"
		}
		b.reply(ctx, m.ChatID, "❌ Registration failed: "+tgui.Esc(msg).String())
		return
	}

	role := storage.RoleCustomer
	if res.UserType == storage.RoleAgent {
		role = storage.RoleAgent
	}
	u := storage.User{
		ChatID:       m.ChatID,
		Username:     m.FromUsername,
		Role:         role,
		WPUserID:     res.WPUserID,
		LatePointID:  res.LatePointID,
		Name:         res.Name,
		Email:        res.Email,
		RegisteredAt: time.Now(),
	}
	if err := b.store.CreateUser(ctx, u); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		b.log.Error("user create failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		b.reply(ctx, m.ChatID, "❌ Something went wrong, try again later.")
		return
	}

	// Registration opts the user in: create their settings row so the
	// dispatcher and the reminder sweep see them. Re-registration keeps any
	// tuned preferences.
	if _, err := b.store.SettingsFor(ctx, m.ChatID); errors.Is(err, storage.ErrNotFound) {
		if err := b.store.UpsertSettings(ctx, b.dir.Defaults(m.ChatID)); err != nil {
			b.log.Warn("settings create failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		}
	}

	b.log.Info("user registered",
		logx.Int64("chat", m.ChatID), logx.String("role", role), logx.Int64("latepoint_id", res.LatePointID))
	name := res.Name
	if name == "" {
		name = "there"
	}
	b.reply(ctx, m.ChatID,
		"✅ "+tgui.B("Hello, "+name+"!").String()+"\nYou are registered and will receive reminders. See /help for commands.")
}

func (b *Bot) cmdHelp(ctx context.Context, m *kit.Message) {
	b.reply(ctx, m.ChatID, helpText)
}

// cmdSchedule renders the chat's bookings for a period as a compact list.
func (b *Bot) cmdSchedule(ctx context.Context, m *kit.Message, period string) {
	res := b.lp.Schedule(ctx, m.ChatID, period)
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "schedule is unavailable right now"
		}
		b.reply(ctx, m.ChatID, "❌ "+tgui.Esc(msg).String())
		return
	}
	if len(res.Bookings) == 0 {
		if period == "today" {
			b.reply(ctx, m.ChatID, "\U0001f4c5 No bookings today.")
		} else {
			b.reply(ctx, m.ChatID, "\U0001f4c5 No bookings this week.")
		}
		return
	}

	zone := b.displayZone(ctx, m.ChatID)

	var sb strings.Builder
	if period == "today" {
		sb.WriteString("\U0001f4c5 " + tgui.B("Today").String() + "\n\n")
	} else {
		sb.WriteString("\U0001f4c5 " + tgui.B("This week").String() + "\n\n")
	}
	for i := range res.Bookings {
		writeScheduleLine(&sb, &res.Bookings[i], b.cfg.SourceZone, zone)
	}
	b.reply(ctx, m.ChatID, sb.String())
}

func writeScheduleLine(sb *strings.Builder, bk *event.Booking, srcZone, zone string) {
	date, start := bk.StartDate, bk.StartTime
	if d, s, err := timeutil.ConvertZone(bk.StartDate, bk.StartTime, srcZone, zone); err == nil {
		date, start = d, s
	}
	sb.WriteString(tgui.B(date + " " + start).String())
	if bk.Service != nil && bk.Service.Name != "" {
		sb.WriteString(" " + tgui.Esc(bk.Service.Name).String())
	}
	if bk.Customer != nil && bk.Customer.Name != "" {
		sb.WriteString(" with " + tgui.Esc(bk.Customer.Name).String())
	}
	if bk.BookingCode != "" {
		sb.WriteString(" (" + tgui.Code(bk.BookingCode).String() + ")")
	}
	sb.WriteString("\n")
}

// displayZone is the zone schedule lines are rendered in: explicit settings
// first, then the registered user's zone.
func (b *Bot) displayZone(ctx context.Context, chatID int64) string {
	s, err := b.dir.SettingsOrDefault(ctx, chatID)
	if err == nil && s.Timezone != "" {
		return s.Timezone
	}
	u, err := b.store.UserByChat(ctx, chatID)
	if err == nil {
		return u.Timezone
	}
	return ""
}

// cmdStats is admin-only: a quick population snapshot.
func (b *Bot) cmdStats(ctx context.Context, m *kit.Message) {
	if !b.isAdmin(m.FromID) {
		b.reply(ctx, m.ChatID, "Unknown command. Try /help.")
		return
	}
	users, err := b.store.AllUsers(ctx)
	if err != nil {
		b.log.Error("stats query failed", logx.Err(err))
		b.reply(ctx, m.ChatID, "❌ Something went wrong, try again later.")
		return
	}
	agents := 0
	for _, u := range users {
		if u.Role == storage.RoleAgent {
			agents++
		}
	}
	b.reply(ctx, m.ChatID,
		"\U0001f4ca "+tgui.B("Stats").String()+
			"\nRegistered users: "+tgui.B(strconv.Itoa(len(users))).String()+
			"\nAgents: "+tgui.B(strconv.Itoa(agents)).String())
}

// cmdUnbind removes the chat's agent bindings on the user's own request.
func (b *Bot) cmdUnbind(ctx context.Context, m *kit.Message) {
	n, err := b.store.DeleteBindingsForChat(ctx, m.ChatID)
	if err != nil {
		b.log.Error("unbind failed", logx.Int64("chat", m.ChatID), logx.Err(err))
		b.reply(ctx, m.ChatID, "❌ Something went wrong, try again later.")
		return
	}
	if n == 0 {
		b.reply(ctx, m.ChatID, "This chat has no agent link.")
		return
	}
	b.log.Info("chat unbound by user", logx.Int64("chat", m.ChatID), logx.Int("removed", n))
	b.reply(ctx, m.ChatID, "✅ Agent link removed. You will no longer receive agent notifications.")
}
