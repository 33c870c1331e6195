package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"latebot/internal/directory"
	"latebot/internal/latepoint"
	"latebot/internal/storage"
	kit "latebot/internal/transport"
	logx "latebot/pkg/logx"
)

type fakeAdapter struct {
	sent    []fakeMsg
	edits   []fakeMsg
	answers []string
}

type fakeMsg struct {
	chatID int64
	text   string
	opt    *kit.SendOptions
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.sent = append(f.sent, fakeMsg{chatID: to.ChatID, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.edits = append(f.edits, fakeMsg{chatID: ref.ChatID, text: text, opt: opt})
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                    { return nil }

func (f *fakeAdapter) lastSent(t *testing.T) fakeMsg {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

func newTestBot(t *testing.T, lpHandler http.HandlerFunc) (*Bot, *fakeAdapter, *storage.Memory) {
	t.Helper()
	ad := &fakeAdapter{}
	store := storage.NewMemory()
	dir := directory.New(store, 60)

	base := "http://127.0.0.1:1"
	if lpHandler != nil {
		ts := httptest.NewServer(lpHandler)
		t.Cleanup(ts.Close)
		base = ts.URL
	}
	lp := latepoint.New(latepoint.Config{BaseURL: base, Timeout: 2 * time.Second}, logx.Nop())

	b := New(Config{AdminUserIDs: []int64{999}, SourceZone: "UTC"}, ad, store, dir, lp, logx.Nop())
	return b, ad, store
}

func msg(chatID, fromID int64, text string) *kit.Message {
	return &kit.Message{ChatID: chatID, FromID: fromID, FromUsername: "bob", Text: text}
}

func TestStartRedeemsBindToken(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, nil)
	ctx := context.Background()

	tok := storage.BindToken{Token: "abc", AgentID: 7, ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.SaveToken(ctx, tok); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	b.handleMessage(ctx, msg(100, 100, "/start abc"))

	if !strings.Contains(ad.lastSent(t).text, "Account linked") {
		t.Fatalf("unexpected reply: %s", ad.lastSent(t).text)
	}
	bs, _ := store.BindingsForAgent(ctx, 7)
	if len(bs) != 1 || bs[0].ChatID != 100 {
		t.Fatalf("binding not created: %v", bs)
	}
	got, _ := store.TokenByValue(ctx, "abc")
	if got.Status != storage.TokenUsed {
		t.Fatalf("token status = %q, want used", got.Status)
	}
}

func TestStartRejectsUsedAndExpiredTokens(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, nil)
	ctx := context.Background()

	used := storage.BindToken{Token: "used", AgentID: 7, ExpiresAt: time.Now().Add(time.Hour), Status: storage.TokenUsed}
	expired := storage.BindToken{Token: "old", AgentID: 7, ExpiresAt: time.Now().Add(-time.Hour)}
	_ = store.SaveToken(ctx, used)
	_ = store.SaveToken(ctx, expired)

	b.handleMessage(ctx, msg(100, 100, "/start used"))
	if !strings.Contains(ad.lastSent(t).text, "already used") {
		t.Fatalf("unexpected reply: %s", ad.lastSent(t).text)
	}

	b.handleMessage(ctx, msg(100, 100, "/start old"))
	if !strings.Contains(ad.lastSent(t).text, "expired") {
		t.Fatalf("unexpected reply: %s", ad.lastSent(t).text)
	}

	if bs, _ := store.BindingsForAgent(ctx, 7); len(bs) != 0 {
		t.Fatalf("bindings created from bad tokens: %v", bs)
	}
}

func TestStartFallsBackToPluginRegistration(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/register" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true, "user_type": "customer",
			"wp_user_id": 5, "latepoint_id": 9, "name": "Bob", "email": "bob@example.com",
		})
	})
	ctx := context.Background()

	b.handleMessage(ctx, msg(100, 100, "/start regtoken"))

	if !strings.Contains(ad.lastSent(t).text, "Hello, Bob") {
		t.Fatalf("unexpected reply: %s", ad.lastSent(t).text)
	}
	u, err := store.UserByChat(ctx, 100)
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Role != storage.RoleCustomer || u.LatePointID != 9 {
		t.Fatalf("user mismatch: %+v", u)
	}
	// Registration creates the settings row that opts the user into
	// notifications and reminders.
	s, err := store.SettingsFor(ctx, 100)
	if err != nil {
		t.Fatalf("settings row not created: %v", err)
	}
	if !s.NotifyReminders || !s.NotifyOnCreate {
		t.Fatalf("settings not defaulted on: %+v", s)
	}
}

func TestTodayRendersSchedule(t *testing.T) {
	t.Parallel()
	b, ad, _ := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"bookings": []map[string]any{{
				"booking_id": 42,
				"customer":   map[string]any{"name": "Bob"},
				"service":    map[string]any{"name": "Haircut"},
				"start_date": "2026-09-01", "start_time": "13:30", "end_time": "14:00",
				"booking_code": "BK42",
			}},
		})
	})

	b.handleMessage(context.Background(), msg(100, 100, "/today"))

	text := ad.lastSent(t).text
	for _, want := range []string{"Today", "13:30", "Haircut", "Bob", "BK42"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestSettingsToggleFlow(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, nil)
	ctx := context.Background()

	b.handleMessage(ctx, msg(100, 100, "/settings"))
	if ad.lastSent(t).opt.ReplyMarkupAdapter == nil {
		t.Fatal("settings menu has no keyboard")
	}

	cb := &kit.Callback{ID: "cb1", ChatID: 100, FromID: 100, MessageID: 1, Data: "set_toggle:cancel"}
	b.handleCallback(ctx, cb)

	s, err := store.SettingsFor(ctx, 100)
	if err != nil {
		t.Fatalf("settings not persisted: %v", err)
	}
	if s.NotifyOnCancel {
		t.Fatal("toggle did not flip the cancel pref")
	}
	if len(ad.edits) == 0 {
		t.Fatal("menu not re-rendered after toggle")
	}

	// Unknown toggle identifiers are rejected, not looked up dynamically.
	b.handleCallback(ctx, &kit.Callback{ID: "cb2", ChatID: 100, Data: "set_toggle:volume"})
	if got := ad.answers[len(ad.answers)-1]; got != "Unknown setting" {
		t.Fatalf("answer = %q, want rejection", got)
	}
}

func TestLeadAndZonePickers(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, nil)
	ctx := context.Background()

	b.handleCallback(ctx, &kit.Callback{ID: "cb1", ChatID: 100, MessageID: 1, Data: "set_lead_v:120"})
	s, _ := store.SettingsFor(ctx, 100)
	if s.ReminderLeadMinutes != 120 {
		t.Fatalf("lead = %d, want 120", s.ReminderLeadMinutes)
	}

	b.handleCallback(ctx, &kit.Callback{ID: "cb2", ChatID: 100, MessageID: 1, Data: "set_lead_v:37"})
	if got := ad.answers[len(ad.answers)-1]; got != "Unknown lead time" {
		t.Fatalf("answer = %q, want rejection of off-list lead", got)
	}

	b.handleCallback(ctx, &kit.Callback{ID: "cb3", ChatID: 100, MessageID: 1, Data: "tz_zone:Europe/Berlin"})
	s, _ = store.SettingsFor(ctx, 100)
	if s.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone = %q", s.Timezone)
	}

	b.handleCallback(ctx, &kit.Callback{ID: "cb4", ChatID: 100, MessageID: 1, Data: "tz_zone:Mars/Olympus"})
	if got := ad.answers[len(ad.answers)-1]; got != "Unknown timezone" {
		t.Fatalf("answer = %q, want rejection of unknown zone", got)
	}
}

func TestStatsIsAdminOnly(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, nil)
	ctx := context.Background()
	_ = store.CreateUser(ctx, storage.User{ChatID: 100, Role: storage.RoleAgent})

	b.handleMessage(ctx, msg(100, 100, "/stats"))
	if !strings.Contains(ad.lastSent(t).text, "Unknown command") {
		t.Fatalf("non-admin got stats: %s", ad.lastSent(t).text)
	}

	b.handleMessage(ctx, msg(999, 999, "/stats"))
	text := ad.lastSent(t).text
	if !strings.Contains(text, "Registered users") || !strings.Contains(text, "<b>1</b>") {
		t.Fatalf("unexpected stats: %s", text)
	}
}

func TestUnbindCommand(t *testing.T) {
	t.Parallel()
	b, ad, store := newTestBot(t, nil)
	ctx := context.Background()
	_ = store.CreateBinding(ctx, storage.Binding{ChatID: 100, AgentID: 7})

	b.handleMessage(ctx, msg(100, 100, "/unbind"))
	if !strings.Contains(ad.lastSent(t).text, "removed") {
		t.Fatalf("unexpected reply: %s", ad.lastSent(t).text)
	}
	if bs, _ := store.BindingsForAgent(ctx, 7); len(bs) != 0 {
		t.Fatalf("bindings remain: %v", bs)
	}

	b.handleMessage(ctx, msg(100, 100, "/unbind"))
	if !strings.Contains(ad.lastSent(t).text, "no agent link") {
		t.Fatalf("unexpected reply: %s", ad.lastSent(t).text)
	}
}

func TestCommandSuffixStripped(t *testing.T) {
	t.Parallel()
	b, ad, _ := newTestBot(t, nil)
	b.handleMessage(context.Background(), msg(100, 100, "/help@latebot"))
	if !strings.Contains(ad.lastSent(t).text, "Commands") {
		t.Fatalf("group-suffixed command not handled: %s", ad.lastSent(t).text)
	}
}
