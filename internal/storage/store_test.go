package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "latebot/pkg/logx"
)

// storeUnderTest runs the same behavioral suite against every driver.
func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()
	switch name {
	case "memory":
		return NewMemory()
	case "sqlite":
		st, err := Open(Config{
			Driver:      "sqlite",
			Path:        filepath.Join(t.TempDir(), "test.db"),
			BusyTimeout: time.Second,
		}, logx.Nop())
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	}
	t.Fatalf("unknown driver %q", name)
	return nil
}

func forEachDriver(t *testing.T, fn func(t *testing.T, st Store)) {
	for _, driver := range []string{"memory", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			fn(t, storeUnderTest(t, driver))
		})
	}
}

func TestUserRoundtrip(t *testing.T) {
	t.Parallel()
	forEachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		u := User{
			ChatID: 100, Username: "bob", Role: RoleCustomer,
			WPUserID: 5, LatePointID: 9, Name: "Bob", Email: "bob@example.com",
		}
		if err := st.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := st.CreateUser(ctx, u); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("second CreateUser err = %v, want ErrDuplicate", err)
		}

		got, err := st.UserByChat(ctx, 100)
		if err != nil {
			t.Fatalf("UserByChat: %v", err)
		}
		if got.Username != "bob" || got.Role != RoleCustomer || got.LatePointID != 9 {
			t.Fatalf("roundtrip mismatch: %+v", got)
		}
		if _, err := st.UserByChat(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing user err = %v, want ErrNotFound", err)
		}

		if err := st.SetUserTimezone(ctx, 100, "Europe/Berlin"); err != nil {
			t.Fatalf("SetUserTimezone: %v", err)
		}
		got, _ = st.UserByChat(ctx, 100)
		if got.Timezone != "Europe/Berlin" {
			t.Fatalf("timezone = %q", got.Timezone)
		}
		if err := st.SetUserTimezone(ctx, 999, "UTC"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("SetUserTimezone missing err = %v, want ErrNotFound", err)
		}

		all, err := st.AllUsers(ctx)
		if err != nil || len(all) != 1 {
			t.Fatalf("AllUsers = %v, %v", all, err)
		}
	})
}

func TestSettingsUpsert(t *testing.T) {
	t.Parallel()
	forEachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		if _, err := st.SettingsFor(ctx, 100); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing settings err = %v, want ErrNotFound", err)
		}

		s := DefaultSettings(100, 60)
		s.NotifyOnUpdate = false
		s.Timezone = "Asia/Tokyo"
		if err := st.UpsertSettings(ctx, s); err != nil {
			t.Fatalf("UpsertSettings: %v", err)
		}
		got, err := st.SettingsFor(ctx, 100)
		if err != nil {
			t.Fatalf("SettingsFor: %v", err)
		}
		if got.NotifyOnUpdate || !got.NotifyOnCreate || got.Timezone != "Asia/Tokyo" {
			t.Fatalf("roundtrip mismatch: %+v", got)
		}

		// Upsert overwrites.
		s.ReminderLeadMinutes = 120
		if err := st.UpsertSettings(ctx, s); err != nil {
			t.Fatalf("second UpsertSettings: %v", err)
		}
		got, _ = st.SettingsFor(ctx, 100)
		if got.ReminderLeadMinutes != 120 {
			t.Fatalf("lead = %d, want 120", got.ReminderLeadMinutes)
		}
	})
}

func TestBindings(t *testing.T) {
	t.Parallel()
	forEachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		for _, chat := range []int64{100, 200} {
			if err := st.CreateBinding(ctx, Binding{ChatID: chat, AgentID: 7, Username: "u"}); err != nil {
				t.Fatalf("CreateBinding: %v", err)
			}
		}
		if err := st.CreateBinding(ctx, Binding{ChatID: 300, AgentID: 8}); err != nil {
			t.Fatalf("CreateBinding: %v", err)
		}

		// A chat holds one binding; a repeat redemption must not add a row,
		// even toward a different agent.
		if err := st.CreateBinding(ctx, Binding{ChatID: 100, AgentID: 7}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("rebind same chat err = %v, want ErrDuplicate", err)
		}
		if err := st.CreateBinding(ctx, Binding{ChatID: 100, AgentID: 8}); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("rebind to other agent err = %v, want ErrDuplicate", err)
		}

		bs, err := st.BindingsForAgent(ctx, 7)
		if err != nil || len(bs) != 2 {
			t.Fatalf("BindingsForAgent(7) = %v, %v", bs, err)
		}
		if bs[0].ChatID != 100 || bs[1].ChatID != 200 {
			t.Fatalf("binding order: %v", bs)
		}

		if err := st.SetBindingTimezone(ctx, 100, "Europe/Kyiv"); err != nil {
			t.Fatalf("SetBindingTimezone: %v", err)
		}
		bs, _ = st.BindingsForAgent(ctx, 7)
		if bs[0].Timezone != "Europe/Kyiv" {
			t.Fatalf("timezone = %q", bs[0].Timezone)
		}

		n, err := st.DeleteBindingsForChat(ctx, 100)
		if err != nil || n != 1 {
			t.Fatalf("DeleteBindingsForChat = %d, %v", n, err)
		}
		if bs, _ = st.BindingsForAgent(ctx, 7); len(bs) != 1 {
			t.Fatalf("bindings after delete: %v", bs)
		}
	})
}

func TestTokenLifecycle(t *testing.T) {
	t.Parallel()
	forEachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		tok := BindToken{Token: "abc", AgentID: 7, ExpiresAt: time.Now().Add(time.Hour)}
		if err := st.SaveToken(ctx, tok); err != nil {
			t.Fatalf("SaveToken: %v", err)
		}
		if err := st.SaveToken(ctx, tok); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("duplicate SaveToken err = %v, want ErrDuplicate", err)
		}

		got, err := st.TokenByValue(ctx, "abc")
		if err != nil {
			t.Fatalf("TokenByValue: %v", err)
		}
		if got.AgentID != 7 || got.Status != TokenPending {
			t.Fatalf("token mismatch: %+v", got)
		}

		if err := st.MarkTokenUsed(ctx, "abc"); err != nil {
			t.Fatalf("MarkTokenUsed: %v", err)
		}
		got, _ = st.TokenByValue(ctx, "abc")
		if got.Status != TokenUsed {
			t.Fatalf("status = %q, want used", got.Status)
		}
		if err := st.MarkTokenUsed(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing token err = %v, want ErrNotFound", err)
		}
	})
}

func TestReminderLedger(t *testing.T) {
	t.Parallel()
	forEachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		sent, err := st.ReminderSent(ctx, 42, 100)
		if err != nil || sent {
			t.Fatalf("fresh ledger: sent=%v err=%v", sent, err)
		}

		if err := st.MarkReminderSent(ctx, 42, 100); err != nil {
			t.Fatalf("MarkReminderSent: %v", err)
		}
		if err := st.MarkReminderSent(ctx, 42, 100); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("duplicate mark err = %v, want ErrDuplicate", err)
		}
		// Same booking, different chat is a distinct entry.
		if err := st.MarkReminderSent(ctx, 42, 200); err != nil {
			t.Fatalf("distinct chat: %v", err)
		}

		sent, _ = st.ReminderSent(ctx, 42, 100)
		if !sent {
			t.Fatal("ledger lost the mark")
		}
	})
}

func TestNotificationLogAppend(t *testing.T) {
	t.Parallel()
	forEachDriver(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		entries := []NotificationLogEntry{
			{ChatID: 100, Type: "booking_created", BookingID: 42, Success: true},
			{ChatID: 200, Type: "reminder", BookingID: 42, Success: false, Error: "blocked"},
		}
		for _, e := range entries {
			if err := st.AppendNotificationLog(ctx, e); err != nil {
				t.Fatalf("AppendNotificationLog: %v", err)
			}
		}
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "oracle"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
