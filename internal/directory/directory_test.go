package directory

import (
	"context"
	"testing"

	"latebot/internal/storage"
)

func TestSettingsOrDefault(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	d := New(store, 45)
	ctx := context.Background()

	// No settings row: opted-in defaults with the configured lead.
	s, err := d.SettingsOrDefault(ctx, 100)
	if err != nil {
		t.Fatalf("SettingsOrDefault: %v", err)
	}
	if !s.NotifyOnCreate || !s.NotifyOnUpdate || !s.NotifyOnCancel || !s.NotifyReminders {
		t.Fatalf("defaults should be all-on: %+v", s)
	}
	if s.ReminderLeadMinutes != 45 {
		t.Fatalf("lead = %d, want 45", s.ReminderLeadMinutes)
	}

	// Explicit row wins.
	explicit := storage.DefaultSettings(100, 45)
	explicit.NotifyOnCancel = false
	if err := store.UpsertSettings(ctx, explicit); err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	s, err = d.SettingsOrDefault(ctx, 100)
	if err != nil {
		t.Fatalf("SettingsOrDefault: %v", err)
	}
	if s.NotifyOnCancel {
		t.Fatal("explicit settings not honored")
	}
}

func TestExplicitSettings(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	d := New(store, 45)
	ctx := context.Background()

	// No row: not opted in, no error.
	if _, ok, err := d.ExplicitSettings(ctx, 100); ok || err != nil {
		t.Fatalf("ExplicitSettings without row: ok=%v err=%v", ok, err)
	}

	if err := store.UpsertSettings(ctx, storage.DefaultSettings(100, 45)); err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	s, ok, err := d.ExplicitSettings(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("ExplicitSettings with row: ok=%v err=%v", ok, err)
	}
	if !s.NotifyReminders {
		t.Fatalf("stored settings not returned: %+v", s)
	}
}

func TestParsePref(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"create", "update", "cancel", "reminders"} {
		p, err := ParsePref(key)
		if err != nil {
			t.Fatalf("ParsePref(%q): %v", key, err)
		}
		if p.String() != key {
			t.Fatalf("String() = %q, want %q", p.String(), key)
		}
	}
	if _, err := ParsePref("volume"); err == nil {
		t.Fatal("unknown pref accepted")
	}
}

func TestPrefToggle(t *testing.T) {
	t.Parallel()
	s := storage.DefaultSettings(100, 60)

	s = PrefCancel.Toggle(s)
	if s.NotifyOnCancel {
		t.Fatal("toggle off failed")
	}
	if !PrefCreate.Get(s) || PrefCancel.Get(s) {
		t.Fatalf("Get mismatch: %+v", s)
	}
	s = PrefCancel.Toggle(s)
	if !s.NotifyOnCancel {
		t.Fatal("toggle back on failed")
	}
}
