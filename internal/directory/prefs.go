package directory

import (
	"fmt"

	"latebot/internal/storage"
)

// Pref is the closed set of toggleable notification preferences.
// External toggle identifiers (callback data) map onto this enum; unknown
// identifiers are rejected instead of being looked up dynamically.
type Pref int

const (
	PrefCreate Pref = iota
	PrefUpdate
	PrefCancel
	PrefReminders
)

var prefByKey = map[string]Pref{
	"create":    PrefCreate,
	"update":    PrefUpdate,
	"cancel":    PrefCancel,
	"reminders": PrefReminders,
}

// ParsePref maps an external toggle identifier to a Pref.
func ParsePref(key string) (Pref, error) {
	p, ok := prefByKey[key]
	if !ok {
		return 0, fmt.Errorf("unknown preference toggle %q", key)
	}
	return p, nil
}

func (p Pref) String() string {
	switch p {
	case PrefCreate:
		return "create"
	case PrefUpdate:
		return "update"
	case PrefCancel:
		return "cancel"
	case PrefReminders:
		return "reminders"
	}
	return fmt.Sprintf("Pref(%d)", int(p))
}

// Get reads the preference from a settings row.
func (p Pref) Get(s storage.Settings) bool {
	switch p {
	case PrefCreate:
		return s.NotifyOnCreate
	case PrefUpdate:
		return s.NotifyOnUpdate
	case PrefCancel:
		return s.NotifyOnCancel
	case PrefReminders:
		return s.NotifyReminders
	}
	return false
}

// Toggle flips the preference and returns the updated settings.
func (p Pref) Toggle(s storage.Settings) storage.Settings {
	switch p {
	case PrefCreate:
		s.NotifyOnCreate = !s.NotifyOnCreate
	case PrefUpdate:
		s.NotifyOnUpdate = !s.NotifyOnUpdate
	case PrefCancel:
		s.NotifyOnCancel = !s.NotifyOnCancel
	case PrefReminders:
		s.NotifyReminders = !s.NotifyReminders
	}
	return s
}
