package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert hits a uniqueness constraint.
	// For the sent_reminders ledger this is the correctness guarantee, not a
	// failure: callers treat it as "someone already sent it".
	ErrDuplicate = errors.New("duplicate")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process store, lost on restart (tests, dry runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Role of a registered user relative to a booking.
const (
	RoleAgent    = "agent"
	RoleCustomer = "customer"
)

// User is a fully registered bot user (legacy single-address population).
// The reminder scheduler iterates these.
type User struct {
	ChatID       int64
	Username     string
	Role         string // RoleAgent or RoleCustomer
	WPUserID     int64
	LatePointID  int64
	Name         string
	Email        string
	Timezone     string
	RegisteredAt time.Time
}

// Settings holds per-address notification preferences.
type Settings struct {
	ChatID              int64
	NotifyOnCreate      bool
	NotifyOnUpdate      bool
	NotifyOnCancel      bool
	NotifyReminders     bool
	ReminderLeadMinutes int
	Timezone            string
	UpdatedAt           time.Time
}

// DefaultSettings is what an address without an explicit settings row gets:
// binding is an explicit opt-in, so every category defaults to on.
func DefaultSettings(chatID int64, leadMinutes int) Settings {
	if leadMinutes <= 0 {
		leadMinutes = 60
	}
	return Settings{
		ChatID:              chatID,
		NotifyOnCreate:      true,
		NotifyOnUpdate:      true,
		NotifyOnCancel:      true,
		NotifyReminders:     true,
		ReminderLeadMinutes: leadMinutes,
	}
}

// Binding links a Telegram account to a LatePoint agent. An agent may have
// many bound chats (fan-out set); a chat holds at most one binding.
type Binding struct {
	ChatID    int64
	AgentID   int64
	Username  string
	FirstName string
	LastName  string
	Timezone  string
	CreatedAt time.Time
}

// Token statuses.
const (
	TokenPending = "pending"
	TokenUsed    = "used"
	TokenExpired = "expired"
)

// BindToken is a one-time token issued by the booking plugin to link an agent
// to a Telegram account.
type BindToken struct {
	Token     string
	AgentID   int64
	ExpiresAt time.Time
	Status    string
	CreatedAt time.Time
}

// NotificationLogEntry is the append-only delivery audit trail.
// It is written on every delivery attempt and never read back by core logic.
type NotificationLogEntry struct {
	ChatID    int64
	Type      string
	BookingID int64
	Success   bool
	Error     string
	At        time.Time
}
