package storage

import (
	"context"
	"errors"
	"strings"

	logx "latebot/pkg/logx"
)

// Store is the persistence API used by the dispatcher, the reminder
// scheduler and the conversational handlers.
//
// Single-row reads and writes are atomic; there is no cross-row transaction
// spanning the reminder check-then-mark sequence. Idempotency of reminders
// relies on MarkReminderSent returning ErrDuplicate.
type Store interface {
	// Registered users (legacy single-address population).
	UserByChat(ctx context.Context, chatID int64) (User, error)
	CreateUser(ctx context.Context, u User) error
	AllUsers(ctx context.Context) ([]User, error)
	SetUserTimezone(ctx context.Context, chatID int64, tz string) error

	// Per-address notification preferences.
	SettingsFor(ctx context.Context, chatID int64) (Settings, error)
	UpsertSettings(ctx context.Context, s Settings) error

	// Agent bindings (modern fan-out set).
	BindingsForAgent(ctx context.Context, agentID int64) ([]Binding, error)
	CreateBinding(ctx context.Context, b Binding) error
	DeleteBindingsForChat(ctx context.Context, chatID int64) (int, error)
	SetBindingTimezone(ctx context.Context, chatID int64, tz string) error

	// One-time agent link tokens.
	SaveToken(ctx context.Context, t BindToken) error
	TokenByValue(ctx context.Context, token string) (BindToken, error)
	MarkTokenUsed(ctx context.Context, token string) error

	// Sent-reminder ledger. MarkReminderSent returns ErrDuplicate when the
	// (booking, chat) pair is already recorded.
	ReminderSent(ctx context.Context, bookingID, chatID int64) (bool, error)
	MarkReminderSent(ctx context.Context, bookingID, chatID int64) error

	// Delivery audit trail (append-only).
	AppendNotificationLog(ctx context.Context, e NotificationLogEntry) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
