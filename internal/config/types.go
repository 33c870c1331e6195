package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Server    ServerConfig    `json:"server"`
	LatePoint LatePointConfig `json:"latepoint"`
	Reminder  ReminderConfig  `json:"reminder"`
	Storage   StorageConfig   `json:"storage"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminUserIDs may use bot admin commands; empty means nobody.
	AdminUserIDs []int64 `json:"admin_user_ids,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerSec caps outbound messages per second (0 = adapter default).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ServerConfig controls the inbound webhook HTTP server.
//
// WebhookSecret must match the shared secret configured in the booking
// plugin; requests without a matching X-Webhook-Secret header are rejected.
type ServerConfig struct {
	Addr          string `json:"addr"`
	WebhookSecret string `json:"webhook_secret"`
}

// LatePointConfig points at the booking plugin's REST API
// (e.g. "https://example.com/wp-json/latepoint-telegram/v1").
type LatePointConfig struct {
	BaseURL string `json:"base_url"`
	// Timeout is a Go duration string for upstream HTTP calls.
	Timeout string `json:"timeout,omitempty"`
}

// ReminderConfig controls the periodic reminder scheduler.
type ReminderConfig struct {
	Enabled bool `json:"enabled"`
	// CheckInterval is a Go duration string between ticks (default "1m").
	CheckInterval string `json:"check_interval,omitempty"`
	// Timezone is the IANA zone bookings are expressed in (default UTC).
	Timezone string `json:"timezone,omitempty"`
	// DefaultLeadMinutes applies to recipients without explicit settings.
	DefaultLeadMinutes int `json:"default_lead_minutes,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": in-process store, lost on restart (tests, dry runs)
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
