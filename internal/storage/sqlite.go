package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "latebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite does not export a stable error type for this, so match
// on the SQLITE_CONSTRAINT_UNIQUE message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- users ----

func (s *sqliteStore) UserByChat(ctx context.Context, chatID int64) (User, error) {
	var u User
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, username, role, wp_user_id, latepoint_id, name, email, COALESCE(timezone,''), registered_at
		 FROM users WHERE chat_id = ?`, chatID,
	).Scan(&u.ChatID, &u.Username, &u.Role, &u.WPUserID, &u.LatePointID, &u.Name, &u.Email, &u.Timezone, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.RegisteredAt, _ = time.Parse(time.RFC3339Nano, ts)
	return u, nil
}

func (s *sqliteStore) CreateUser(ctx context.Context, u User) error {
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(chat_id, username, role, wp_user_id, latepoint_id, name, email, timezone, registered_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		u.ChatID, u.Username, u.Role, u.WPUserID, u.LatePointID, u.Name, u.Email, nullStr(u.Timezone),
		u.RegisteredAt.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *sqliteStore) AllUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, username, role, wp_user_id, latepoint_id, name, email, COALESCE(timezone,''), registered_at
		 FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var ts string
		if err := rows.Scan(&u.ChatID, &u.Username, &u.Role, &u.WPUserID, &u.LatePointID, &u.Name, &u.Email, &u.Timezone, &ts); err != nil {
			return nil, err
		}
		u.RegisteredAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetUserTimezone(ctx context.Context, chatID int64, tz string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET timezone = ? WHERE chat_id = ?`, nullStr(tz), chatID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- settings ----

func (s *sqliteStore) SettingsFor(ctx context.Context, chatID int64) (Settings, error) {
	var st Settings
	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, notify_on_create, notify_on_update, notify_on_cancel, notify_reminders,
		        reminder_lead_minutes, COALESCE(timezone,''), updated_at
		 FROM settings WHERE chat_id = ?`, chatID,
	).Scan(&st.ChatID, &st.NotifyOnCreate, &st.NotifyOnUpdate, &st.NotifyOnCancel, &st.NotifyReminders,
		&st.ReminderLeadMinutes, &st.Timezone, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	if err != nil {
		return Settings{}, err
	}
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return st, nil
}

func (s *sqliteStore) UpsertSettings(ctx context.Context, st Settings) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(chat_id, notify_on_create, notify_on_update, notify_on_cancel, notify_reminders,
		                      reminder_lead_minutes, timezone, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   notify_on_create=excluded.notify_on_create,
		   notify_on_update=excluded.notify_on_update,
		   notify_on_cancel=excluded.notify_on_cancel,
		   notify_reminders=excluded.notify_reminders,
		   reminder_lead_minutes=excluded.reminder_lead_minutes,
		   timezone=excluded.timezone,
		   updated_at=excluded.updated_at`,
		st.ChatID, st.NotifyOnCreate, st.NotifyOnUpdate, st.NotifyOnCancel, st.NotifyReminders,
		st.ReminderLeadMinutes, nullStr(st.Timezone), now.Format(time.RFC3339Nano),
	)
	return err
}

// ---- bindings ----

func (s *sqliteStore) BindingsForAgent(ctx context.Context, agentID int64) ([]Binding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, agent_id, COALESCE(username,''), COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(timezone,''), created_at
		 FROM agent_bindings WHERE agent_id = ? ORDER BY id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Binding
	for rows.Next() {
		var b Binding
		var ts string
		if err := rows.Scan(&b.ChatID, &b.AgentID, &b.Username, &b.FirstName, &b.LastName, &b.Timezone, &ts); err != nil {
			return nil, err
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CreateBinding(ctx context.Context, b Binding) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_bindings(chat_id, agent_id, username, first_name, last_name, timezone, created_at)
		 VALUES(?,?,?,?,?,?,?)`,
		b.ChatID, b.AgentID, nullStr(b.Username), nullStr(b.FirstName), nullStr(b.LastName), nullStr(b.Timezone),
		b.CreatedAt.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *sqliteStore) DeleteBindingsForChat(ctx context.Context, chatID int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent_bindings WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqliteStore) SetBindingTimezone(ctx context.Context, chatID int64, tz string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agent_bindings SET timezone = ? WHERE chat_id = ?`, nullStr(tz), chatID)
	return err
}

// ---- tokens ----

func (s *sqliteStore) SaveToken(ctx context.Context, t BindToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = TokenPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_tokens(token, agent_id, expires_at, status, created_at) VALUES(?,?,?,?,?)`,
		t.Token, t.AgentID, t.ExpiresAt.Format(time.RFC3339Nano), t.Status, t.CreatedAt.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *sqliteStore) TokenByValue(ctx context.Context, token string) (BindToken, error) {
	var t BindToken
	var exp, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT token, agent_id, expires_at, status, created_at FROM agent_tokens WHERE token = ?`, token,
	).Scan(&t.Token, &t.AgentID, &exp, &t.Status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return BindToken{}, ErrNotFound
	}
	if err != nil {
		return BindToken{}, err
	}
	t.ExpiresAt, _ = time.Parse(time.RFC3339Nano, exp)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return t, nil
}

func (s *sqliteStore) MarkTokenUsed(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agent_tokens SET status = ? WHERE token = ?`, TokenUsed, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- reminder ledger ----

func (s *sqliteStore) ReminderSent(ctx context.Context, bookingID, chatID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sent_reminders WHERE booking_id = ? AND chat_id = ?`, bookingID, chatID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) MarkReminderSent(ctx context.Context, bookingID, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sent_reminders(booking_id, chat_id, sent_at) VALUES(?,?,?)`,
		bookingID, chatID, time.Now().Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ---- audit ----

func (s *sqliteStore) AppendNotificationLog(ctx context.Context, e NotificationLogEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_log(chat_id, type, booking_id, success, error, created_at) VALUES(?,?,?,?,?,?)`,
		e.ChatID, e.Type, e.BookingID, e.Success, nullStr(e.Error), e.At.Format(time.RFC3339Nano),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
