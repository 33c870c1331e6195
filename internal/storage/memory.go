package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is a map-backed Store with the same semantics as the sqlite driver,
// including ErrDuplicate on the sent_reminders uniqueness constraint.
type Memory struct {
	mu        sync.Mutex
	users     map[int64]User
	userOrder []int64
	settings  map[int64]Settings
	bindings  []Binding
	tokens    map[string]BindToken
	reminders map[reminderKey]time.Time
	Log       []NotificationLogEntry
}

type reminderKey struct {
	BookingID int64
	ChatID    int64
}

func NewMemory() *Memory {
	return &Memory{
		users:     map[int64]User{},
		settings:  map[int64]Settings{},
		tokens:    map[string]BindToken{},
		reminders: map[reminderKey]time.Time{},
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) UserByChat(_ context.Context, chatID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[chatID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ChatID]; ok {
		return ErrDuplicate
	}
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now()
	}
	m.users[u.ChatID] = u
	m.userOrder = append(m.userOrder, u.ChatID)
	return nil
}

func (m *Memory) AllUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		out = append(out, m.users[id])
	}
	return out, nil
}

func (m *Memory) SetUserTimezone(_ context.Context, chatID int64, tz string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[chatID]
	if !ok {
		return ErrNotFound
	}
	u.Timezone = tz
	m.users[chatID] = u
	return nil
}

func (m *Memory) SettingsFor(_ context.Context, chatID int64) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[chatID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) UpsertSettings(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now()
	m.settings[s.ChatID] = s
	return nil
}

func (m *Memory) BindingsForAgent(_ context.Context, agentID int64) ([]Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Binding
	for _, b := range m.bindings {
		if b.AgentID == agentID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) CreateBinding(_ context.Context, b Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.bindings {
		if ex.ChatID == b.ChatID {
			return ErrDuplicate
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	m.bindings = append(m.bindings, b)
	return nil
}

func (m *Memory) DeleteBindingsForChat(_ context.Context, chatID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.bindings[:0]
	n := 0
	for _, b := range m.bindings {
		if b.ChatID == chatID {
			n++
			continue
		}
		kept = append(kept, b)
	}
	m.bindings = kept
	return n, nil
}

func (m *Memory) SetBindingTimezone(_ context.Context, chatID int64, tz string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bindings {
		if m.bindings[i].ChatID == chatID {
			m.bindings[i].Timezone = tz
		}
	}
	return nil
}

func (m *Memory) SaveToken(_ context.Context, t BindToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[t.Token]; ok {
		return ErrDuplicate
	}
	if t.Status == "" {
		t.Status = TokenPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	m.tokens[t.Token] = t
	return nil
}

func (m *Memory) TokenByValue(_ context.Context, token string) (BindToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return BindToken{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) MarkTokenUsed(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return ErrNotFound
	}
	t.Status = TokenUsed
	m.tokens[token] = t
	return nil
}

func (m *Memory) ReminderSent(_ context.Context, bookingID, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reminders[reminderKey{bookingID, chatID}]
	return ok, nil
}

func (m *Memory) MarkReminderSent(_ context.Context, bookingID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := reminderKey{bookingID, chatID}
	if _, ok := m.reminders[k]; ok {
		return ErrDuplicate
	}
	m.reminders[k] = time.Now()
	return nil
}

func (m *Memory) AppendNotificationLog(_ context.Context, e NotificationLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.Log = append(m.Log, e)
	return nil
}
