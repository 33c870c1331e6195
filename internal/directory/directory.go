// Package directory resolves logical actors to deliverable recipients:
// agent id -> bound chat ids, chat id -> effective notification settings.
// It reads storage; binding and settings lifecycles are driven elsewhere.
package directory

import (
	"context"
	"errors"

	"latebot/internal/storage"
)

type Directory struct {
	store storage.Store
	// defaultLead applies to addresses without an explicit settings row.
	defaultLead int
}

func New(store storage.Store, defaultLeadMinutes int) *Directory {
	return &Directory{store: store, defaultLead: defaultLeadMinutes}
}

// BindingsForAgent returns every chat bound to the agent, in binding order.
func (d *Directory) BindingsForAgent(ctx context.Context, agentID int64) ([]storage.Binding, error) {
	return d.store.BindingsForAgent(ctx, agentID)
}

// SettingsOrDefault returns the chat's explicit settings, or the opted-in
// defaults when none exist. Only addresses that opted in some other way
// (a binding, a registration) should be resolved through this; for everyone
// else use ExplicitSettings.
func (d *Directory) SettingsOrDefault(ctx context.Context, chatID int64) (storage.Settings, error) {
	s, err := d.store.SettingsFor(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		return d.Defaults(chatID), nil
	}
	if err != nil {
		return storage.Settings{}, err
	}
	return s, nil
}

// ExplicitSettings returns the chat's stored settings row. ok is false when
// the chat never created one, which callers treat as not opted in.
func (d *Directory) ExplicitSettings(ctx context.Context, chatID int64) (storage.Settings, bool, error) {
	s, err := d.store.SettingsFor(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Settings{}, false, nil
	}
	if err != nil {
		return storage.Settings{}, false, err
	}
	return s, true, nil
}

// Defaults is the settings row a freshly opted-in chat starts with.
func (d *Directory) Defaults(chatID int64) storage.Settings {
	return storage.DefaultSettings(chatID, d.defaultLead)
}
