// Package bot implements the conversational surface: slash commands for
// registration and schedule browsing, inline callbacks for booking actions
// and the settings menu. It consumes transport updates from a channel and
// never talks to telebot directly.
package bot

import (
	"context"
	"strings"
	"sync"

	"latebot/internal/directory"
	"latebot/internal/latepoint"
	"latebot/internal/storage"
	kit "latebot/internal/transport"
	logx "latebot/pkg/logx"
)

const updateBuffer = 64

type Config struct {
	AdminUserIDs []int64
	Workers      int
	// SourceZone is the booking system's zone; schedule and booking views
	// convert from it into the viewer's zone.
	SourceZone string
}

type Bot struct {
	cfg     Config
	adapter kit.Adapter
	store   storage.Store
	dir     *directory.Directory
	lp      *latepoint.Client
	log     logx.Logger

	admins map[int64]struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	updates chan kit.Update
	wg      sync.WaitGroup
}

func New(cfg Config, adapter kit.Adapter, store storage.Store, dir *directory.Directory, lp *latepoint.Client, log logx.Logger) *Bot {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	admins := make(map[int64]struct{}, len(cfg.AdminUserIDs))
	for _, id := range cfg.AdminUserIDs {
		admins[id] = struct{}{}
	}
	return &Bot{cfg: cfg, adapter: adapter, store: store, dir: dir, lp: lp, log: log, admins: admins}
}

func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.updates = make(chan kit.Update, updateBuffer)

	if err := b.adapter.Start(ctx, b.updates); err != nil {
		cancel()
		b.cancel = nil
		return err
	}

	for i := 0; i < b.cfg.Workers; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}
	return nil
}

func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}

	err := b.adapter.Stop(ctx)
	cancel()
	b.wg.Wait()
	return err
}

func (b *Bot) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-b.updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, up)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, up kit.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panic", logx.Any("panic", r))
		}
	}()

	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			b.handleMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			b.handleCallback(ctx, up.Callback)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *kit.Message) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	cmd, arg, _ := strings.Cut(text, " ")
	// Strip the @botname suffix used in groups.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/start":
		b.cmdStart(ctx, m, arg)
	case "/help":
		b.cmdHelp(ctx, m)
	case "/today":
		b.cmdSchedule(ctx, m, latepoint.PeriodToday)
	case "/week":
		b.cmdSchedule(ctx, m, latepoint.PeriodWeek)
	case "/settings":
		b.cmdSettings(ctx, m)
	case "/unbind":
		b.cmdUnbind(ctx, m)
	case "/stats":
		b.cmdStats(ctx, m)
	default:
		b.reply(ctx, m.ChatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.admins[userID]
	return ok
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		b.log.Warn("reply failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}
