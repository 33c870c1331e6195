// Package reminder runs the periodic pre-booking reminder sweep: every tick
// it walks registered users, pulls today's bookings for each from the booking
// plugin and sends a reminder once the booking enters the user's lead window.
// The sent_reminders ledger keeps the sweep idempotent across ticks and
// restarts.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"latebot/internal/directory"
	"latebot/internal/dispatch"
	"latebot/internal/event"
	"latebot/internal/latepoint"
	"latebot/internal/storage"
	"latebot/internal/timeutil"
	logx "latebot/pkg/logx"
)

type Config struct {
	Enabled       bool
	CheckInterval time.Duration
	// Timezone is the booking system's zone; booking date/time strings are
	// interpreted in it.
	Timezone           string
	DefaultLeadMinutes int
}

type Scheduler struct {
	cfg   Config
	store storage.Store
	dir   *directory.Directory
	lp    *latepoint.Client
	disp  *dispatch.Dispatcher
	log   logx.Logger

	loc *time.Location
	now func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func New(cfg Config, store storage.Store, dir *directory.Directory, lp *latepoint.Client, disp *dispatch.Dispatcher, log logx.Logger) (*Scheduler, error) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.DefaultLeadMinutes <= 0 {
		cfg.DefaultLeadMinutes = 60
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("reminder timezone: %w", err)
		}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		cfg:   cfg,
		store: store,
		dir:   dir,
		lp:    lp,
		disp:  disp,
		log:   log,
		loc:   loc,
		now:   time.Now,
	}, nil
}

// Start launches the cron loop. It is a no-op when the scheduler is disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Info("reminder scheduler disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(cron.WithLocation(s.loc))
	c.Schedule(cron.Every(s.cfg.CheckInterval), cron.FuncJob(func() {
		s.runTick(ctx, s.now().In(s.loc))
	}))
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info("reminder scheduler started",
		logx.Duration("interval", s.cfg.CheckInterval),
		logx.String("zone", s.loc.String()))
	return nil
}

// Stop halts scheduling and waits for an in-flight tick to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	done := c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runTick is one sweep. A failing user never aborts the sweep; a failing
// upstream fetch skips that one user until the next tick.
func (s *Scheduler) runTick(ctx context.Context, now time.Time) {
	users, err := s.store.AllUsers(ctx)
	if err != nil {
		s.log.Error("reminder sweep: user listing failed", logx.Err(err))
		return
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		s.checkUser(ctx, u, now)
	}
}

func (s *Scheduler) checkUser(ctx context.Context, u storage.User, now time.Time) {
	settings, ok, err := s.dir.ExplicitSettings(ctx, u.ChatID)
	if err != nil {
		s.log.Error("reminder sweep: settings lookup failed", logx.Int64("chat", u.ChatID), logx.Err(err))
		return
	}
	// Registration creates the settings row; a user without one never opted
	// into reminders.
	if !ok || !settings.NotifyReminders {
		return
	}
	lead := settings.ReminderLeadMinutes
	if lead <= 0 {
		lead = s.cfg.DefaultLeadMinutes
	}

	res := s.lp.Schedule(ctx, u.ChatID, latepoint.PeriodToday)
	if !res.Success {
		s.log.Debug("reminder sweep: schedule fetch failed",
			logx.Int64("chat", u.ChatID), logx.String("reason", res.Message))
		return
	}

	for i := range res.Bookings {
		b := &res.Bookings[i]
		if b.BookingID == 0 {
			continue
		}
		s.checkBooking(ctx, u, b, now, lead)
	}
}

func (s *Scheduler) checkBooking(ctx context.Context, u storage.User, b *event.Booking, now time.Time, leadMinutes int) {
	start, err := timeutil.ParseStart(b.StartDate, b.StartTime, s.loc)
	if err != nil {
		s.log.Warn("reminder sweep: unparseable booking start",
			logx.Int64("booking", b.BookingID), logx.Err(err))
		return
	}
	if !dueNow(start, now, leadMinutes) {
		return
	}

	sent, err := s.store.ReminderSent(ctx, b.BookingID, u.ChatID)
	if err != nil {
		s.log.Error("reminder sweep: ledger read failed", logx.Int64("booking", b.BookingID), logx.Err(err))
		return
	}
	if sent {
		return
	}

	s.disp.SendReminder(ctx, u, b)

	// Mark regardless of delivery outcome: a reminder is attempted once.
	// ErrDuplicate means a concurrent tick won the race, which is fine.
	if err := s.store.MarkReminderSent(ctx, b.BookingID, u.ChatID); err != nil && !errors.Is(err, storage.ErrDuplicate) {
		s.log.Error("reminder sweep: ledger write failed",
			logx.Int64("booking", b.BookingID), logx.Int64("chat", u.ChatID), logx.Err(err))
	}
}

// dueNow reports whether now falls in [start-lead, start). The right edge is
// exclusive: a booking that has started gets no reminder.
func dueNow(start, now time.Time, leadMinutes int) bool {
	open := start.Add(-time.Duration(leadMinutes) * time.Minute)
	return !now.Before(open) && now.Before(start)
}
