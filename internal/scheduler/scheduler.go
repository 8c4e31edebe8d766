// Package scheduler triggers periodic refreshes from a CRON expression
// evaluated in a configured time zone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/refresh"
)

// Defaults match a daily refresh at midnight UTC.
const (
	DefaultCron     = "0 0 * * *"
	DefaultTimezone = "UTC"
)

// Refresher runs a refresh.
type Refresher interface {
	Refresh(ctx context.Context, force bool) ([]mods.Mod, error)
}

// Scheduler runs scheduled, non-forced refreshes. It owns its context so
// refreshes it starts are not tied to any request.
type Scheduler struct {
	refresher Refresher
	logger    *slog.Logger
	now       func() time.Time

	schedule cron.Schedule
	loc      *time.Location
	cron     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New parses expr in the named time zone. An invalid expression or zone
// is logged and leaves the scheduler disabled; the returned Scheduler is
// still usable and Start only runs the startup refresh.
func New(expr, timezone string, r Refresher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		refresher: r,
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	sched, loc, err := Parse(expr, timezone)
	if err != nil {
		logger.Error("invalid refresh schedule, scheduler disabled", "cron", expr, "timezone", timezone, "error", err)
		return s
	}

	s.schedule = sched
	s.loc = loc
	cl := cronLogger{logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	s.cron.Schedule(sched, cron.FuncJob(func() { s.run(false) }))
	logger.Info("scheduler configured", "cron", expr, "timezone", loc.String())
	return s
}

// Parse validates a five-field CRON expression and a time zone name.
func Parse(expr, timezone string) (cron.Schedule, *time.Location, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	if expr == "" {
		return nil, nil, errors.New("empty cron expression")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched, loc, nil
}

// Enabled reports whether scheduled refreshes will run.
func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

// NextRun returns the next scheduled refresh, or nil when disabled.
func (s *Scheduler) NextRun() *time.Time {
	if s.schedule == nil {
		return nil
	}
	next := s.schedule.Next(s.now().In(s.loc))
	if next.IsZero() {
		return nil
	}
	return &next
}

// Start begins the schedule. With refreshOnStart a forced refresh runs
// immediately in the background.
func (s *Scheduler) Start(refreshOnStart bool) {
	if refreshOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("running initial refresh on startup")
			s.run(true)
		}()
	}
	if s.cron != nil {
		s.cron.Start()
		if next := s.NextRun(); next != nil {
			s.logger.Info("next scheduled refresh", "at", next.Format(time.RFC3339))
		}
	}
}

// Stop cancels any running refresh it started and waits for it.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(force bool) {
	if s.ctx.Err() != nil {
		return
	}
	_, err := s.refresher.Refresh(s.ctx, force)
	switch {
	case err == nil:
	case errors.Is(err, refresh.ErrInProgress):
		s.logger.Info("scheduled refresh skipped, another refresh is running")
	case errors.Is(err, context.Canceled):
		s.logger.Info("scheduled refresh cancelled")
	default:
		s.logger.Error("error during scheduled refresh", "error", err)
	}
	if next := s.NextRun(); next != nil && !force {
		s.logger.Info("next scheduled refresh", "at", next.Format(time.RFC3339))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
