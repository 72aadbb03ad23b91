// Package scheduler runs the daily trigger loop: at each configured
// local wall-clock instant it dispatches one action (send or remind)
// into the core.
//
// Triggers fire only at future instants. After a restart the underlying
// cron computes the next instant strictly after "now", so instants
// missed during downtime are skipped, never replayed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Action tags a trigger with what it does when it fires.
type Action string

const (
	ActionSend   Action = "send"   // advance and broadcast
	ActionRemind Action = "remind" // nudge non-readers
)

// Trigger is one daily firing instant in the configured timezone.
type Trigger struct {
	At     string // "HH:MM"
	Action Action
}

type Config struct {
	Timezone    string // IANA TZ, e.g. "Asia/Almaty"
	Triggers    []Trigger
	TickTimeout time.Duration // per-dispatch deadline; default 2m
}

// Dispatch receives the fired action. Errors are logged at the dispatch
// boundary and never terminate the loop.
type Dispatch func(ctx context.Context, action Action) error

type Service struct {
	mu  sync.Mutex
	cfg Config

	dispatch Dispatch
	log      zerolog.Logger
	parser   cron.Parser

	c         *cron.Cron
	loc       *time.Location
	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, dispatch Dispatch, log zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		dispatch: dispatch,
		log:      log,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Start validates the configuration and launches the cron loop. It is a
// no-op if the service is already running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if err := s.startLocked(ctx); err != nil {
		return err
	}
	s.log.Info().Str("tz", s.loc.String()).Int("triggers", len(s.cfg.Triggers)).
		Msg("scheduler started")
	return nil
}

func (s *Service) startLocked(ctx context.Context) error {
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	if len(s.cfg.Triggers) == 0 {
		return errors.New("scheduler: no triggers configured")
	}

	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	runCtx, cancel := context.WithCancel(ctx)

	timeout := s.cfg.TickTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	for _, tr := range s.cfg.Triggers {
		spec, err := cronSpec(tr.At)
		if err != nil {
			cancel()
			return err
		}
		action := tr.Action
		if action != ActionSend && action != ActionRemind {
			cancel()
			return fmt.Errorf("scheduler: unknown action %q", tr.Action)
		}
		if _, err := c.AddFunc(spec, func() { s.fire(runCtx, action, timeout) }); err != nil {
			cancel()
			return fmt.Errorf("scheduler: trigger %q: %w", tr.At, err)
		}
	}

	s.c = c
	s.loc = loc
	s.runCtx = runCtx
	s.runCancel = cancel
	c.Start()
	return nil
}

// Stop halts the loop and interrupts any in-flight dispatch. Waiting for
// running jobs is bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
		s.log.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out; jobs finish in background")
	}
}

// Apply swaps in a new trigger set. A running scheduler is restarted so
// schedule and timezone changes take effect immediately.
func (s *Service) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.c == nil {
		return nil
	}
	old := s.c
	oldCancel := s.runCancel
	s.c = nil
	if err := s.startLocked(context.Background()); err != nil {
		// keep the old loop running rather than losing all triggers
		s.c = old
		return err
	}
	<-old.Stop().Done()
	if oldCancel != nil {
		oldCancel()
	}
	s.log.Info().Int("triggers", len(cfg.Triggers)).Msg("scheduler config applied")
	return nil
}

// fire is the per-tick dispatch boundary: panics and errors are caught
// and logged here so a single bad tick never kills the loop. It must not
// take s.mu: Apply waits out in-flight jobs while holding it.
func (s *Service) fire(ctx context.Context, action Action, timeout time.Duration) {
	if err := ctx.Err(); err != nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).
				Str("action", string(action)).Msg("panic in scheduled action")
		}
	}()

	start := time.Now()
	s.log.Info().Str("action", string(action)).Msg("trigger fired")
	if err := s.dispatch(tctx, action); err != nil {
		s.log.Error().Err(err).Str("action", string(action)).
			Dur("took", time.Since(start)).Msg("scheduled action failed")
		return
	}
	s.log.Debug().Str("action", string(action)).Dur("took", time.Since(start)).
		Msg("scheduled action done")
}

// Next computes the first trigger instant strictly after now, across all
// configured triggers. It mirrors exactly what the running loop will do,
// which makes the catch-up policy testable.
func (s *Service) Next(now time.Time) (time.Time, Action, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, "", err
	}
	var (
		best       time.Time
		bestAction Action
	)
	for _, tr := range cfg.Triggers {
		spec, err := cronSpec(tr.At)
		if err != nil {
			return time.Time{}, "", err
		}
		sched, err := s.parser.Parse(spec)
		if err != nil {
			return time.Time{}, "", err
		}
		at := sched.Next(now.In(loc))
		if best.IsZero() || at.Before(best) {
			best = at
			bestAction = tr.Action
		}
	}
	if best.IsZero() {
		return time.Time{}, "", errors.New("scheduler: no triggers configured")
	}
	return best, bestAction, nil
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler: timezone %q: %w", tz, err)
	}
	return loc, nil
}

// cronSpec converts a daily "HH:MM" instant to a 5-field cron spec.
func cronSpec(at string) (string, error) {
	h, m, err := parseHHMM(at)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

func parseHHMM(s string) (int, int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("scheduler: invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("scheduler: invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("scheduler: invalid minute in %q", s)
	}
	return h, m, nil
}
