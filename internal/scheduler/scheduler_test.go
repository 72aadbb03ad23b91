package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testConfig() Config {
	return Config{
		Timezone: "UTC",
		Triggers: []Trigger{
			{At: "09:00", Action: ActionSend},
			{At: "22:00", Action: ActionRemind},
		},
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	invalid := []string{"", "9", "24:00", "09:60", "ab:cd", "9.30"}
	for _, raw := range invalid {
		if _, _, err := parseHHMM(raw); err == nil {
			t.Fatalf("parseHHMM(%q) succeeded, want error", raw)
		}
	}
}

func TestCronSpec(t *testing.T) {
	t.Parallel()
	spec, err := cronSpec("08:30")
	if err != nil {
		t.Fatal(err)
	}
	if spec != "30 8 * * *" {
		t.Fatalf("cronSpec = %q, want \"30 8 * * *\"", spec)
	}
}

func TestNextSkipsMissedInstants(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), nil, zerolog.Nop())

	// Restart at noon: 09:00 already passed for the day, so the next
	// instant is 22:00 today, not a re-fire of 09:00.
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	at, action, err := s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	if !at.Equal(want) || action != ActionRemind {
		t.Fatalf("Next = %v/%v, want %v/remind", at, action, want)
	}

	// Past the last instant of the day: wrap to tomorrow's first.
	now = time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	at, action, err = s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	if !at.Equal(want) || action != ActionSend {
		t.Fatalf("Next = %v/%v, want %v/send", at, action, want)
	}

	// Exactly at an instant: strictly after, so the next one wins.
	now = time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	at, _, err = s.Next(now)
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("Next at boundary = %v, want %v", at, want)
	}
}

func TestStartValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no triggers", cfg: Config{Timezone: "UTC"}},
		{name: "bad timezone", cfg: Config{Timezone: "Mars/Olympus", Triggers: []Trigger{{At: "09:00", Action: ActionSend}}}},
		{name: "bad time", cfg: Config{Timezone: "UTC", Triggers: []Trigger{{At: "25:00", Action: ActionSend}}}},
		{name: "bad action", cfg: Config{Timezone: "UTC", Triggers: []Trigger{{At: "09:00", Action: "explode"}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := New(tt.cfg, func(context.Context, Action) error { return nil }, zerolog.Nop())
			if err := s.Start(context.Background()); err == nil {
				s.Stop(context.Background())
				t.Fatal("Start succeeded, want error")
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), func(context.Context, Action) error { return nil }, zerolog.Nop())
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	// Second start is a no-op.
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		s.Stop(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
}

func TestFireCatchesErrorsAndPanics(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := New(testConfig(), func(_ context.Context, a Action) error {
		calls.Add(1)
		if a == ActionSend {
			panic("boom")
		}
		return errors.New("remind failed")
	}, zerolog.Nop())

	// Neither a panic nor an error may escape the dispatch boundary.
	s.fire(context.Background(), ActionSend, time.Minute)
	s.fire(context.Background(), ActionRemind, time.Minute)
	if calls.Load() != 2 {
		t.Fatalf("dispatch called %d times, want 2", calls.Load())
	}
}

func TestFireSkipsCancelledContext(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := New(testConfig(), func(context.Context, Action) error {
		calls.Add(1)
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.fire(ctx, ActionSend, time.Minute)
	if calls.Load() != 0 {
		t.Fatal("dispatch ran after shutdown")
	}
}

func TestApplyWhileStopped(t *testing.T) {
	t.Parallel()
	s := New(testConfig(), func(context.Context, Action) error { return nil }, zerolog.Nop())
	cfg := testConfig()
	cfg.Triggers = append(cfg.Triggers, Trigger{At: "08:00", Action: ActionSend})
	if err := s.Apply(cfg); err != nil {
		t.Fatal(err)
	}
	at, _, err := s.Next(time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 8, 30, 8, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Fatalf("Next after Apply = %v, want %v", at, want)
	}
}
