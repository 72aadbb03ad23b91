// Package broadcast fans a message out to a set of recipients with
// bounded concurrency. Per-recipient failures are collected into the
// report and never abort the batch.
package broadcast

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"lectio/internal/transport"
)

type Config struct {
	Workers    int // concurrent senders; default 4
	RatePerSec int // shared outbound rate limit; default 10
}

// Outcome is one recipient's delivery result. Err is nil on success.
type Outcome struct {
	Target transport.ChatTarget
	Err    error
}

type Report struct {
	Total    int
	Sent     int
	Failed   int
	Outcomes []Outcome
	Took     time.Duration
}

type Engine struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender transport.Sender
	log    zerolog.Logger
}

func New(cfg Config, sender transport.Sender, log zerolog.Logger) *Engine {
	e := &Engine{sender: sender, log: log}
	e.Apply(cfg)
	return e
}

// Apply swaps in new limits. Safe to call while broadcasts are running;
// in-flight batches keep the limiter they started with.
func (e *Engine) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	e.mu.Lock()
	e.cfg = cfg
	e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	e.mu.Unlock()
}

// Broadcast delivers text to every target and returns when all attempts
// finished. A failed delivery is recorded and skipped; it never stops the
// rest of the batch. Cancelling ctx abandons the remaining targets, and
// they are reported as failed with the context error.
func (e *Engine) Broadcast(ctx context.Context, text string, opt *transport.SendOptions, targets []transport.ChatTarget) Report {
	start := time.Now()

	e.mu.Lock()
	workers := e.cfg.Workers
	limiter := e.limiter
	sender := e.sender
	e.mu.Unlock()

	if workers > len(targets) {
		workers = len(targets)
	}

	rep := Report{Total: len(targets), Outcomes: make([]Outcome, len(targets))}
	if len(targets) == 0 {
		return rep
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	var repMu sync.Mutex

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		idx := w
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.log.Error().Int("worker", idx).Interface("panic", r).
						Str("stack", string(debug.Stack())).Msg("panic in broadcast worker")
				}
			}()
			for i := range jobs {
				err := e.sendOne(ctx, sender, limiter, targets[i], text, opt)
				repMu.Lock()
				rep.Outcomes[i] = Outcome{Target: targets[i], Err: err}
				if err != nil {
					rep.Failed++
				} else {
					rep.Sent++
				}
				repMu.Unlock()
			}
		}()
	}

feed:
	for i := range targets {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// mark everything not yet handed out as failed
			repMu.Lock()
			for j := i; j < len(targets); j++ {
				if rep.Outcomes[j] == (Outcome{}) {
					rep.Outcomes[j] = Outcome{Target: targets[j], Err: ctx.Err()}
					rep.Failed++
				}
			}
			repMu.Unlock()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	rep.Took = time.Since(start)
	if rep.Failed > 0 {
		e.log.Warn().Int("total", rep.Total).Int("sent", rep.Sent).Int("failed", rep.Failed).
			Dur("took", rep.Took).Msg("broadcast finished with failures")
	} else {
		e.log.Info().Int("total", rep.Total).Dur("took", rep.Took).Msg("broadcast finished")
	}
	return rep
}

func (e *Engine) sendOne(ctx context.Context, sender transport.Sender, limiter *rate.Limiter, t transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := sender.SendText(ctx, t, text, opt)
	if err != nil {
		e.log.Debug().Int64("chat_id", t.ChatID).Err(err).Msg("broadcast send failed")
	}
	return err
}
