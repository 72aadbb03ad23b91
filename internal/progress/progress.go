// Package progress records per-subscriber acknowledgements and answers
// completion queries.
//
// Acknowledgements are period-scoped: the ledger key is (subscriber,
// calendar day). This stays well-defined even if the administrator
// overrides the unit mid-day; the acknowledged unit is denormalized into
// the record for reporting.
package progress

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"lectio/internal/storage"
)

// DayKey formats t as the ledger period key. Callers pass time already
// shifted into the campaign timezone.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

type Ledger struct {
	store storage.Store
	log   zerolog.Logger
}

func New(store storage.Store, log zerolog.Logger) *Ledger {
	return &Ledger{store: store, log: log}
}

// Acknowledge upserts one acknowledgement. Repeated calls with the same
// (subscriber, period) key overwrite rather than duplicate.
func (l *Ledger) Acknowledge(ctx context.Context, userID int64, unit storage.UnitRef, period string) error {
	rec := storage.ProgressRecord{
		UserID: userID,
		Period: period,
		Unit:   unit,
		ReadAt: time.Now(),
	}
	if err := l.store.UpsertProgress(ctx, rec); err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	l.log.Debug().Int64("user", userID).Str("period", period).
		Str("unit", unit.Label).Int("position", unit.Position).
		Msg("acknowledgement recorded")
	return nil
}

// Readers returns subscribers who acknowledged during the period, sorted
// by ID for stable output.
func (l *Ledger) Readers(ctx context.Context, period string) ([]storage.Subscriber, error) {
	subs, acked, err := l.split(ctx, period)
	if err != nil {
		return nil, err
	}
	var out []storage.Subscriber
	for _, s := range subs {
		if acked[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

// NonReaders is the complement of Readers over the full registry.
func (l *Ledger) NonReaders(ctx context.Context, period string) ([]storage.Subscriber, error) {
	subs, acked, err := l.split(ctx, period)
	if err != nil {
		return nil, err
	}
	var out []storage.Subscriber
	for _, s := range subs {
		if !acked[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Completion returns (acknowledged, total registered) for the period.
func (l *Ledger) Completion(ctx context.Context, period string) (read, total int, err error) {
	subs, acked, err := l.split(ctx, period)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range subs {
		if acked[s.ID] {
			read++
		}
	}
	return read, len(subs), nil
}

func (l *Ledger) split(ctx context.Context, period string) ([]storage.Subscriber, map[int64]bool, error) {
	subs, err := l.store.ListSubscribers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list subscribers: %w", err)
	}
	recs, err := l.store.ListProgress(ctx, period)
	if err != nil {
		return nil, nil, fmt.Errorf("list progress: %w", err)
	}
	acked := make(map[int64]bool, len(recs))
	for _, r := range recs {
		acked[r.UserID] = true
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, acked, nil
}
