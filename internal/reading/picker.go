package reading

import (
	"context"
	"fmt"
	"math/rand/v2"

	"lectio/internal/catalog"
	"lectio/internal/storage"
)

// RandomDaily picks one random unit per period and caches the pick in the
// store, so every lookup within the same period returns the same unit.
// Determinism comes from the cache, not the RNG.
type RandomDaily struct {
	st  storage.Store
	cat *catalog.Catalog
}

func NewRandomDaily(st storage.Store, cat *catalog.Catalog) *RandomDaily {
	return &RandomDaily{st: st, cat: cat}
}

// Pick returns the period's unit, rolling and caching a new one on first
// use.
func (p *RandomDaily) Pick(ctx context.Context, period string) (Unit, error) {
	cached, ok, err := p.st.GetPick(ctx, period)
	if err != nil {
		return Unit{}, fmt.Errorf("read daily pick: %w", err)
	}
	if ok {
		return fromRef(cached), nil
	}
	return p.roll(ctx, period)
}

// Reroll discards the period's cached pick and rolls a fresh one. Other
// periods are unaffected.
func (p *RandomDaily) Reroll(ctx context.Context, period string) (Unit, error) {
	return p.roll(ctx, period)
}

func (p *RandomDaily) roll(ctx context.Context, period string) (Unit, error) {
	labels := p.cat.Labels()
	if len(labels) == 0 {
		return Unit{}, ErrNoActiveUnit
	}
	label := labels[rand.IntN(len(labels))]
	size, err := p.cat.Size(label)
	if err != nil {
		return Unit{}, err
	}
	u := Unit{Label: label, Position: 1 + rand.IntN(size)}
	if err := p.st.PutPick(ctx, period, u.Ref()); err != nil {
		return Unit{}, fmt.Errorf("cache daily pick: %w", err)
	}
	return u, nil
}
