// Package storage is the persistence gateway: subscriber registry, the
// singleton current-reading-state record, the per-period progress ledger
// and the daily random-pick cache.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Store is the persistence API used by the core services.
//
// All writes are atomic per call: SetCurrent never leaves a torn
// label/position pair, and the upserts are storage-level upserts-by-key.
type Store interface {
	// Subscriber registry.
	UpsertSubscriber(ctx context.Context, s Subscriber) error
	ListSubscribers(ctx context.Context) ([]Subscriber, error)

	// Singleton current state. GetCurrent returns ok=false when no unit
	// has ever been set.
	GetCurrent(ctx context.Context) (u UnitRef, ok bool, err error)
	SetCurrent(ctx context.Context, u UnitRef) error

	// Progress ledger, keyed by (user, period).
	UpsertProgress(ctx context.Context, r ProgressRecord) error
	ListProgress(ctx context.Context, period string) ([]ProgressRecord, error)

	// Daily-pick cache for the randomized selection policy.
	GetPick(ctx context.Context, period string) (u UnitRef, ok bool, err error)
	PutPick(ctx context.Context, period string, u UnitRef) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
