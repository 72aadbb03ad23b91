package progress

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lectio/internal/storage"
)

func setup(t *testing.T) (*Ledger, storage.Store) {
	t.Helper()
	st := storage.NewMemory()
	return New(st, zerolog.Nop()), st
}

func register(t *testing.T, st storage.Store, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if err := st.UpsertSubscriber(context.Background(), storage.Subscriber{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAcknowledgeIdempotent(t *testing.T) {
	t.Parallel()
	l, st := setup(t)
	ctx := context.Background()
	register(t, st, 1)

	unit := storage.UnitRef{Label: "Genesis", Position: 1}
	if err := l.Acknowledge(ctx, 1, unit, "2026-08-30"); err != nil {
		t.Fatal(err)
	}
	if err := l.Acknowledge(ctx, 1, unit, "2026-08-30"); err != nil {
		t.Fatal(err)
	}
	read, total, err := l.Completion(ctx, "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}
	if read != 1 || total != 1 {
		t.Fatalf("Completion = (%d, %d), want (1, 1)", read, total)
	}
}

func TestReadersNonReadersPartition(t *testing.T) {
	t.Parallel()
	l, st := setup(t)
	ctx := context.Background()
	register(t, st, 1, 2, 3)

	unit := storage.UnitRef{Label: "Genesis", Position: 1}
	if err := l.Acknowledge(ctx, 2, unit, "2026-08-30"); err != nil {
		t.Fatal(err)
	}

	readers, err := l.Readers(ctx, "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}
	nonReaders, err := l.NonReaders(ctx, "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}

	if len(readers) != 1 || readers[0].ID != 2 {
		t.Fatalf("Readers = %+v, want [2]", readers)
	}
	if len(nonReaders) != 2 {
		t.Fatalf("NonReaders = %+v, want two entries", nonReaders)
	}

	// Union covers the registry, intersection is empty.
	seen := map[int64]int{}
	for _, s := range readers {
		seen[s.ID]++
	}
	for _, s := range nonReaders {
		seen[s.ID]++
	}
	if len(seen) != 3 {
		t.Fatalf("union has %d members, want 3", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("subscriber %d appears %d times", id, n)
		}
	}

	read, total, err := l.Completion(ctx, "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}
	if read != 1 || total != 3 {
		t.Fatalf("Completion = (%d, %d), want (1, 3)", read, total)
	}
}

func TestAcknowledgementScopedToPeriod(t *testing.T) {
	t.Parallel()
	l, st := setup(t)
	ctx := context.Background()
	register(t, st, 1)

	unit := storage.UnitRef{Label: "Genesis", Position: 1}
	if err := l.Acknowledge(ctx, 1, unit, "2026-08-29"); err != nil {
		t.Fatal(err)
	}
	read, total, err := l.Completion(ctx, "2026-08-30")
	if err != nil {
		t.Fatal(err)
	}
	if read != 0 || total != 1 {
		t.Fatalf("Completion = (%d, %d), want (0, 1)", read, total)
	}
}

func TestDayKey(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC)
	if got := DayKey(at); got != "2026-08-30" {
		t.Fatalf("DayKey = %q, want 2026-08-30", got)
	}
}
