package reading

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lectio/internal/catalog"
	"lectio/internal/storage"
)

func newState(t *testing.T) (*State, storage.Store) {
	t.Helper()
	st := storage.NewMemory()
	cat := catalog.New(map[string]int{"Genesis": 50, "Obadiah": 1})
	return NewState(st, cat), st
}

func TestCurrentUnset(t *testing.T) {
	t.Parallel()
	s, _ := newState(t)
	if _, err := s.Current(context.Background()); !errors.Is(err, ErrNoActiveUnit) {
		t.Fatalf("Current on empty state = %v, want ErrNoActiveUnit", err)
	}
	if _, err := s.Advance(context.Background()); !errors.Is(err, ErrNoActiveUnit) {
		t.Fatalf("Advance on empty state = %v, want ErrNoActiveUnit", err)
	}
}

func TestSetThenCurrent(t *testing.T) {
	t.Parallel()
	s, _ := newState(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, "Genesis", 0); err != nil {
		t.Fatal(err)
	}
	u, err := s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Label != "Genesis" || u.Position != 0 {
		t.Fatalf("Current = %+v, want Genesis/0", u)
	}
}

func TestSetValidation(t *testing.T) {
	t.Parallel()
	s, _ := newState(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, "Atlantis", 0); err == nil {
		t.Fatal("Set with unknown label succeeded")
	}
	if _, err := s.Set(ctx, "Genesis", 51); err == nil {
		t.Fatal("Set beyond catalog size succeeded")
	}
	if _, err := s.Set(ctx, "Genesis", -1); err == nil {
		t.Fatal("Set with negative position succeeded")
	}
	if _, err := s.Set(ctx, "Genesis", 50); err != nil {
		t.Fatalf("Set at catalog size failed: %v", err)
	}
}

func TestAdvanceSequence(t *testing.T) {
	t.Parallel()
	s, _ := newState(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, "Obadiah", 0); err != nil {
		t.Fatal(err)
	}
	u, err := s.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Position != 1 {
		t.Fatalf("Advance = %+v, want position 1", u)
	}
	// Obadiah has a single chapter; the next advance is exhausted and
	// must not mutate state.
	if _, err := s.Advance(ctx); !errors.Is(err, ErrExhausted) {
		t.Fatalf("Advance past size = %v, want ErrExhausted", err)
	}
	u, err = s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Position != 1 {
		t.Fatalf("exhausted advance mutated state: %+v", u)
	}
}

func TestAdvanceExhaustedAtCatalogSize(t *testing.T) {
	t.Parallel()
	s, _ := newState(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, "Genesis", 50); err != nil {
		t.Fatal(err)
	}
	u, err := s.Advance(ctx)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Advance = %v, want ErrExhausted", err)
	}
	if u.Label != "Genesis" || u.Position != 50 {
		t.Fatalf("returned unit = %+v, want Genesis/50", u)
	}
}

func TestConcurrentAdvanceNoDoubleCount(t *testing.T) {
	t.Parallel()
	s, _ := newState(t)
	ctx := context.Background()

	if _, err := s.Set(ctx, "Genesis", 0); err != nil {
		t.Fatal(err)
	}

	const attempts = 80 // more than the catalog size
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Advance(ctx); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	u, err := s.Current(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Every successful advance moved the position by exactly one, and
	// the position never passed the catalog size.
	if u.Position != succeeded {
		t.Fatalf("position = %d, successes = %d; lost or doubled update", u.Position, succeeded)
	}
	if u.Position > 50 {
		t.Fatalf("position %d exceeds catalog size", u.Position)
	}
}
