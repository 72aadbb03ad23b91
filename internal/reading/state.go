package reading

import (
	"context"
	"fmt"
	"sync"

	"lectio/internal/catalog"
	"lectio/internal/storage"
)

// State is the single-writer state machine over the current-unit record.
// Every mutation goes through one mutex, so a scheduler tick racing an
// administrator "send now" can never double-advance.
type State struct {
	mu  sync.Mutex
	st  storage.Store
	cat *catalog.Catalog
}

func NewState(st storage.Store, cat *catalog.Catalog) *State {
	return &State{st: st, cat: cat}
}

// Current returns the active unit, or ErrNoActiveUnit if none was ever
// set. Reads go through the store so restarts observe persisted state.
func (s *State) Current(ctx context.Context) (Unit, error) {
	u, ok, err := s.st.GetCurrent(ctx)
	if err != nil {
		return Unit{}, fmt.Errorf("read current state: %w", err)
	}
	if !ok {
		return Unit{}, ErrNoActiveUnit
	}
	return fromRef(u), nil
}

// Set overwrites the current unit unconditionally. The label must exist
// in the catalog and position must be within [0, size].
func (s *State) Set(ctx context.Context, label string, position int) (Unit, error) {
	size, err := s.cat.Size(label)
	if err != nil {
		return Unit{}, err
	}
	if position < 0 || position > size {
		return Unit{}, fmt.Errorf("position %d out of range [0, %d] for %q", position, size, label)
	}
	u := Unit{Label: label, Position: position}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.SetCurrent(ctx, u.Ref()); err != nil {
		return Unit{}, fmt.Errorf("write current state: %w", err)
	}
	return u, nil
}

// Advance moves to the next position within the current label and
// persists it. It returns ErrExhausted, leaving state untouched, once the
// catalog size is reached, and ErrNoActiveUnit if nothing was selected.
func (s *State) Advance(ctx context.Context) (Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok, err := s.st.GetCurrent(ctx)
	if err != nil {
		return Unit{}, fmt.Errorf("read current state: %w", err)
	}
	if !ok {
		return Unit{}, ErrNoActiveUnit
	}
	size, err := s.cat.Size(cur.Label)
	if err != nil {
		// Label vanished from the catalog (config changed between runs).
		return Unit{}, fmt.Errorf("current unit %q: %w", cur.Label, err)
	}
	if cur.Position+1 > size {
		return fromRef(cur), ErrExhausted
	}
	next := storage.UnitRef{Label: cur.Label, Position: cur.Position + 1}
	if err := s.st.SetCurrent(ctx, next); err != nil {
		return Unit{}, fmt.Errorf("write current state: %w", err)
	}
	return fromRef(next), nil
}
