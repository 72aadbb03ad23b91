// Package reading owns the shared reading state: the current unit, its
// advancement rules and the unit-selection policies.
package reading

import (
	"errors"
	"fmt"

	"lectio/internal/storage"
)

var (
	// ErrNoActiveUnit means no book has ever been selected.
	ErrNoActiveUnit = errors.New("no active reading unit")
	// ErrExhausted means the current label is fully read; an explicit
	// administrator override is required to continue.
	ErrExhausted = errors.New("reading unit exhausted")
)

// Unit is one addressable reading assignment. Position is 1-based once a
// chapter has been sent; position 0 means "selected, nothing sent yet".
type Unit struct {
	Label    string
	Position int
}

func (u Unit) String() string {
	return fmt.Sprintf("%s %d", u.Label, u.Position)
}

func (u Unit) Ref() storage.UnitRef {
	return storage.UnitRef{Label: u.Label, Position: u.Position}
}

func fromRef(r storage.UnitRef) Unit {
	return Unit{Label: r.Label, Position: r.Position}
}
