package storage

import (
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": process-local maps, lost on restart
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Subscriber is a registered recipient. Rows are created on first
// interaction and never deleted; re-registration refreshes the username.
type Subscriber struct {
	ID        int64
	Username  string
	FirstSeen time.Time
}

// UnitRef is a (label, position) pair: one addressable reading unit.
type UnitRef struct {
	Label    string
	Position int
}

// ProgressRecord is one acknowledgement in the ledger, keyed by
// (user, period). The unit is denormalized so later state changes do not
// rewrite history.
type ProgressRecord struct {
	UserID int64
	Period string
	Unit   UnitRef
	ReadAt time.Time
}
