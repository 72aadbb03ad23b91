package storage

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps everything in mutex-guarded maps. It backs the
// "memory" driver and the package tests; contents are lost on restart.
type memoryStore struct {
	mu sync.Mutex

	subs     map[int64]Subscriber
	current  *UnitRef
	progress map[progressKey]ProgressRecord
	picks    map[string]UnitRef
}

type progressKey struct {
	userID int64
	period string
}

func NewMemory() Store {
	return &memoryStore{
		subs:     map[int64]Subscriber{},
		progress: map[progressKey]ProgressRecord{},
		picks:    map[string]UnitRef{},
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) UpsertSubscriber(_ context.Context, s Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.subs[s.ID]; ok {
		prev.Username = s.Username
		m.subs[s.ID] = prev
		return nil
	}
	if s.FirstSeen.IsZero() {
		s.FirstSeen = time.Now()
	}
	m.subs[s.ID] = s
	return nil
}

func (m *memoryStore) ListSubscribers(_ context.Context) ([]Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryStore) GetCurrent(_ context.Context) (UnitRef, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return UnitRef{}, false, nil
	}
	return *m.current, true, nil
}

func (m *memoryStore) SetCurrent(_ context.Context, u UnitRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.current = &cp
	return nil
}

func (m *memoryStore) UpsertProgress(_ context.Context, r ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ReadAt.IsZero() {
		r.ReadAt = time.Now()
	}
	m.progress[progressKey{r.UserID, r.Period}] = r
	return nil
}

func (m *memoryStore) ListProgress(_ context.Context, period string) ([]ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ProgressRecord
	for k, r := range m.progress {
		if k.period == period {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) GetPick(_ context.Context, period string) (UnitRef, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.picks[period]
	return u, ok, nil
}

func (m *memoryStore) PutPick(_ context.Context, period string, u UnitRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.picks[period] = u
	return nil
}
