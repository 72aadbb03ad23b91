package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func openSQLite(cfg Config, log zerolog.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	st.log.Debug().Str("path", path).Msg("sqlite store ready")
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertSubscriber(ctx context.Context, sub Subscriber) error {
	if sub.FirstSeen.IsZero() {
		sub.FirstSeen = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(user_id, username, first_seen) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET username=excluded.username`,
		sub.ID, sub.Username, sub.FirstSeen.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, first_seen FROM subscribers ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var sub Subscriber
		var seen string
		if err := rows.Scan(&sub.ID, &sub.Username, &seen); err != nil {
			return nil, err
		}
		sub.FirstSeen, _ = time.Parse(time.RFC3339Nano, seen)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetCurrent(ctx context.Context) (UnitRef, bool, error) {
	var u UnitRef
	err := s.db.QueryRowContext(ctx,
		`SELECT label, position FROM current_state WHERE id = 1`).
		Scan(&u.Label, &u.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return UnitRef{}, false, nil
	}
	if err != nil {
		return UnitRef{}, false, err
	}
	return u, true, nil
}

func (s *sqliteStore) SetCurrent(ctx context.Context, u UnitRef) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO current_state(id, label, position) VALUES(1,?,?)
		 ON CONFLICT(id) DO UPDATE SET label=excluded.label, position=excluded.position`,
		u.Label, u.Position,
	)
	return err
}

func (s *sqliteStore) UpsertProgress(ctx context.Context, r ProgressRecord) error {
	if r.ReadAt.IsZero() {
		r.ReadAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress(user_id, period, label, position, read_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(user_id, period) DO UPDATE SET
		   label=excluded.label, position=excluded.position, read_at=excluded.read_at`,
		r.UserID, r.Period, r.Unit.Label, r.Unit.Position, r.ReadAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ListProgress(ctx context.Context, period string) ([]ProgressRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, period, label, position, read_at FROM progress WHERE period = ?`,
		period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProgressRecord
	for rows.Next() {
		var r ProgressRecord
		var at string
		if err := rows.Scan(&r.UserID, &r.Period, &r.Unit.Label, &r.Unit.Position, &at); err != nil {
			return nil, err
		}
		r.ReadAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) GetPick(ctx context.Context, period string) (UnitRef, bool, error) {
	var u UnitRef
	err := s.db.QueryRowContext(ctx,
		`SELECT label, position FROM daily_pick WHERE period = ?`, period).
		Scan(&u.Label, &u.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return UnitRef{}, false, nil
	}
	if err != nil {
		return UnitRef{}, false, err
	}
	return u, true, nil
}

func (s *sqliteStore) PutPick(ctx context.Context, period string, u UnitRef) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_pick(period, label, position) VALUES(?,?,?)
		 ON CONFLICT(period) DO UPDATE SET label=excluded.label, position=excluded.position`,
		period, u.Label, u.Position,
	)
	return err
}
