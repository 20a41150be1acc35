package archive

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"downpour/server/internal/events"
	"downpour/server/internal/job"
)

// Entry is one finished download in the history database.
type Entry struct {
	Id        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

type Stats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
}

// Service records every terminal job and answers history queries.
type Service struct {
	db *sql.DB
	ch chan job.Snapshot
}

func Open(path string) (*Service, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS downloads (
		id         TEXT PRIMARY KEY,
		url        TEXT NOT NULL,
		title      TEXT,
		path       TEXT,
		state      TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Service{
		db: db,
		ch: make(chan job.Snapshot, 16),
	}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// Attach subscribes the archive to job state events. Only terminal
// transitions reach the database.
func (s *Service) Attach(bus *events.Bus) error {
	return bus.SubscribeState(func(snap job.Snapshot) {
		if !snap.State.Terminal() {
			return
		}
		select {
		case s.ch <- snap:
		default:
			slog.Warn("archive backlog full, dropping record", slog.String("id", snap.Id))
		}
	})
}

// Consume drains recorded snapshots until ctx is done.
func (s *Service) Consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.ch:
			if err := s.record(ctx, snap); err != nil {
				slog.Error("failed archiving download", slog.String("id", snap.Id), slog.Any("err", err))
			}
		}
	}
}

func (s *Service) record(ctx context.Context, snap job.Snapshot) error {
	slog.Info("archiving finished download",
		slog.String("id", snap.Id),
		slog.String("state", string(snap.State)),
	)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO downloads (id, url, title, path, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Id, snap.URL, snap.Title, snap.SavedPath, string(snap.State), snap.CreatedAt,
	)
	return err
}

func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, path, state, created_at
		 FROM downloads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Id, &e.URL, &e.Title, &e.Path, &e.State, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(state = 'completed'), 0) FROM downloads`,
	).Scan(&stats.Total, &stats.Succeeded)
	return stats, err
}

func (s *Service) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads`)
	return err
}
