package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Counts summarises stored progress for status reporting.
type Counts struct {
	Series   int `json:"series"`
	Seasons  int `json:"seasons"`
	Forwards int `json:"forwards"`
}

// SeriesDone reports whether the series identified by key has been fully
// processed in a previous run.
func (s *Store) SeriesDone(ctx context.Context, key string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM series WHERE key = ?", key)
}

// MarkSeriesDone records a fully processed series. Re-marking is a no-op.
func (s *Store) MarkSeriesDone(ctx context.Context, key, title string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO series (key, title) VALUES (?, ?)", key, title)
	if err != nil {
		return fmt.Errorf("store: mark series done: %w", err)
	}
	return nil
}

// SeasonDone reports whether a season of a series has been processed.
func (s *Store) SeasonDone(ctx context.Context, seriesKey, label string) (bool, error) {
	return s.exists(ctx,
		"SELECT 1 FROM seasons WHERE series_key = ? AND label = ?", seriesKey, label)
}

// MarkSeasonDone records a processed season. Re-marking is a no-op.
func (s *Store) MarkSeasonDone(ctx context.Context, seriesKey, label string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO seasons (series_key, label) VALUES (?, ?)", seriesKey, label)
	if err != nil {
		return fmt.Errorf("store: mark season done: %w", err)
	}
	return nil
}

// ForwardSeen reports whether a file with this fingerprint has already been
// forwarded to the destination.
func (s *Store) ForwardSeen(ctx context.Context, fingerprint string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM forwards WHERE fingerprint = ?", fingerprint)
}

// MarkForwarded records a forwarded file. Re-marking is a no-op.
func (s *Store) MarkForwarded(ctx context.Context, fingerprint, seriesKey, fileName string, size int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO forwards (fingerprint, series_key, file_name, size)
		VALUES (?, ?, ?, ?)`,
		fingerprint, seriesKey, fileName, size)
	if err != nil {
		return fmt.Errorf("store: mark forwarded: %w", err)
	}
	return nil
}

// Counts returns totals across all tables for status output.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM series", &c.Series},
		{"SELECT COUNT(*) FROM seasons", &c.Seasons},
		{"SELECT COUNT(*) FROM forwards", &c.Forwards},
	} {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return Counts{}, fmt.Errorf("store: count: %w", err)
		}
	}
	return c, nil
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("store: exists: %w", err)
	}
}
