package prefs

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/snonux/lingogate/internal"
)

// Entry is one recorded translation
type Entry struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Target    string
	Text      string
	Result    string
}

// Record appends a translation to the history
func (s *Store) Record(ctx context.Context, source, target, text, result string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, created_at, source, target, text, result) VALUES (?, ?, ?, ?, ?, ?)`,
		internal.NewEntryID(now), now.UnixMilli(), source, target, text, result)
	if err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, created_at, source, target, text, result FROM history ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var millis int64
		if err := rows.Scan(&e.ID, &millis, &e.Source, &e.Target, &e.Text, &e.Result); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = time.UnixMilli(millis)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory deletes all entries and returns how many were removed
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}
