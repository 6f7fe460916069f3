package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/snonux/lingogate/internal/languages"
)

// Preference keys
const (
	KeySource       = "translator_source_lang"
	KeyTarget       = "translator_target_lang"
	KeyBatchSource  = "batch_source_lang"
	KeyBatchTargets = "batch_target_langs"
	KeyUILanguage   = "ui_language"
)

// DBName is the database file inside the state directory
const DBName = "lingogate.db"

const schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	source     TEXT NOT NULL,
	target     TEXT NOT NULL,
	text       TEXT NOT NULL,
	result     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS history_created_at ON history (created_at);
`

// Store is the preference and history database
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Open opens (and creates if needed) the database in dir
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	path := filepath.Join(dir, DBName)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db, path: path, log: logger}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the raw value for key
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores the raw value for key
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}

// Languages is a persisted source/target selection
type Languages struct {
	Source string
	Target string
}

// LoadLanguages reads the single translator selection. Legacy codes are
// migrated and invalid ones dropped, leaving the matching field of def.
func (s *Store) LoadLanguages(ctx context.Context, def Languages) Languages {
	out := def

	if src, ok := s.get(ctx, KeySource); ok {
		if src != languages.Auto {
			src = languages.Migrate(src)
		}
		if languages.IsValidSource(src) {
			out.Source = src
		}
	}
	if dst, ok := s.get(ctx, KeyTarget); ok {
		dst = languages.Migrate(dst)
		if languages.IsValid(dst) {
			out.Target = dst
		}
	}
	return out
}

// SaveLanguages persists the selection. The source is always written, the
// target only when it is a supported code.
func (s *Store) SaveLanguages(ctx context.Context, l Languages) {
	s.set(ctx, KeySource, l.Source)
	if languages.IsValid(l.Target) {
		s.set(ctx, KeyTarget, l.Target)
	}
}

// BatchSelection is a persisted batch source with its targets
type BatchSelection struct {
	Source  string
	Targets []string
}

// LoadBatch reads the batch selection. Targets keep their stored order,
// duplicates included.
func (s *Store) LoadBatch(ctx context.Context, def BatchSelection) BatchSelection {
	out := def

	if src, ok := s.get(ctx, KeyBatchSource); ok {
		if src != languages.Auto {
			src = languages.Migrate(src)
		}
		if languages.IsValidSource(src) {
			out.Source = src
		}
	}

	if raw, ok := s.get(ctx, KeyBatchTargets); ok {
		var stored []string
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			s.log.Warn("prefs.batch_targets.invalid", "error", err)
			return out
		}
		targets := make([]string, 0, len(stored))
		for _, code := range stored {
			code = languages.Migrate(code)
			if languages.IsValid(code) {
				targets = append(targets, code)
			}
		}
		if len(targets) > 0 {
			out.Targets = targets
		}
	}
	return out
}

// SaveBatch persists the batch selection
func (s *Store) SaveBatch(ctx context.Context, b BatchSelection) {
	s.set(ctx, KeyBatchSource, b.Source)
	targets := b.Targets
	if targets == nil {
		targets = []string{}
	}
	data, err := json.Marshal(targets)
	if err != nil {
		s.log.Warn("prefs.batch_targets.encode", "error", err)
		return
	}
	s.set(ctx, KeyBatchTargets, string(data))
}

// UILanguage returns the stored UI locale or def
func (s *Store) UILanguage(ctx context.Context, def string) string {
	if v, ok := s.get(ctx, KeyUILanguage); ok && v != "" {
		return v
	}
	return def
}

// SetUILanguage stores the UI locale
func (s *Store) SetUILanguage(ctx context.Context, locale string) {
	s.set(ctx, KeyUILanguage, locale)
}

// get and set swallow storage errors after logging them
func (s *Store) get(ctx context.Context, key string) (string, bool) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		s.log.Warn("prefs.read.fail", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) set(ctx context.Context, key, value string) {
	if err := s.Set(ctx, key, value); err != nil {
		s.log.Warn("prefs.write.fail", "key", key, "error", err)
	}
}
