package disambiguation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"umbra-hq/umbra/pkg/span"
)

// ObservationStore persists disambiguation history so the vector cache
// warms across restarts. The in-memory cache remains authoritative at
// runtime; the store is written on snapshot, read on warm-up.
type ObservationStore interface {
	// Load returns all persisted observations keyed by window text.
	Load(ctx context.Context) (map[string][]Observation, error)

	// Snapshot replaces the persisted history with the cache contents.
	Snapshot(ctx context.Context, cache *ObservationCache) error

	// Close releases store resources.
	Close() error
}

// SQLiteStoreConfig configures the SQLite observation store.
type SQLiteStoreConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// SQLiteStore persists observations in a single SQLite table. Vectors are
// JSON-encoded; history volume is bounded by the cache's own per-key cap,
// so the table stays small.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSQLiteStore opens (and if needed initializes) the observation store.
func NewSQLiteStore(cfg SQLiteStoreConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("observation store path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open observation store: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "disambiguation.store"),
	}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS observations (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	window_key  TEXT NOT NULL,
	filter_type TEXT NOT NULL,
	vector      TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_key ON observations(window_key);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize observation schema: %w", err)
	}
	return nil
}

// Load reads all persisted observations.
func (s *SQLiteStore) Load(ctx context.Context) (map[string][]Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT window_key, filter_type, vector FROM observations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Observation)
	for rows.Next() {
		var key, ft, vecJSON string
		if err := rows.Scan(&key, &ft, &vecJSON); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		var vec []float64
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			s.logger.Warn("skipping corrupt observation row", "window_key", key, "error", err)
			continue
		}
		out[key] = append(out[key], Observation{FilterType: span.FilterType(ft), Vector: vec})
	}
	return out, rows.Err()
}

// Snapshot replaces the persisted history with the cache contents in one
// transaction.
func (s *SQLiteStore) Snapshot(ctx context.Context, cache *ObservationCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("failed to clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (window_key, filter_type, vector, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	var insertErr error
	cache.Range(func(key string, o Observation) {
		if insertErr != nil {
			return
		}
		vecJSON, err := json.Marshal(o.Vector)
		if err != nil {
			insertErr = err
			return
		}
		if _, err := stmt.ExecContext(ctx, key, string(o.FilterType), string(vecJSON), now); err != nil {
			insertErr = err
		}
	})
	if insertErr != nil {
		return fmt.Errorf("failed to insert observation: %w", insertErr)
	}

	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WarmCache loads persisted observations into the cache. Missing or empty
// history is not an error.
func WarmCache(ctx context.Context, store ObservationStore, cache *ObservationCache) error {
	if store == nil {
		return nil
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		return err
	}
	for key, obs := range loaded {
		for _, o := range obs {
			cache.Add(key, o.FilterType, o.Vector)
		}
	}
	return nil
}
