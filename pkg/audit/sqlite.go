package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
)

// schemaVersion tracks the audit schema. Bump it when the table layout
// changes; initialize refuses to run against a mismatched database.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id              TEXT PRIMARY KEY,
	timestamp       INTEGER NOT NULL,
	document_id     TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	span_count      INTEGER NOT NULL,
	redacted_count  INTEGER NOT NULL,
	short_circuited INTEGER NOT NULL,
	duration_us     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_document_id ON audit_records(document_id);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY
);
`

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "umbra-audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db         *sql.DB
	config     *SQLiteConfig
	insertStmt *sql.Stmt
	logger     *slog.Logger
}

// NewSQLiteStorage creates a SQLite storage backend. It initializes the
// schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != schemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", schemaVersion, version))
	}

	stmt, err := s.db.Prepare(`
		INSERT INTO audit_records (
			id, timestamp, document_id, outcome,
			span_count, redacted_count, short_circuited, duration_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare_insert", err)
	}
	s.insertStmt = stmt

	return nil
}

// Store persists a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return NewStorageError("sqlite", "store", err)
	}

	_, err := s.insertStmt.ExecContext(ctx,
		record.ID.String(),
		record.Timestamp.UnixMicro(),
		record.DocumentID,
		record.Outcome,
		record.SpanCount,
		record.RedactedCount,
		boolToInt(record.ShortCircuited),
		record.Duration.Microseconds(),
	)
	if err != nil {
		return NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves records matching the filters, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	if query == nil {
		query = &Query{}
	}

	whereClause, args := buildWhereClause(query)

	sqlQuery := `SELECT id, timestamp, document_id, outcome,
		span_count, redacted_count, short_circuited, duration_us
		FROM audit_records`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY timestamp DESC"

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of records matching the filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *Query) (int64, error) {
	if query == nil {
		query = &Query{}
	}

	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_records"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&n); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Prune deletes records older than cutoff.
func (s *SQLiteStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_records WHERE timestamp < ?", cutoff.UnixMicro())
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "prune", err)
	}
	return deleted, nil
}

// Backend returns the backend name.
func (s *SQLiteStorage) Backend() string { return "sqlite" }

// Close closes the prepared statements and the database.
func (s *SQLiteStorage) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	return s.db.Close()
}

func buildWhereClause(query *Query) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if query.DocumentID != "" {
		conds = append(conds, "document_id = ?")
		args = append(args, query.DocumentID)
	}
	if query.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, query.Outcome)
	}
	if query.Since != nil {
		conds = append(conds, "timestamp >= ?")
		args = append(args, query.Since.UnixMicro())
	}
	if query.Until != nil {
		conds = append(conds, "timestamp < ?")
		args = append(args, query.Until.UnixMicro())
	}

	return strings.Join(conds, " AND "), args
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		id             string
		ts             int64
		shortCircuited int
		durationUs     int64
		record         Record
	)
	err := rows.Scan(&id, &ts, &record.DocumentID, &record.Outcome,
		&record.SpanCount, &record.RedactedCount, &shortCircuited, &durationUs)
	if err != nil {
		return nil, err
	}

	record.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record ID %q: %w", id, err)
	}
	record.Timestamp = time.UnixMicro(ts).UTC()
	record.ShortCircuited = shortCircuited != 0
	record.Duration = time.Duration(durationUs) * time.Microsecond

	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
