package security

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ironbank/internal/domain"
)

// SQLiteAuditLogger implements domain.AuditLogger on a SQLite database. It
// keeps the same entry shape as the JSONL journal and answers queries
// without scanning the whole history.
type SQLiteAuditLogger struct {
	db   *sql.DB
	path string

	mu        sync.Mutex
	retention *RetentionPolicy
	now       func() time.Time
}

// NewSQLiteAuditLogger opens (or creates, mode 0600) the database at path and
// runs the schema migration.
func NewSQLiteAuditLogger(path string) (*SQLiteAuditLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under concurrent Log calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrateAudit(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &SQLiteAuditLogger{db: db, path: path, now: time.Now}, nil
}

func migrateAudit(db *sql.DB) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_ns INTEGER NOT NULL,
			type  TEXT NOT NULL,
			data  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS audit_events_ts ON audit_events (ts_ns)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the database location.
func (s *SQLiteAuditLogger) Path() string { return s.path }

// SetRetention configures the policy applied by EnforceRetention.
func (s *SQLiteAuditLogger) SetRetention(policy RetentionPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retention = &policy
}

// Log inserts event and mirrors it onto the active span.
func (s *SQLiteAuditLogger) Log(ctx context.Context, event domain.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return domain.NewDomainError("SQLiteAuditLogger.Log", domain.ErrIO, err.Error())
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO audit_events (ts_ns, type, data) VALUES (?, ?, ?)",
		event.Timestamp.UnixNano(), string(event.Type), string(data),
	)
	if err != nil {
		return domain.NewDomainError("SQLiteAuditLogger.Log", domain.ErrIO, err.Error())
	}
	mirrorToSpan(ctx, event)
	return nil
}

// Recent returns matching entries, newest first.
func (s *SQLiteAuditLogger) Recent(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEvent, error) {
	var since int64
	if !q.Since.IsZero() {
		since = q.Since.UnixNano()
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM audit_events
		WHERE (? = '' OR type = ?) AND ts_ns >= ?
		ORDER BY ts_ns DESC, id DESC
		LIMIT ?`,
		string(q.Type), string(q.Type), since, limit,
	)
	if err != nil {
		return nil, domain.NewDomainError("SQLiteAuditLogger.Recent", domain.ErrIO, err.Error())
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, domain.NewDomainError("SQLiteAuditLogger.Recent", domain.ErrIO, err.Error())
		}
		var e domain.AuditEvent
		if json.Unmarshal([]byte(data), &e) != nil {
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewDomainError("SQLiteAuditLogger.Recent", domain.ErrIO, err.Error())
	}
	return out, nil
}

// EnforceRetention deletes entries older than MaxAge, then the oldest entries
// until the stored entries fit MaxSize. Size counts the encoded entries the
// same way the JSONL journal does (one line each), not the database file.
func (s *SQLiteAuditLogger) EnforceRetention(ctx context.Context) (removed int, err error) {
	s.mu.Lock()
	policy := s.retention
	s.mu.Unlock()
	if policy == nil || (policy.MaxAge == 0 && policy.MaxSize == 0) {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin retention: %w", err)
	}
	defer tx.Rollback()

	if policy.MaxAge > 0 {
		cutoff := s.now().Add(-policy.MaxAge).UnixNano()
		res, err := tx.ExecContext(ctx, "DELETE FROM audit_events WHERE ts_ns < ?", cutoff)
		if err != nil {
			return 0, fmt.Errorf("prune by age: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}

	if policy.MaxSize > 0 {
		n, err := pruneBySize(ctx, tx, policy.MaxSize)
		if err != nil {
			return 0, err
		}
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit retention: %w", err)
	}
	return removed, nil
}

func pruneBySize(ctx context.Context, tx *sql.Tx, maxSize int64) (int, error) {
	var total int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(length(data) + 1), 0) FROM audit_events",
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("measure journal: %w", err)
	}
	if total <= maxSize {
		return 0, nil
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, length(data) + 1 FROM audit_events ORDER BY ts_ns, id")
	if err != nil {
		return 0, fmt.Errorf("scan journal: %w", err)
	}
	var doomed []int64
	for rows.Next() && total > maxSize {
		var id, size int64
		if err := rows.Scan(&id, &size); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan journal: %w", err)
		}
		doomed = append(doomed, id)
		total -= size
	}
	rows.Close()

	for _, id := range doomed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM audit_events WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("prune by size: %w", err)
		}
	}
	return len(doomed), nil
}

// Close closes the database.
func (s *SQLiteAuditLogger) Close() error {
	return s.db.Close()
}
