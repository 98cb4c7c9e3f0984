package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"calltree/internal/engine/attrs"
	"calltree/internal/shared/observability"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5

	// timestamps are fixed width so they order lexically
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store persists attribute snapshots in SQLite.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts while --watch keeps saving.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func normalizeProject(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "default"
	}
	return key
}

// SaveSnapshot stores table under projectKey and returns the snapshot with
// its generated ID and timestamp filled in.
func (s *Store) SaveSnapshot(projectKey string, table *attrs.Table, sources []string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if table == nil {
		table = attrs.NewTable()
	}
	snap := Snapshot{
		ID:            uuid.NewString(),
		ProjectKey:    normalizeProject(projectKey),
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		Sources:       append([]string(nil), sources...),
		Table:         table,
	}
	classes := table.Classes()
	snap.ClassCount = len(classes)
	for _, class := range classes {
		snap.AttributeCount += len(table.Attributes(class))
	}

	err := s.withRetry("save snapshot", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
INSERT INTO snapshots (id, project_key, schema_version, ts_utc, class_count, attribute_count, sources)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			snap.ID,
			snap.ProjectKey,
			snap.SchemaVersion,
			snap.Timestamp.Format(tsLayout),
			snap.ClassCount,
			snap.AttributeCount,
			strings.Join(snap.Sources, "\n"),
		); err != nil {
			_ = tx.Rollback()
			return err
		}

		stmt, err := tx.Prepare(`INSERT INTO snapshot_attributes (snapshot_id, class_pos, class, attribute) VALUES (?, ?, ?, ?)`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer stmt.Close()

		for pos, class := range classes {
			names := table.Attributes(class)
			if len(names) == 0 {
				// An empty attribute keeps classes without attributes.
				names = []string{""}
			}
			for _, name := range names {
				if _, err := stmt.Exec(snap.ID, pos, class, name); err != nil {
					_ = tx.Rollback()
					return err
				}
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return Snapshot{}, err
	}

	observability.HistorySnapshots.Inc()
	return snap, nil
}

// LoadSnapshots returns the snapshots of projectKey taken at or after since,
// oldest first. A zero since loads everything.
func (s *Store) LoadSnapshots(projectKey string, since time.Time) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, project_key, schema_version, ts_utc, class_count, attribute_count, sources
FROM snapshots
WHERE project_key = ?`
	args := []any{normalizeProject(projectKey)}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(tsLayout))
	}
	query += " ORDER BY ts_utc ASC, created_at_utc ASC"

	snapshots, err := s.querySnapshots(query, args...)
	if err != nil {
		return nil, err
	}
	for i := range snapshots {
		if err := s.loadTable(&snapshots[i]); err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

// Latest returns the newest snapshot of projectKey, or nil if there is none.
func (s *Store) Latest(projectKey string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots, err := s.querySnapshots(`
SELECT id, project_key, schema_version, ts_utc, class_count, attribute_count, sources
FROM snapshots
WHERE project_key = ?
ORDER BY ts_utc DESC, created_at_utc DESC
LIMIT 1`, normalizeProject(projectKey))
	if err != nil || len(snapshots) == 0 {
		return nil, err
	}
	if err := s.loadTable(&snapshots[0]); err != nil {
		return nil, err
	}
	return &snapshots[0], nil
}

func (s *Store) querySnapshots(query string, args ...any) ([]Snapshot, error) {
	var rows *sql.Rows
	err := s.withRetry("load snapshots", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			tsRaw    string
			sources  string
			snapshot Snapshot
		)
		if err := rows.Scan(
			&snapshot.ID,
			&snapshot.ProjectKey,
			&snapshot.SchemaVersion,
			&tsRaw,
			&snapshot.ClassCount,
			&snapshot.AttributeCount,
			&sources,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		ts, err := time.Parse(tsLayout, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", tsRaw, err)
		}
		snapshot.Timestamp = ts.UTC()
		if sources != "" {
			snapshot.Sources = strings.Split(sources, "\n")
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snapshots, nil
}

func (s *Store) loadTable(snap *Snapshot) error {
	var rows *sql.Rows
	err := s.withRetry("load snapshot attributes", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT class, attribute FROM snapshot_attributes
WHERE snapshot_id = ?
ORDER BY class_pos ASC, attribute ASC`, snap.ID)
		return qErr
	})
	if err != nil {
		return err
	}
	defer rows.Close()

	table := attrs.NewTable()
	var (
		current string
		names   []string
		started bool
	)
	flush := func() {
		if started {
			table.Set(current, names...)
		}
	}
	for rows.Next() {
		var class, name string
		if err := rows.Scan(&class, &name); err != nil {
			return fmt.Errorf("scan attribute row: %w", err)
		}
		if !started || class != current {
			flush()
			current, names, started = class, nil, true
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attribute rows: %w", err)
	}
	flush()

	snap.Table = table
	return nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
