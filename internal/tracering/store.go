// Package tracering implements the C10 TraceRing: an append-only, bounded,
// queryable log of request metadata and outcomes. Headers are scrubbed and
// bodies are never stored, only hashed, before a trace ever reaches Append.
package tracering

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	method TEXT NOT NULL,
	path TEXT NOT NULL,
	status INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	ip TEXT NOT NULL,
	user_agent TEXT NOT NULL,
	headers_scrubbed TEXT NOT NULL,
	query_params TEXT NOT NULL,
	body_sha256 TEXT NOT NULL,
	session_id TEXT NOT NULL,
	error TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_ts ON traces(ts);
`

// Retention bounds the ring: oldest records are evicted first, both by
// count and by age.
type Retention struct {
	MaxRecords int
	MaxAge     time.Duration
}

// Store is the process-singleton C10 component. Append uses a single
// mutex; List and Get read concurrently and may race with an in-flight
// Append (never observing a partially-written row, per spec.md §5).
type Store struct {
	db        *sql.DB
	retention Retention
	mu        sync.Mutex
}

// Open opens (creating if necessary) a sqlite-backed Store at path. An
// empty path opens an in-memory store.
func Open(path string, retention Retention) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init trace schema: %w", err)
	}
	if retention.MaxRecords <= 0 {
		retention.MaxRecords = 10000
	}
	return &Store{db: db, retention: retention}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append records trace and evicts records beyond the configured retention.
func (s *Store) Append(ctx context.Context, trace domain.Trace) error {
	headersJSON, err := json.Marshal(trace.HeadersScrubbed)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	paramsJSON, err := json.Marshal(trace.QueryParams)
	if err != nil {
		return fmt.Errorf("marshal query params: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (id, ts, method, path, status, latency_ms, ip, user_agent, headers_scrubbed, query_params, body_sha256, session_id, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trace.ID, trace.TS, trace.Method, trace.Path, trace.Status, trace.LatencyMS, trace.IP, trace.UserAgent,
		string(headersJSON), string(paramsJSON), trace.BodySHA256, trace.SessionID, trace.Error,
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}

	return s.evict(ctx)
}

// evict drops records beyond MaxRecords and older than MaxAge. Called
// under s.mu.
func (s *Store) evict(ctx context.Context) error {
	if s.retention.MaxAge > 0 {
		cutoff := time.Now().UTC().Add(-s.retention.MaxAge)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM traces WHERE ts < ?`, cutoff); err != nil {
			return fmt.Errorf("evict by age: %w", err)
		}
	}
	if s.retention.MaxRecords > 0 {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM traces WHERE id NOT IN (SELECT id FROM traces ORDER BY ts DESC LIMIT ?)`,
			s.retention.MaxRecords,
		)
		if err != nil {
			return fmt.Errorf("evict by count: %w", err)
		}
	}
	return nil
}

// Filters narrows List results. Zero values are unfiltered for that field.
type Filters struct {
	Since      time.Time
	Status     int
	PathPrefix string
	HasError   bool
}

// List returns up to limit matching traces, most recent first.
func (s *Store) List(ctx context.Context, filters Filters, limit int) ([]domain.Trace, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, ts, method, path, status, latency_ms, ip, user_agent, headers_scrubbed, query_params, body_sha256, session_id, error FROM traces WHERE 1=1`
	args := []any{}

	if !filters.Since.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, filters.Since)
	}
	if filters.Status != 0 {
		query += ` AND status = ?`
		args = append(args, filters.Status)
	}
	if filters.PathPrefix != "" {
		query += ` AND path LIKE ?`
		args = append(args, filters.PathPrefix+"%")
	}
	if filters.HasError {
		query += ` AND error != ''`
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []domain.Trace
	for rows.Next() {
		trace, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

// Get returns a single trace by id, or domain.ErrTraceNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domain.Trace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ts, method, path, status, latency_ms, ip, user_agent, headers_scrubbed, query_params, body_sha256, session_id, error FROM traces WHERE id = ?`, id)

	trace, err := scanTrace(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTraceNotFound
		}
		return nil, err
	}
	return &trace, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (domain.Trace, error) {
	var t domain.Trace
	var headersJSON, paramsJSON string
	if err := row.Scan(&t.ID, &t.TS, &t.Method, &t.Path, &t.Status, &t.LatencyMS, &t.IP, &t.UserAgent,
		&headersJSON, &paramsJSON, &t.BodySHA256, &t.SessionID, &t.Error); err != nil {
		return domain.Trace{}, err
	}
	if err := json.Unmarshal([]byte(headersJSON), &t.HeadersScrubbed); err != nil {
		return domain.Trace{}, fmt.Errorf("unmarshal headers: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &t.QueryParams); err != nil {
		return domain.Trace{}, fmt.Errorf("unmarshal query params: %w", err)
	}
	return t, nil
}
