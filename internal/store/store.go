// Package store persists approval requests and the audit trail in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sentinelgate/sentinel/internal/decision"
)

var (
	// ErrNotFound is returned when a request id does not exist.
	ErrNotFound = errors.New("approval request not found")
	// ErrAlreadyResolved is returned when resolving a non-pending request.
	ErrAlreadyResolved = errors.New("approval request already resolved")
)

// Request states. Rows only move pending -> approved|rejected and are never
// deleted; the table doubles as a review history.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request is a command waiting for (or resolved by) human review.
type Request struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Status     string     `json:"status"`
	RuleName   string     `json:"rule_name"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Stats summarizes the audit trail.
type Stats struct {
	Total          int `json:"total"`
	Allowed        int `json:"allowed"`
	Blocked        int `json:"blocked"`
	CriticalBlocks int `json:"critical_blocks"`
}

// Store wraps the SQLite database. Safe for concurrent use; database/sql
// serializes access to the single connection modernc sqlite provides.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS approvals (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	rule_name   TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS audit_logs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp  TIMESTAMP NOT NULL,
	command    TEXT NOT NULL,
	allowed    INTEGER NOT NULL,
	risk_score INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
`

// Open creates (if needed) and migrates the database at path. The parent
// directory is created with owner-only permissions since commands may contain
// sensitive material.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateRequest inserts a pending approval request and returns it. IDs are
// short so a human can type them into `sentinel approve`.
func (s *Store) CreateRequest(ctx context.Context, command, ruleName, reason string) (Request, error) {
	req := Request{
		ID:        uuid.NewString()[:8],
		Command:   command,
		Status:    StatusPending,
		RuleName:  ruleName,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (id, command, status, rule_name, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.Command, req.Status, req.RuleName, req.Reason, req.CreatedAt,
	)
	if err != nil {
		return Request{}, fmt.Errorf("insert approval request: %w", err)
	}
	return req, nil
}

// Request fetches a single approval request by id.
func (s *Store) Request(ctx context.Context, id string) (Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, command, status, rule_name, reason, created_at, resolved_at
		 FROM approvals WHERE id = ?`, id)
	return scanRequest(row)
}

// Pending returns all unresolved requests, oldest first.
func (s *Store) Pending(ctx context.Context) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, status, rule_name, reason, created_at, resolved_at
		 FROM approvals WHERE status = ? ORDER BY created_at ASC`, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("query pending approvals: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Resolve transitions a pending request to approved or rejected. Resolving an
// unknown id returns ErrNotFound; resolving twice returns ErrAlreadyResolved.
func (s *Store) Resolve(ctx context.Context, id, status string) (Request, error) {
	if status != StatusApproved && status != StatusRejected {
		return Request{}, fmt.Errorf("invalid resolution status %q", status)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		status, now, id, StatusPending)
	if err != nil {
		return Request{}, fmt.Errorf("resolve approval request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Request{}, fmt.Errorf("resolve approval request: %w", err)
	}
	if n == 0 {
		// Missing row or one that already left pending; the fetch tells which.
		req, err := s.Request(ctx, id)
		if err != nil {
			return Request{}, err
		}
		return req, ErrAlreadyResolved
	}
	return s.Request(ctx, id)
}

// AppendAudit records a terminal decision in the audit trail. details carries
// the full result payload as JSON for forensic inspection.
func (s *Store) AppendAudit(ctx context.Context, command string, d decision.Decision, details any) error {
	payload := "{}"
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			payload = string(b)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (timestamp, command, allowed, risk_score, reason, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), command, boolToInt(d.Allowed), d.RiskScore, d.Reason, payload,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Stats computes aggregate counts over the audit trail. Critical blocks are
// denials at risk 8 or above.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(allowed), 0),
		       COALESCE(SUM(CASE WHEN allowed = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN allowed = 0 AND risk_score >= 8 THEN 1 ELSE 0 END), 0)
		FROM audit_logs`)

	var st Stats
	if err := row.Scan(&st.Total, &st.Allowed, &st.Blocked, &st.CriticalBlocks); err != nil {
		return Stats{}, fmt.Errorf("query audit stats: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	var resolved sql.NullTime
	err := row.Scan(&req.ID, &req.Command, &req.Status, &req.RuleName, &req.Reason, &req.CreatedAt, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("scan approval request: %w", err)
	}
	if resolved.Valid {
		t := resolved.Time
		req.ResolvedAt = &t
	}
	return req, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
