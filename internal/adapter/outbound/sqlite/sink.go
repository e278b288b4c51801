// Package sqlite mirrors audit records into a modernc.org/sqlite database
// so they can be queried with SQL, alongside (never instead of) the
// append-only file/stdout sink that remains the system of record.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mcpower/mcpower-gate/internal/domain/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp       TEXT NOT NULL,
	kind            TEXT NOT NULL,
	event_id        TEXT NOT NULL,
	prompt_id       TEXT,
	app_uid         TEXT,
	server_name     TEXT,
	session_id      TEXT,
	identity_id     TEXT,
	identity_name   TEXT,
	tool_name       TEXT,
	tool_arguments  TEXT,
	decision        TEXT,
	reason          TEXT,
	rule_id         TEXT,
	request_id      TEXT,
	latency_micros  INTEGER,
	scan_detections INTEGER,
	scan_action     TEXT,
	scan_types      TEXT,
	protocol        TEXT,
	framework       TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_records_event_id ON audit_records(event_id);
CREATE INDEX IF NOT EXISTS idx_audit_records_session_id ON audit_records(session_id);
CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp);
`

const insertStmt = `
INSERT INTO audit_records (
	timestamp, kind, event_id, prompt_id, app_uid, server_name, session_id,
	identity_id, identity_name, tool_name, tool_arguments, decision, reason,
	rule_id, request_id, latency_micros, scan_detections, scan_action,
	scan_types, protocol, framework
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Mirror implements audit.AuditStore against a modernc.org/sqlite database
// file. It is a secondary sink: the primary file/stdout store is what the
// wrapper treats as authoritative, and a failure here is logged by the
// caller but never blocks the proxy loop.
type Mirror struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates (or reuses) the sqlite database at path and ensures its
// schema exists.
func Open(path string) (*Mirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite mirror: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers per connection

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite mirror schema: %w", err)
	}
	return &Mirror{db: db}, nil
}

// Append inserts records into the mirror in a single transaction.
func (m *Mirror) Append(ctx context.Context, records ...audit.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite mirror begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertStmt)
	if err != nil {
		return fmt.Errorf("sqlite mirror prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		args, err := json.Marshal(rec.ToolArguments)
		if err != nil {
			args = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			rec.Kind,
			rec.EventID,
			rec.PromptID,
			rec.AppUID,
			rec.ServerName,
			rec.SessionID,
			rec.IdentityID,
			rec.IdentityName,
			rec.ToolName,
			string(args),
			rec.Decision,
			rec.Reason,
			rec.RuleID,
			rec.RequestID,
			rec.LatencyMicros,
			rec.ScanDetections,
			rec.ScanAction,
			rec.ScanTypes,
			rec.Protocol,
			rec.Framework,
		); err != nil {
			return fmt.Errorf("sqlite mirror insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite mirror commit: %w", err)
	}
	return nil
}

// Flush is a no-op: Append already commits each batch.
func (m *Mirror) Flush(_ context.Context) error { return nil }

// Close closes the underlying database handle.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Close()
}

var _ audit.AuditStore = (*Mirror)(nil)
