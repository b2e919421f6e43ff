package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(ctx context.Context, db Execer, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var record string
	if entry.Record != nil {
		data, err := json.Marshal(entry.Record)
		if err != nil {
			return fmt.Errorf("log decision: marshal record: %w", err)
		}
		record = string(data)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO provenance_log (selection_id, session_id, tier, label, decision, reason, record_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SelectionID,
		entry.SessionID,
		entry.Tier,
		entry.Label,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(record),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
