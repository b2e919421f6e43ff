package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ixtech/aniota/lic-controller/internal/logging"
	"github.com/ixtech/aniota/lic-controller/internal/orchestrator"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// ErrNotFound is returned when a session or summary row does not exist.
var ErrNotFound = errors.New("not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	profile_json  TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	ended_at      TEXT
);

CREATE TABLE IF NOT EXISTS selections (
	selection_id  TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	event_json    TEXT NOT NULL,
	vector_json   TEXT NOT NULL,
	label         TEXT NOT NULL,
	tier          INTEGER NOT NULL,
	triggers_json TEXT NOT NULL,
	message       TEXT NOT NULL,
	follow_up     INTEGER NOT NULL DEFAULT 0,
	degraded      INTEGER NOT NULL DEFAULT 0,
	similarity    REAL NOT NULL,
	recognized    INTEGER NOT NULL DEFAULT 0,
	engagement    REAL NOT NULL,
	frustration   REAL NOT NULL,
	completed     INTEGER NOT NULL DEFAULT 0,
	success       INTEGER NOT NULL DEFAULT 0,
	outcome       REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL,
	UNIQUE (session_id, seq),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE INDEX IF NOT EXISTS idx_selections_session ON selections(session_id, seq);

CREATE TABLE IF NOT EXISTS summaries (
	session_id    TEXT PRIMARY KEY,
	summary_json  TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	selection_id  TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	tier          TEXT NOT NULL,
	label         TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	record_json   TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists sessions, selections, and summaries in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for read-only tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region start-session
// StartSession inserts the session row.
func (s *Store) StartSession(ctx context.Context, rec SessionRecord) error {
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, profile_json, started_at) VALUES (?, ?, ?)`,
		rec.ID, string(profile), rec.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// #endregion start-session

// #region record-selection
// RecordSelection stores a selection, closes the selection it completes,
// and writes the provenance row, all in one transaction.
func (s *Store) RecordSelection(ctx context.Context, rec SelectionRecord) error {
	eventJSON, err := json.Marshal(rec.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	vectorJSON, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	triggers := rec.Triggers
	if triggers == nil {
		triggers = []string{}
	}
	triggersJSON, err := json.Marshal(triggers)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if c := rec.Completes; c != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE selections SET completed = 1, success = ?, outcome = ? WHERE selection_id = ?`,
			boolInt(c.Success), c.Engagement, c.SelectionID,
		)
		if err != nil {
			return fmt.Errorf("complete selection: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO selections
		(selection_id, session_id, seq, event_json, vector_json, label, tier, triggers_json,
		 message, follow_up, degraded, similarity, recognized, engagement, frustration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Seq, string(eventJSON), string(vectorJSON),
		string(rec.Label), int(rec.Tier), string(triggersJSON), rec.Message,
		boolInt(rec.FollowUp), boolInt(rec.Degraded), rec.Similarity, boolInt(rec.Recognized),
		rec.Engagement, rec.Frustration, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert selection: %w", err)
	}

	if err := logging.LogDecision(ctx, tx, provenanceFor(rec)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func provenanceFor(rec SelectionRecord) logging.ProvenanceEntry {
	decision := "approved"
	switch {
	case rec.Tier == orchestrator.TierEscapeForced:
		decision = "forced"
	case rec.Degraded:
		decision = "degraded"
	}
	vetoed := make([]string, len(rec.VetoedTiers))
	for i, t := range rec.VetoedTiers {
		vetoed[i] = t.String()
	}
	reason := ""
	if len(rec.Vetoes) > 0 {
		reason = rec.Vetoes[0]
	}
	return logging.ProvenanceEntry{
		SelectionID: rec.ID,
		SessionID:   rec.SessionID,
		Tier:        rec.Tier.String(),
		Label:       string(rec.Label),
		Decision:    decision,
		Reason:      reason,
		Record: &logging.DecisionRecord{
			Seq:         rec.Seq,
			Vector:      rec.Vector.Components(),
			Coordinate:  [2]float64{rec.Vector.Relatedness, rec.Vector.Difficulty},
			Similarity:  rec.Similarity,
			Recognized:  rec.Recognized,
			Engagement:  rec.Engagement,
			Frustration: rec.Frustration,
			Triggers:    rec.Triggers,
			VetoedTiers: vetoed,
			Vetoes:      rec.Vetoes,
			FollowUp:    rec.FollowUp,
		},
		CreatedAt: rec.CreatedAt,
	}
}

// #endregion record-selection

// #region end-session
// EndSession stores the summary and marks the session ended.
func (s *Store) EndSession(ctx context.Context, sum Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ended := sum.EndedAt.UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, ended, sum.SessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end session %s: %w", sum.SessionID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO summaries (session_id, summary_json, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET summary_json = excluded.summary_json`,
		sum.SessionID, string(data), ended,
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return tx.Commit()
}

// #endregion end-session

// #region queries
// GetSession reads one session row.
func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, profile_json, started_at, ended_at FROM sessions WHERE session_id = ?`, id)
	rec, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return rec, nil
}

// ListSessions returns the most recently started sessions.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, profile_json, started_at, ended_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSelections returns a session's selections in event order.
func (s *Store) ListSelections(ctx context.Context, sessionID string) ([]SelectionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT selection_id, session_id, seq, event_json, vector_json, label, tier, triggers_json,
		        message, follow_up, degraded, similarity, recognized, engagement, frustration,
		        completed, success, outcome, created_at
		 FROM selections WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var out []SelectionRow
	for rows.Next() {
		var r SelectionRow
		var eventJSON, vectorJSON, label, triggersJSON, created string
		var tier, followUp, degraded, recognized, completed, success int
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Seq, &eventJSON, &vectorJSON, &label, &tier,
			&triggersJSON, &r.Message, &followUp, &degraded, &r.Similarity, &recognized,
			&r.Engagement, &r.Frustration, &completed, &success, &r.Outcome, &created); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		if err := json.Unmarshal([]byte(eventJSON), &r.Event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		if err := json.Unmarshal([]byte(vectorJSON), &r.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal vector: %w", err)
		}
		if err := json.Unmarshal([]byte(triggersJSON), &r.Triggers); err != nil {
			return nil, fmt.Errorf("unmarshal triggers: %w", err)
		}
		r.Label = quadvec.Label(label)
		r.Tier = orchestrator.Tier(tier)
		r.FollowUp, r.Degraded, r.Recognized = followUp == 1, degraded == 1, recognized == 1
		r.Completed, r.Success = completed == 1, success == 1
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSummary reads the stored summary of an ended session.
func (s *Store) GetSummary(ctx context.Context, id string) (Summary, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT summary_json FROM summaries WHERE session_id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, fmt.Errorf("get summary %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("get summary %s: %w", id, err)
	}
	var sum Summary
	if err := json.Unmarshal([]byte(data), &sum); err != nil {
		return Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return sum, nil
}

// #endregion queries

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (SessionRecord, error) {
	var rec SessionRecord
	var profile, started string
	var ended sql.NullString
	if err := sc.Scan(&rec.ID, &profile, &started, &ended); err != nil {
		return SessionRecord{}, err
	}
	if err := json.Unmarshal([]byte(profile), &rec.Profile); err != nil {
		return SessionRecord{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if ended.Valid {
		rec.EndedAt, _ = time.Parse(time.RFC3339Nano, ended.String)
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
