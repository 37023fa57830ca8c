package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/message"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// Record is one stored event.
type Record struct {
	ID           int64           `json:"id"`
	ConnectionID string          `json:"connection_id"`
	RoomID       string          `json:"room_id,omitempty"`
	Type         string          `json:"type"`
	Schema       string          `json:"schema"`
	Body         json.RawMessage `json:"body"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Session is one connected period of a connection.
type Session struct {
	ConnectionID string          `json:"connection_id"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	EndReason    string          `json:"end_reason,omitempty"`
	State        json.RawMessage `json:"state,omitempty"`
}

// Recorder persists decoded events and session boundaries.
type Recorder struct {
	db     *Database
	logger zerolog.Logger
}

// NewRecorder migrates the schema and returns a recorder over d.
func NewRecorder(d *Database) (*Recorder, error) {
	r := &Recorder{
		db:     d,
		logger: log.With().Str("component", "recorder").Logger(),
	}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate events database: %w", err)
	}
	return r, nil
}

// migrate creates the database schema.
func (r *Recorder) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			connection_id TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			end_reason TEXT DEFAULT '',
			state TEXT DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			connection_id TEXT NOT NULL,
			room_id TEXT DEFAULT '',
			type TEXT NOT NULL,
			schema TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_connection ON sessions(connection_id);
		CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, id);
		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
	`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	r.logger.Debug().Msg("database schema migrated")
	return nil
}

// Attach subscribes the recorder to decoded data and connection lifecycle.
func (r *Recorder) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventDecodedData, "recorder", r.onDecoded)
	bus.Subscribe(events.EventConnected, "recorder", r.onConnected)
	bus.Subscribe(events.EventDisconnected, "recorder", r.onDisconnected)
}

func (r *Recorder) onDecoded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DecodedDataPayload)
	if !ok {
		return nil
	}
	return r.Record(event.Source, payload, event.Time)
}

func (r *Recorder) onConnected(ctx context.Context, event events.Event) error {
	state, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	return r.OpenSession(event.Source, event.Time, state)
}

func (r *Recorder) onDisconnected(ctx context.Context, event events.Event) error {
	reason := ""
	if p, ok := event.Payload.(events.DisconnectedPayload); ok {
		reason = p.Reason
	}
	return r.CloseSession(event.Source, event.Time, reason)
}

// Record stores one decoded event. The stored type is the event kind when
// the payload was normalized, otherwise the schema name.
func (r *Recorder) Record(connectionID string, p events.DecodedDataPayload, at time.Time) error {
	body, err := json.Marshal(p.Event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", p.Type, err)
	}
	kind := p.Type
	if ev, ok := p.Event.(message.Event); ok {
		kind = string(ev.Kind())
	}
	if at.IsZero() {
		at = time.Now()
	}

	_, err = r.db.Exec(
		"INSERT INTO events (connection_id, room_id, type, schema, body, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		connectionID, p.RoomID, kind, p.Type, string(body), at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Recent returns the newest records first. An empty kind matches every type.
func (r *Recorder) Recent(kind string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	query := "SELECT id, connection_id, room_id, type, schema, body, created_at FROM events"
	args := []interface{}{}
	if kind != "" {
		query += " WHERE type = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var body string
		var created int64
		if err := rows.Scan(&rec.ID, &rec.ConnectionID, &rec.RoomID, &rec.Type, &rec.Schema, &body, &created); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Body = json.RawMessage(body)
		rec.CreatedAt = time.UnixMilli(created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByType returns the number of stored records per type.
func (r *Recorder) CountByType() (map[string]int64, error) {
	rows, err := r.db.Query("SELECT type, COUNT(*) FROM events GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// Prune deletes records created before cutoff and returns how many went.
func (r *Recorder) Prune(cutoff time.Time) (int64, error) {
	var removed int64
	err := r.db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM events WHERE created_at < ?", cutoff.UnixMilli())
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		_, err = tx.Exec("DELETE FROM sessions WHERE ended_at IS NOT NULL AND ended_at < ?", cutoff.UnixMilli())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	if removed > 0 {
		r.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("pruned recorded events")
	}
	return removed, nil
}

// OpenSession records the start of a connected period.
func (r *Recorder) OpenSession(connectionID string, at time.Time, state []byte) error {
	_, err := r.db.Exec(
		"INSERT INTO sessions (connection_id, started_at, state) VALUES (?, ?, ?)",
		connectionID, at.UnixMilli(), string(state))
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return nil
}

// CloseSession marks the open session of connectionID as ended.
func (r *Recorder) CloseSession(connectionID string, at time.Time, reason string) error {
	_, err := r.db.Exec(
		"UPDATE sessions SET ended_at = ?, end_reason = ? WHERE connection_id = ? AND ended_at IS NULL",
		at.UnixMilli(), reason, connectionID)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// Sessions returns the newest sessions first.
func (r *Recorder) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := r.db.Query(
		"SELECT connection_id, started_at, ended_at, end_reason, state FROM sessions ORDER BY rowid DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started int64
		var ended sql.NullInt64
		var state string
		if err := rows.Scan(&s.ConnectionID, &started, &ended, &s.EndReason, &state); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started)
		if ended.Valid {
			t := time.UnixMilli(ended.Int64)
			s.EndedAt = &t
		}
		if state != "" {
			s.State = json.RawMessage(state)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
