package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourist-overwatch/pkg/shared"
)

// Journal is the audit trail of a session's engine events.
type Journal struct {
	db *Service
}

func NewJournal(db *Service) *Journal {
	return &Journal{db: db}
}

// Publish records an event. Replayed events with a known id are ignored.
func (j *Journal) Publish(ctx context.Context, event shared.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT OR IGNORE INTO audit_log (event_id, session_id, event_type, subject, source, data, seq, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := j.db.DB.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Type, event.Subject, event.Source, string(data), int64(event.Sequence), event.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to record event %s: %w", event.ID, err)
	}
	return nil
}

// List returns a session's events in engine order. Events published
// concurrently may arrive out of order, so rows sort by sequence and fall
// back to insertion order. A non-positive limit returns everything.
func (j *Journal) List(ctx context.Context, sessionID string, limit int) ([]shared.Event, error) {
	query := `
		SELECT event_id, session_id, event_type, subject, source, data, seq, occurred_at
		FROM audit_log
		WHERE session_id = ?
		ORDER BY seq ASC, rowid ASC
	`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	events := []shared.Event{}
	for rows.Next() {
		var (
			ev   shared.Event
			data string
			seq  int64
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Type, &ev.Subject, &ev.Source, &data, &seq, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		ev.Sequence = uint64(seq)
		if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", ev.ID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count is the number of recorded events of the given type for a session.
func (j *Journal) Count(ctx context.Context, sessionID, eventType string) (int, error) {
	var n int
	err := j.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE session_id = ? AND event_type = ?`,
		sessionID, eventType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
