package jobstore

import (
	"database/sql"
	"encoding/json"
)

// appendJobEventTx appends event to job_events and mirrors it into
// webhook_outbox, in the same transaction as the caller's other writes.
func appendJobEventTx(tx *sql.Tx, jobID string, event json.RawMessage) error {
	if _, err := tx.Exec(`INSERT INTO job_events (job_id, event) VALUES (?, ?)`, jobID, string(event)); err != nil {
		return err
	}
	_, err := tx.Exec(`
		INSERT INTO webhook_outbox (id, job_id, event, status, attempts)
		VALUES (?, ?, ?, 'pending', 0)`,
		NewOutboxID(), jobID, string(event),
	)
	return err
}

// eventJSON builds a minimal {"type": ...} envelope plus any extra fields.
// Event bodies are opaque to the scheduler beyond their type field.
func eventJSON(eventType string, extra map[string]any) (json.RawMessage, error) {
	m := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		m[k] = v
	}
	m["type"] = eventType
	return json.Marshal(m)
}

// JobEvent is one row of job_events, returned for audit/debugging reads.
type JobEvent struct {
	ID    int64
	JobID string
	Event json.RawMessage
	TS    string
}

// JobEvents returns every event recorded for jobID, oldest first.
func (s *Store) JobEvents(jobID string) ([]JobEvent, error) {
	rows, err := s.db.Read.Query(`
		SELECT id, job_id, event, ts FROM job_events WHERE job_id = ? ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []JobEvent
	for rows.Next() {
		var e JobEvent
		var raw string
		if err := rows.Scan(&e.ID, &e.JobID, &raw, &e.TS); err != nil {
			return nil, err
		}
		e.Event = json.RawMessage(raw)
		events = append(events, e)
	}
	return events, rows.Err()
}
