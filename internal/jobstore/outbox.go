package jobstore

import (
	"encoding/json"
	"time"
)

// OutboxEntry mirrors a webhook_outbox row.
type OutboxEntry struct {
	ID          string
	JobID       string
	Event       json.RawMessage
	Status      string
	Attempts    int
	NextAttempt time.Time
}

// ClaimPendingOutbox locks up to limit pending (or due-for-retry) outbox
// rows for delivery by workerID, so two delivery workers never send the
// same webhook concurrently.
func (s *Store) ClaimPendingOutbox(workerID string, limit int) ([]OutboxEntry, error) {
	now := nowUTC()
	lockUntil := now.Add(30 * time.Second)

	tx, err := s.db.Write.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, job_id, event, attempts, next_attempt_at FROM webhook_outbox
		WHERE status = 'pending' AND next_attempt_at <= ?
			AND (locked_until IS NULL OR locked_until < ?)
		ORDER BY next_attempt_at ASC LIMIT ?`, now, now, limit)
	if err != nil {
		return nil, err
	}

	var candidates []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var raw string
		if err := rows.Scan(&e.ID, &e.JobID, &raw, &e.Attempts, &e.NextAttempt); err != nil {
			rows.Close()
			return nil, err
		}
		e.Event = json.RawMessage(raw)
		candidates = append(candidates, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range candidates {
		if _, err := tx.Exec(`
			UPDATE webhook_outbox SET locked_by = ?, locked_until = ? WHERE id = ?`,
			workerID, lockUntil, c.ID,
		); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// MarkDelivered marks an outbox entry as successfully delivered.
func (s *Store) MarkDelivered(id string) error {
	_, err := s.db.Write.Exec(`
		UPDATE webhook_outbox SET status = 'delivered', delivered_at = ?, locked_by = NULL, locked_until = NULL
		WHERE id = ?`, nowUTC(), id)
	return err
}

// MarkFailed records a delivery failure and schedules a retry with
// quadratic backoff (attempts squared, in seconds), capped at 10 attempts
// after which the entry is
// marked 'dead'.
func (s *Store) MarkFailed(id string, cause error) error {
	now := nowUTC()

	var attempts int
	if err := s.db.Read.QueryRow(`SELECT attempts FROM webhook_outbox WHERE id = ?`, id).Scan(&attempts); err != nil {
		return err
	}
	attempts++

	status := "pending"
	if attempts >= 10 {
		status = "dead"
	}

	backoff := time.Duration(attempts*attempts) * time.Second
	nextAttempt := now.Add(backoff)

	_, err := s.db.Write.Exec(`
		UPDATE webhook_outbox
		SET status = ?, attempts = ?, next_attempt_at = ?, locked_by = NULL, locked_until = NULL, last_error = ?
		WHERE id = ?`, status, attempts, nextAttempt, cause.Error(), id)
	return err
}
