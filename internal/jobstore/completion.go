package jobstore

import "database/sql"

// AppendEvent records an event for jobID from outside the claim/lifecycle
// transactions — used by the scheduler's process executor to stream
// progress events as a job runs.
func (s *Store) AppendEvent(jobID, eventType string, extra map[string]any) error {
	event, err := eventJSON(eventType, extra)
	if err != nil {
		return err
	}
	return s.appendEventOwnTx(jobID, event)
}

// AppendEventRaw records an already-JSON-encoded event verbatim, for
// worker output lines that already arrive as a structured event.
func (s *Store) AppendEventRaw(jobID, rawJSON string) error {
	return s.appendEventOwnTx(jobID, []byte(rawJSON))
}

func (s *Store) appendEventOwnTx(jobID string, event []byte) error {
	tx, err := s.db.Write.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := appendJobEventTx(tx, jobID, event); err != nil {
		return err
	}
	return tx.Commit()
}

// FinishJob marks jobID done, clears its lease and any dataset lock it
// holds, and records a "done" event, per
// original_source/verifiable-ai's worker_loop.rs finish_job.
func (s *Store) FinishJob(jobID string) error {
	return s.completeJob(jobID, StatusDone, nil)
}

// FailJob marks jobID failed with msg as its error, clears its lease and
// any dataset lock it holds, and records an "error" event, per
// original_source/verifiable-ai's worker_loop.rs fail_job.
func (s *Store) FailJob(jobID, msg string) error {
	return s.completeJob(jobID, StatusFailed, &msg)
}

// CancelRunningJob transitions a running job to cancelled once its
// executor's control loop has observed cancel_requested and terminated the
// child, clearing its lease and any dataset lock and recording a
// "cancelled" event. The update is guarded by lease_owner so a worker that
// has already lost the job to a later claimant cannot clobber that claim.
func (s *Store) CancelRunningJob(jobID, workerID string) error {
	now := nowUTC()

	tx, err := s.db.Write.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var datasetID sql.NullString
	if err := tx.QueryRow(`SELECT dataset_id FROM jobs WHERE id = ?`, jobID).Scan(&datasetID); err != nil {
		return err
	}

	res, err := tx.Exec(`
		UPDATE jobs
		SET status = ?, lease_owner = NULL, lease_until = NULL, finished_at = ?, updated_at = ?
		WHERE id = ? AND lease_owner = ?`, StatusCancelled, now, now, jobID, workerID,
	)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err != nil {
		return err
	} else if affected == 0 {
		return tx.Commit()
	}

	if datasetID.Valid {
		if err := releaseDatasetLockTx(tx, datasetID.String, jobID); err != nil {
			return err
		}
	}

	event, err := eventJSON("cancelled", nil)
	if err != nil {
		return err
	}
	if err := appendJobEventTx(tx, jobID, event); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) completeJob(jobID string, status Status, errMsg *string) error {
	now := nowUTC()

	tx, err := s.db.Write.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var datasetID sql.NullString
	if err := tx.QueryRow(`SELECT dataset_id FROM jobs WHERE id = ?`, jobID).Scan(&datasetID); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE jobs
		SET status = ?, error = ?, lease_owner = NULL, lease_until = NULL, finished_at = ?, updated_at = ?
		WHERE id = ?`, status, errMsg, now, now, jobID,
	); err != nil {
		return err
	}

	if datasetID.Valid {
		if err := releaseDatasetLockTx(tx, datasetID.String, jobID); err != nil {
			return err
		}
	}

	eventType := "done"
	extra := map[string]any(nil)
	if status == StatusFailed {
		eventType = "error"
		extra = map[string]any{"message": *errMsg}
	}
	event, err := eventJSON(eventType, extra)
	if err != nil {
		return err
	}
	if err := appendJobEventTx(tx, jobID, event); err != nil {
		return err
	}

	return tx.Commit()
}
