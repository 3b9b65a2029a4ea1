package jobstore

import "database/sql"

// Cancel requests cancellation of a job. A pending job is cancelled
// immediately and releases any dataset lock it might hold reserved; a
// running job is flagged cancel_requested for its executor's control loop
// to observe and act on; a job already terminal is a noop.
func (s *Store) Cancel(jobID string) (LifecycleResult, error) {
	now := nowUTC()

	tx, err := s.db.Write.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT status, dataset_id FROM jobs WHERE id = ?`, jobID)
	var status Status
	var datasetID sql.NullString
	if err := row.Scan(&status, &datasetID); err != nil {
		if err == sql.ErrNoRows {
			return "", NewNotFoundError("job not found: " + jobID)
		}
		return "", err
	}

	switch status {
	case StatusPending:
		if _, err := tx.Exec(`
			UPDATE jobs SET status = ?, cancel_requested = 1, finished_at = ?, updated_at = ? WHERE id = ?`,
			StatusCancelled, now, now, jobID,
		); err != nil {
			return "", err
		}
		if datasetID.Valid {
			if err := releaseDatasetLockTx(tx, datasetID.String, jobID); err != nil {
				return "", err
			}
		}
		event, err := eventJSON("cancelled", nil)
		if err != nil {
			return "", err
		}
		if err := appendJobEventTx(tx, jobID, event); err != nil {
			return "", err
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return LifecycleCancelled, nil

	case StatusRunning:
		res, err := tx.Exec(`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND cancel_requested = 0`,
			now, jobID)
		if err != nil {
			return "", err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			if err := tx.Commit(); err != nil {
				return "", err
			}
			return LifecycleCancelRequested, nil
		}
		event, err := eventJSON("cancel_requested", nil)
		if err != nil {
			return "", err
		}
		if err := appendJobEventTx(tx, jobID, event); err != nil {
			return "", err
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return LifecycleCancelRequested, nil

	default:
		return LifecycleNoop, nil
	}
}

// Retry resets a failed or cancelled job back to pending with attempts
// cleared. Jobs that are pending, running, or done return noop.
func (s *Store) Retry(jobID string) (LifecycleResult, error) {
	now := nowUTC()

	tx, err := s.db.Write.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var status Status
	if err := tx.QueryRow(`SELECT status FROM jobs WHERE id = ?`, jobID).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return "", NewNotFoundError("job not found: " + jobID)
		}
		return "", err
	}

	if status != StatusFailed && status != StatusCancelled {
		return LifecycleNoop, nil
	}

	if _, err := tx.Exec(`
		UPDATE jobs
		SET status = ?, attempts = 0, error = NULL, cancel_requested = 0, paused = 0,
			lease_owner = NULL, lease_until = NULL, finished_at = NULL, updated_at = ?
		WHERE id = ?`, StatusPending, now, jobID,
	); err != nil {
		return "", err
	}

	event, err := eventJSON("retried", nil)
	if err != nil {
		return "", err
	}
	if err := appendJobEventTx(tx, jobID, event); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return LifecyclePending, nil
}

// Pause flags a running job so its executor's control loop keeps renewing
// the lease but no longer terminates the child on lost ownership; a cancel
// request is still acted on. Pause does not stop the executor from
// observing the child's exit: a child that exits while paused still
// completes or fails the job. Jobs in any other state return noop: pause
// only applies to a job already running.
func (s *Store) Pause(jobID string) (LifecycleResult, error) {
	now := nowUTC()
	res, err := s.db.Write.Exec(`UPDATE jobs SET paused = 1, updated_at = ? WHERE id = ? AND status = ? AND paused = 0`,
		now, jobID, StatusRunning)
	if err != nil {
		return "", err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		job, err := s.GetJob(jobID)
		if err != nil {
			return "", err
		}
		if job.Status == StatusRunning && job.Paused {
			return LifecyclePaused, nil
		}
		return LifecycleNoop, nil
	}
	return LifecyclePaused, nil
}

// Resume clears a running job's pause flag so its control loop resumes
// watching it for cancellation and exit.
func (s *Store) Resume(jobID string) (LifecycleResult, error) {
	now := nowUTC()
	res, err := s.db.Write.Exec(`UPDATE jobs SET paused = 0, updated_at = ? WHERE id = ? AND status = ? AND paused = 1`,
		now, jobID, StatusRunning)
	if err != nil {
		return "", err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if affected == 0 {
		return LifecycleNoop, nil
	}
	return LifecycleRunning, nil
}
