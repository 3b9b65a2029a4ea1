package jobstore

import (
	"database/sql"
	"time"
)

// Reap fails every job that has exhausted MaxAttempts and is still
// non-terminal, clearing its lease.
func (s *Store) Reap() (int64, error) {
	now := nowUTC()
	res, err := s.db.Write.Exec(`
		UPDATE jobs
		SET status = ?, error = 'Max attempts reached', lease_owner = NULL, lease_until = NULL,
			finished_at = ?, updated_at = ?
		WHERE attempts >= ? AND status NOT IN (?, ?, ?)`,
		StatusFailed, now, now, MaxAttempts, StatusDone, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Usage is a running-job count snapshot: the total and per-queue counts of
// jobs in status running. The scheduler's claim loop does not consult it;
// every candidate goes to ClaimOne, which recounts its queue inside the
// claim transaction.
type Usage struct {
	Total    int
	PerQueue map[string]int
}

// UsageSnapshot reads the current total and per-queue running counts.
func (s *Store) UsageSnapshot() (Usage, error) {
	u := Usage{PerQueue: make(map[string]int)}

	if err := s.db.Read.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?`, StatusRunning).Scan(&u.Total); err != nil {
		return Usage{}, err
	}

	rows, err := s.db.Read.Query(`SELECT queue, COUNT(*) FROM jobs WHERE status = ? GROUP BY queue`, StatusRunning)
	if err != nil {
		return Usage{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var queue string
		var count int
		if err := rows.Scan(&queue, &count); err != nil {
			return Usage{}, err
		}
		u.PerQueue[queue] = count
	}
	return u, rows.Err()
}

// Candidate is a job eligible for claiming, as returned by FetchCandidates.
type Candidate struct {
	ID        string
	Queue     string
	DatasetID *string
}

// FetchCandidates returns up to ScanLimit jobs eligible to run: attempts
// under the cap, and either pending or running with a stale/absent lease
// (a crashed claimant). Ordered priority DESC, created_at ASC.
func (s *Store) FetchCandidates() ([]Candidate, error) {
	now := nowUTC()
	rows, err := s.db.Read.Query(`
		SELECT id, queue, dataset_id FROM jobs
		WHERE attempts < ? AND paused = 0 AND (
			status = ? OR (status = ? AND (lease_until IS NULL OR lease_until < ?))
		)
		ORDER BY priority DESC, created_at ASC
		LIMIT ?`, MaxAttempts, StatusPending, StatusRunning, now, ScanLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var datasetID sql.NullString
		if err := rows.Scan(&c.ID, &c.Queue, &datasetID); err != nil {
			return nil, err
		}
		if datasetID.Valid {
			c.DatasetID = &datasetID.String
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ClaimResult is what a successful strict claim returns.
type ClaimResult struct {
	Job        *Job
	LeaseUntil time.Time
}

// ClaimOne attempts the strict claim transaction for one candidate. It
// re-checks the candidate's eligibility and queue quota, and upserts the
// candidate's dataset lock, all inside one transaction on the single
// serialized write connection, this store's substitute for
// "SELECT ... FOR UPDATE SKIP LOCKED" plus a transactional advisory lock
// (see DESIGN.md). ok is false, with no error, if the candidate was no
// longer eligible, its queue was already at quota, or its dataset lock was
// held live elsewhere.
func (s *Store) ClaimOne(candidate Candidate, workerID string) (ClaimResult, bool, error) {
	now := nowUTC()
	leaseUntil := now.Add(LeaseSecs * time.Second)

	tx, err := s.db.Write.Begin()
	if err != nil {
		return ClaimResult{}, false, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT id, kind, queue, status, payload, priority, attempts,
			lease_owner, lease_until, cancel_requested, paused, error,
			dataset_id, created_at, updated_at, finished_at
		FROM jobs
		WHERE id = ? AND attempts < ? AND paused = 0 AND (
			status = ? OR (status = ? AND (lease_until IS NULL OR lease_until < ?))
		)`, candidate.ID, MaxAttempts, StatusPending, StatusRunning, now)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return ClaimResult{}, false, nil
	}
	if err != nil {
		return ClaimResult{}, false, err
	}

	// A stale-lease candidate is itself still status running, so it is left
	// out of its own queue's count.
	var running int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM jobs WHERE queue = ? AND status = ? AND id != ?`, job.Queue, StatusRunning, job.ID).
		Scan(&running); err != nil {
		return ClaimResult{}, false, err
	}
	if running >= QueueQuota(job.Queue) {
		return ClaimResult{}, false, nil
	}

	if job.DatasetID != nil {
		acquired, err := acquireDatasetLockTx(tx, *job.DatasetID, job.ID, leaseUntil)
		if err != nil {
			return ClaimResult{}, false, err
		}
		if !acquired {
			return ClaimResult{}, false, nil
		}
	}

	if _, err := tx.Exec(`
		UPDATE jobs SET status = ?, lease_owner = ?, lease_until = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?`, StatusRunning, workerID, leaseUntil, now, job.ID,
	); err != nil {
		return ClaimResult{}, false, err
	}

	event, err := eventJSON("start", map[string]any{"worker": workerID})
	if err != nil {
		return ClaimResult{}, false, err
	}
	if err := appendJobEventTx(tx, job.ID, event); err != nil {
		return ClaimResult{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return ClaimResult{}, false, err
	}

	job.Status = StatusRunning
	job.LeaseOwner = &workerID
	job.LeaseUntil = &leaseUntil
	job.Attempts++
	return ClaimResult{Job: job, LeaseUntil: leaseUntil}, true, nil
}
