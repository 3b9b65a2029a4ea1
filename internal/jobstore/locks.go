package jobstore

import (
	"database/sql"
	"time"
)

// acquireDatasetLockTx upserts a lease on datasetID for jobID, succeeding
// only if no other job currently holds a live lease on it. SQLite has no
// native UPSERT-returning-a-row-or-nothing the way Postgres's
// "ON CONFLICT ... WHERE ... DO UPDATE" does when the WHERE clause excludes
// every existing row, so the acquisition is split into an explicit
// check-then-write inside the caller's already-serialized transaction.
func acquireDatasetLockTx(tx *sql.Tx, datasetID, jobID string, leaseUntil time.Time) (bool, error) {
	now := nowUTC()

	var existingJobID string
	var existingLeaseUntil time.Time
	err := tx.QueryRow(`SELECT job_id, lease_until FROM dataset_locks WHERE dataset_id = ?`, datasetID).
		Scan(&existingJobID, &existingLeaseUntil)

	switch {
	case err == sql.ErrNoRows:
		_, err := tx.Exec(`INSERT INTO dataset_locks (dataset_id, job_id, lease_until) VALUES (?, ?, ?)`,
			datasetID, jobID, leaseUntil)
		return err == nil, err
	case err != nil:
		return false, err
	case existingJobID == jobID:
		_, err := tx.Exec(`UPDATE dataset_locks SET lease_until = ? WHERE dataset_id = ?`, leaseUntil, datasetID)
		return err == nil, err
	case existingLeaseUntil.Before(now):
		_, err := tx.Exec(`UPDATE dataset_locks SET job_id = ?, lease_until = ? WHERE dataset_id = ?`,
			jobID, leaseUntil, datasetID)
		return err == nil, err
	default:
		// Lock is held live by another job.
		return false, nil
	}
}

// renewDatasetLockTx extends jobID's held lease on datasetID, guarded by
// ownership so a lease that has already been stolen by another claimer is
// never silently extended back.
func renewDatasetLockTx(tx *sql.Tx, datasetID, jobID string, leaseUntil time.Time) error {
	_, err := tx.Exec(`UPDATE dataset_locks SET lease_until = ? WHERE dataset_id = ? AND job_id = ?`,
		leaseUntil, datasetID, jobID)
	return err
}

// releaseDatasetLockTx drops jobID's dataset lock, if any, guarded by
// ownership.
func releaseDatasetLockTx(tx *sql.Tx, datasetID, jobID string) error {
	_, err := tx.Exec(`DELETE FROM dataset_locks WHERE dataset_id = ? AND job_id = ?`, datasetID, jobID)
	return err
}

// ReleaseDatasetLock drops jobID's dataset lock in its own transaction, for
// callers that hold no store transaction of their own (the scheduler's
// executor). Cancel releases locks through releaseDatasetLockTx instead.
func (s *Store) ReleaseDatasetLock(datasetID, jobID string) error {
	_, err := s.db.Write.Exec(`DELETE FROM dataset_locks WHERE dataset_id = ? AND job_id = ?`, datasetID, jobID)
	return err
}
