package jobstore

import (
	"database/sql"
	"time"
)

// Heartbeat renews a running job's lease and, if it holds one, its dataset
// lock, in a single transaction. It returns false, with no error, if the
// job is no longer running under workerID: the caller must treat this as
// "lease lost" and abandon the job.
func (s *Store) Heartbeat(jobID, workerID string) (bool, error) {
	now := nowUTC()
	leaseUntil := now.Add(LeaseSecs * time.Second)

	tx, err := s.db.Write.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var ds sql.NullString
	row := tx.QueryRow(`SELECT dataset_id FROM jobs WHERE id = ? AND status = ? AND lease_owner = ?`,
		jobID, StatusRunning, workerID)
	if err := row.Scan(&ds); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	var datasetID *string
	if ds.Valid {
		datasetID = &ds.String
	}

	res, err := tx.Exec(`
		UPDATE jobs SET lease_until = ?, updated_at = ? WHERE id = ? AND status = ? AND lease_owner = ?`,
		leaseUntil, now, jobID, StatusRunning, workerID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if datasetID != nil {
		if err := renewDatasetLockTx(tx, *datasetID, jobID, leaseUntil); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
