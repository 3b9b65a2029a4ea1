package jobstore

// RecoverOnStartup sweeps leftover state from an unclean shutdown. Jobs left
// running with a stale or absent lease are not touched here: the claim
// query's own stale-lease branch already treats them as re-claimable, so
// they resume on the next claim tick and spend their remaining attempts
// budget like any other candidate. This sweep only targets legacy rows left
// non-terminal by a prior supervisor that never assigned a lease at all
// (lease_owner IS NULL with no lease_until ever set), which the claim query
// cannot distinguish from a live in-flight job and so would never reclaim
// on its own; those are failed outright and any dataset lock they held is
// dropped.
func (s *Store) RecoverOnStartup() (int64, error) {
	now := nowUTC()

	tx, err := s.db.Write.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, dataset_id FROM jobs
		WHERE status = ? AND lease_owner IS NULL AND lease_until IS NULL`, StatusRunning)
	if err != nil {
		return 0, err
	}
	type orphan struct {
		id        string
		datasetID *string
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		var ds *string
		if err := rows.Scan(&o.id, &ds); err != nil {
			rows.Close()
			return 0, err
		}
		o.datasetID = ds
		orphans = append(orphans, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, o := range orphans {
		if _, err := tx.Exec(`
			UPDATE jobs
			SET status = ?, error = 'Recovered after restart: no lease ever assigned', lease_owner = NULL, lease_until = NULL,
				finished_at = ?, updated_at = ?
			WHERE id = ?`, StatusFailed, now, now, o.id,
		); err != nil {
			return 0, err
		}
		if o.datasetID != nil {
			if err := releaseDatasetLockTx(tx, *o.datasetID, o.id); err != nil {
				return 0, err
			}
		}
		event, err := eventJSON("recovered", nil)
		if err != nil {
			return 0, err
		}
		if err := appendJobEventTx(tx, o.id, event); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int64(len(orphans)), nil
}
