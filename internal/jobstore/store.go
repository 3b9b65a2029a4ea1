package jobstore

import (
	"database/sql"
	"time"
)

// Store is the job store's public API: claim protocol, lifecycle verbs,
// event/outbox writes, and worker registry, all backed by one SQLite file.
type Store struct {
	db *DB
}

// NewStore wraps an already-opened DB.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetJob fetches a job by id.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.Read.QueryRow(`
		SELECT id, kind, queue, status, payload, priority, attempts,
			lease_owner, lease_until, cancel_requested, paused, error,
			dataset_id, created_at, updated_at, finished_at
		FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, NewNotFoundError("job not found: " + id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var leaseOwner, datasetID, errMsg sql.NullString
	var leaseUntil, finishedAt sql.NullTime
	var cancelRequested, paused int

	err := row.Scan(
		&j.ID, &j.Kind, &j.Queue, &j.Status, &j.Payload, &j.Priority, &j.Attempts,
		&leaseOwner, &leaseUntil, &cancelRequested, &paused, &errMsg,
		&datasetID, &j.CreatedAt, &j.UpdatedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if leaseOwner.Valid {
		j.LeaseOwner = &leaseOwner.String
	}
	if leaseUntil.Valid {
		t := leaseUntil.Time
		j.LeaseUntil = &t
	}
	if errMsg.Valid {
		j.Error = &errMsg.String
	}
	if datasetID.Valid {
		j.DatasetID = &datasetID.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		j.FinishedAt = &t
	}
	j.CancelRequested = cancelRequested != 0
	j.Paused = paused != 0

	return &j, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
