package jobstore

import (
	"encoding/json"
	"time"
)

// EnqueueRequest contains all parameters for enqueuing a job.
type EnqueueRequest struct {
	Kind      string          `json:"kind"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	DatasetID string          `json:"dataset_id,omitempty"`
}

// EnqueueResult is the response from enqueuing a job.
type EnqueueResult struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
}

// Enqueue inserts a new pending job.
func (s *Store) Enqueue(req EnqueueRequest) (*EnqueueResult, error) {
	now := time.Now().UTC()
	jobID := NewJobID()

	var datasetID *string
	if req.DatasetID != "" {
		datasetID = &req.DatasetID
	}

	_, err := s.db.Write.Exec(`
		INSERT INTO jobs (id, kind, queue, status, payload, priority, attempts,
			cancel_requested, paused, dataset_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?, ?)`,
		jobID, req.Kind, req.Queue, StatusPending, string(req.Payload), req.Priority,
		datasetID, now, now,
	)
	if err != nil {
		return nil, NewConflictError("insert job: " + err.Error())
	}

	return &EnqueueResult{JobID: jobID, Status: StatusPending}, nil
}
