package jobstore

// ControlState is the subset of a running job's state the executor's
// control loop polls for: has cancellation been requested, is the job
// paused, and is it still the one running under this lease owner.
type ControlState struct {
	CancelRequested bool
	Paused          bool
	StillOwned      bool
}

// PeekControlState reads jobID's cancel and pause flags and ownership
// without taking a write transaction, for the executor's cheap polling loop.
func (s *Store) PeekControlState(jobID, workerID string) (ControlState, error) {
	var status Status
	var cancelRequested, paused int
	var leaseOwner *string
	err := s.db.Read.QueryRow(`SELECT status, cancel_requested, paused, lease_owner FROM jobs WHERE id = ?`, jobID).
		Scan(&status, &cancelRequested, &paused, &leaseOwner)
	if err != nil {
		return ControlState{}, err
	}
	owned := status == StatusRunning && leaseOwner != nil && *leaseOwner == workerID
	return ControlState{CancelRequested: cancelRequested != 0, Paused: paused != 0, StillOwned: owned}, nil
}
