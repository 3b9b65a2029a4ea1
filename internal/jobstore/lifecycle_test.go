package jobstore

import "testing"

func TestCancelPendingJobIsImmediate(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download", DatasetID: "ds-1"})

	result, err := s.Cancel(res.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result != LifecycleCancelled {
		t.Fatalf("result = %v, want cancelled", result)
	}

	job, err := s.GetJob(res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != StatusCancelled {
		t.Fatalf("status = %v, want cancelled", job.Status)
	}

	var count int
	if err := s.db.Read.QueryRow(`SELECT COUNT(*) FROM dataset_locks WHERE dataset_id = ?`, "ds-1").
		Scan(&count); err != nil {
		t.Fatalf("count locks: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected dataset lock to be released, count=%d", count)
	}
}

func TestCancelRunningJobRequestsCancellation(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})
	if _, ok, err := s.ClaimOne(Candidate{ID: res.JobID, Queue: "download"}, "worker-1"); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	result, err := s.Cancel(res.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result != LifecycleCancelRequested {
		t.Fatalf("result = %v, want cancel_requested", result)
	}

	job, err := s.GetJob(res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != StatusRunning || !job.CancelRequested {
		t.Fatalf("unexpected job state: %+v", job)
	}
}

func TestCancelTerminalJobIsNoop(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})
	if _, err := s.db.Write.Exec(`UPDATE jobs SET status = ? WHERE id = ?`, StatusDone, res.JobID); err != nil {
		t.Fatalf("set done: %v", err)
	}

	result, err := s.Cancel(res.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result != LifecycleNoop {
		t.Fatalf("result = %v, want noop", result)
	}
}

func TestRetryResetsFailedJob(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})
	if _, err := s.db.Write.Exec(`UPDATE jobs SET status = ?, attempts = ?, error = 'boom' WHERE id = ?`,
		StatusFailed, MaxAttempts, res.JobID); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	result, err := s.Retry(res.JobID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result != LifecyclePending {
		t.Fatalf("result = %v, want pending", result)
	}

	job, err := s.GetJob(res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != StatusPending || job.Attempts != 0 || job.Error != nil {
		t.Fatalf("unexpected job after retry: %+v", job)
	}
}

func TestRetryPendingJobIsNoop(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})

	result, err := s.Retry(res.JobID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result != LifecycleNoop {
		t.Fatalf("result = %v, want noop", result)
	}
}

func TestPauseAndResumeRunningJob(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})
	if _, ok, err := s.ClaimOne(Candidate{ID: res.JobID, Queue: "download"}, "worker-1"); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	result, err := s.Pause(res.JobID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if result != LifecyclePaused {
		t.Fatalf("result = %v, want paused", result)
	}

	job, err := s.GetJob(res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != StatusRunning || !job.Paused {
		t.Fatalf("unexpected job state after pause: %+v", job)
	}

	result, err = s.Resume(res.JobID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result != LifecycleRunning {
		t.Fatalf("result = %v, want running", result)
	}

	job, err = s.GetJob(res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != StatusRunning || job.Paused {
		t.Fatalf("unexpected job state after resume: %+v", job)
	}
}

func TestPausePendingJobIsNoop(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})

	result, err := s.Pause(res.JobID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if result != LifecycleNoop {
		t.Fatalf("result = %v, want noop", result)
	}
}

func TestResumePendingJobIsNoop(t *testing.T) {
	s := newTestStore(t)
	res := mustEnqueue(t, s, EnqueueRequest{Kind: "download", Queue: "download"})

	result, err := s.Resume(res.JobID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result != LifecycleNoop {
		t.Fatalf("result = %v, want noop", result)
	}
}
