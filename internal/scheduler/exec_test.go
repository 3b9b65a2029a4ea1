package scheduler

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/user/vkv/internal/jobstore"
)

func TestControlLoopCancelsRunningJob(t *testing.T) {
	s, _ := testSetup(t)

	res, err := s.Enqueue(jobstore.EnqueueRequest{Kind: "download", Queue: "download"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok, err := s.ClaimOne(jobstore.Candidate{ID: res.JobID, Queue: "download"}, "worker-1"); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	cmd := exec.CommandContext(context.Background(), "sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}

	stop := make(chan struct{})
	outcome := &controlOutcome{}
	ctrlDone := make(chan struct{})
	go func() {
		runControlLoop(s, res.JobID, "worker-1", cmd, stop, outcome)
		close(ctrlDone)
	}()

	if result, err := s.Cancel(res.JobID); err != nil || result != jobstore.LifecycleCancelRequested {
		t.Fatalf("cancel: result=%v err=%v", result, err)
	}

	waitErr := cmd.Wait()
	close(stop)
	<-ctrlDone

	if waitErr == nil {
		t.Fatalf("expected sleep to be killed by SIGTERM, got nil wait error")
	}
	if !outcome.cancelled() {
		t.Fatalf("expected control loop to record cancellation")
	}
	if outcome.lostOwnership() {
		t.Fatalf("did not expect lost ownership to also be recorded")
	}

	if err := s.CancelRunningJob(res.JobID, "worker-1"); err != nil {
		t.Fatalf("cancel running job: %v", err)
	}

	job, err := s.GetJob(res.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != jobstore.StatusCancelled || job.FinishedAt == nil {
		t.Fatalf("unexpected job state after cancellation: %+v", job)
	}
}

func TestControlLoopSkipsTerminationWhilePaused(t *testing.T) {
	s, _ := testSetup(t)

	res, err := s.Enqueue(jobstore.EnqueueRequest{Kind: "download", Queue: "download"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok, err := s.ClaimOne(jobstore.Candidate{ID: res.JobID, Queue: "download"}, "worker-1"); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if result, err := s.Pause(res.JobID); err != nil || result != jobstore.LifecyclePaused {
		t.Fatalf("pause: result=%v err=%v", result, err)
	}

	cmd := exec.CommandContext(context.Background(), "sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}

	stop := make(chan struct{})
	outcome := &controlOutcome{}
	ctrlDone := make(chan struct{})
	go func() {
		runControlLoop(s, res.JobID, "worker-1", cmd, stop, outcome)
		close(ctrlDone)
	}()

	time.Sleep(3 * jobstore.ControlPoll)
	close(stop)
	<-ctrlDone

	if outcome.cancelled() || outcome.lostOwnership() {
		t.Fatalf("paused job must not be treated as cancelled or lost while under control: %+v", outcome)
	}
	if err := cmd.Process.Kill(); err != nil {
		t.Logf("cleanup kill: %v", err)
	}
	_ = cmd.Wait()
}

func TestDecodePayloadValidAndEmpty(t *testing.T) {
	m := decodePayload([]byte(`{"dataset_id":"ds-1","repo_id":"org/model"}`))
	if m["dataset_id"] != "ds-1" || m["repo_id"] != "org/model" {
		t.Fatalf("unexpected decoded payload: %+v", m)
	}

	if decodePayload(nil) != nil {
		t.Fatalf("expected nil payload for empty input")
	}
	if decodePayload([]byte("not json")) != nil {
		t.Fatalf("expected nil payload for malformed input")
	}
}
