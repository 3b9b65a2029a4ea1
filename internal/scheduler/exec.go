package scheduler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/user/vkv/internal/jobstore"
)

// executeJob runs one claimed job to completion: spawns its worker
// script, streams stdout/stderr into job_events, renews its lease and
// dataset lock on a heartbeat tick, and watches for a cancellation
// request, escalating SIGTERM to SIGKILL if the process doesn't exit
// within TermGrace. Grounded on
// original_source/verifiable-ai's worker_loop.rs execute_job.
func executeJob(ctx context.Context, store *jobstore.Store, job *jobstore.Job, workerID string) {
	payload := decodePayload(job.Payload)

	if err := store.AppendEvent(job.ID, "start", map[string]any{
		"source":   "scheduler",
		"kind":     job.Kind,
		"attempts": job.Attempts,
	}); err != nil {
		slog.Warn("append start event failed", "job_id", job.ID, "error", err)
	}

	script, ok := scriptForKind(job.Kind)
	if !ok {
		if dsID, has := extractDatasetID(payload); has {
			_ = store.ReleaseDatasetLock(dsID, job.ID)
		}
		if err := store.FailJob(job.ID, fmt.Sprintf("unknown job kind: %s", job.Kind)); err != nil {
			slog.Error("fail unknown-kind job", "job_id", job.ID, "error", err)
		}
		return
	}

	args := buildArgs(job.Kind, job.ID, payload)
	cmd := exec.CommandContext(ctx, "python3", append([]string{script}, args...)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = store.FailJob(job.ID, "failed to open stdout pipe: "+err.Error())
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = store.FailJob(job.ID, "failed to open stderr pipe: "+err.Error())
		return
	}

	if err := cmd.Start(); err != nil {
		if dsID, has := extractDatasetID(payload); has {
			_ = store.ReleaseDatasetLock(dsID, job.ID)
		}
		_ = store.FailJob(job.ID, "failed to spawn worker: "+err.Error())
		return
	}

	var streams sync.WaitGroup
	streams.Add(2)
	go streamEvents(store, job.ID, "stdout", stdout, &streams)
	go streamEvents(store, job.ID, "stderr", stderr, &streams)

	stop := make(chan struct{})
	ctrlDone := make(chan struct{})
	outcome := &controlOutcome{}
	go func() {
		runControlLoop(store, job.ID, workerID, cmd, stop, outcome)
		close(ctrlDone)
	}()

	waitErr := cmd.Wait()
	close(stop)
	<-ctrlDone
	streams.Wait()

	if outcome.cancelled() {
		if err := store.CancelRunningJob(job.ID, workerID); err != nil {
			slog.Error("cancel running job failed", "job_id", job.ID, "error", err)
		}
		return
	}
	if outcome.lostOwnership() {
		slog.Warn("job lease reclaimed by another worker; exiting without changing status", "job_id", job.ID)
		return
	}

	if dsID, has := extractDatasetID(payload); has {
		if err := store.ReleaseDatasetLock(dsID, job.ID); err != nil {
			slog.Warn("release dataset lock failed", "job_id", job.ID, "error", err)
		}
	}

	if waitErr == nil {
		if err := store.FinishJob(job.ID); err != nil {
			slog.Error("finish job failed", "job_id", job.ID, "error", err)
		}
		return
	}
	if err := store.FailJob(job.ID, "worker exit: "+waitErr.Error()); err != nil {
		slog.Error("fail job failed", "job_id", job.ID, "error", err)
	}
}

// controlOutcome records, across the control loop goroutine and
// executeJob, why the child process was terminated before it exited on
// its own: a deliberate cancellation, or ownership lost to another
// claimant. Guarded by a mutex since the control loop writes it and
// executeJob reads it after the two have synchronized on ctrlDone.
type controlOutcome struct {
	mu              sync.Mutex
	isCancelled     bool
	isLostOwnership bool
}

func (o *controlOutcome) setCancelled() {
	o.mu.Lock()
	o.isCancelled = true
	o.mu.Unlock()
}

func (o *controlOutcome) setLostOwnership() {
	o.mu.Lock()
	if !o.isCancelled {
		o.isLostOwnership = true
	}
	o.mu.Unlock()
}

func (o *controlOutcome) cancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isCancelled
}

func (o *controlOutcome) lostOwnership() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isLostOwnership
}

// runControlLoop polls the job's cancel and pause flags and lease
// ownership every ControlPoll, renews the lease every HeartbeatEvery, and
// escalates SIGTERM then SIGKILL on cancellation or lost ownership. While
// the job is paused and no cancel is requested it renews the lease but does
// not signal the child for lost ownership. The child's exit is still
// observed by executeJob's cmd.Wait, paused or not.
func runControlLoop(store *jobstore.Store, jobID, workerID string, cmd *exec.Cmd, stop <-chan struct{}, outcome *controlOutcome) {
	ticker := time.NewTicker(jobstore.ControlPoll)
	defer ticker.Stop()

	var lastHeartbeat time.Time
	var termSent time.Time

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			state, err := store.PeekControlState(jobID, workerID)
			if err != nil {
				slog.Warn("control loop peek failed", "job_id", jobID, "error", err)
				continue
			}

			if now.Sub(lastHeartbeat) >= jobstore.HeartbeatEvery {
				lastHeartbeat = now
				if ok, err := store.Heartbeat(jobID, workerID); err != nil {
					slog.Warn("heartbeat failed", "job_id", jobID, "error", err)
				} else if !ok {
					state.StillOwned = false
				}
			}

			if state.Paused && !state.CancelRequested {
				continue
			}

			if state.CancelRequested {
				outcome.setCancelled()
			} else if !state.StillOwned {
				outcome.setLostOwnership()
			} else {
				continue
			}

			if termSent.IsZero() {
				termSent = now
				if cmd.Process != nil {
					_ = cmd.Process.Signal(syscall.SIGTERM)
				}
			} else if now.Sub(termSent) >= jobstore.TermGrace {
				if cmd.Process != nil {
					_ = cmd.Process.Signal(syscall.SIGKILL)
				}
			}
		}
	}
}

// streamEvents reads newline-delimited output from a pipe, forwarding
// lines that parse as JSON objects as-is and wrapping everything else in
// a {"type":"progress"} envelope, per worker_loop.rs's stdout/stderr
// handling.
func streamEvents(store *jobstore.Store, jobID, source string, pipe io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		var parsed map[string]any
		if err := json.Unmarshal([]byte(line), &parsed); err == nil {
			if err := store.AppendEventRaw(jobID, line); err != nil {
				slog.Warn("append raw event failed", "job_id", jobID, "error", err)
			}
			continue
		}
		if err := store.AppendEvent(jobID, "progress", map[string]any{"source": source, "line": line}); err != nil {
			slog.Warn("append progress event failed", "job_id", jobID, "error", err)
		}
	}
}

func decodePayload(raw []byte) map[string]any {
	var m map[string]any
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
