package jobstore

import (
	"testing"
	"time"
)

func TestAcquireDatasetLockTxGrantsAndBlocks(t *testing.T) {
	s := newTestStore(t)
	leaseUntil := nowUTC().Add(time.Minute)

	tx, err := s.db.Write.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ok, err := acquireDatasetLockTx(tx, "ds-1", "job-a", leaseUntil)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected first acquisition to succeed")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx, err = s.db.Write.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ok, err = acquireDatasetLockTx(tx, "ds-1", "job-b", leaseUntil)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected second job's acquisition of a live lock to fail")
	}
	tx.Rollback()
}

func TestAcquireDatasetLockTxStealsStaleLease(t *testing.T) {
	s := newTestStore(t)
	past := nowUTC().Add(-time.Minute)

	tx, err := s.db.Write.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if ok, err := acquireDatasetLockTx(tx, "ds-1", "job-a", past); err != nil || !ok {
		t.Fatalf("seed: ok=%v err=%v", ok, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	future := nowUTC().Add(time.Minute)
	tx, err = s.db.Write.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ok, err := acquireDatasetLockTx(tx, "ds-1", "job-b", future)
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if !ok {
		t.Fatalf("expected stale lease to be stolen")
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var owner string
	if err := s.db.Read.QueryRow(`SELECT job_id FROM dataset_locks WHERE dataset_id = ?`, "ds-1").
		Scan(&owner); err != nil {
		t.Fatalf("read owner: %v", err)
	}
	if owner != "job-b" {
		t.Fatalf("owner = %q, want job-b", owner)
	}
}

func TestReleaseDatasetLock(t *testing.T) {
	s := newTestStore(t)
	leaseUntil := nowUTC().Add(time.Minute)

	tx, err := s.db.Write.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if ok, err := acquireDatasetLockTx(tx, "ds-1", "job-a", leaseUntil); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := s.ReleaseDatasetLock("ds-1", "job-a"); err != nil {
		t.Fatalf("release: %v", err)
	}

	var count int
	if err := s.db.Read.QueryRow(`SELECT COUNT(*) FROM dataset_locks WHERE dataset_id = ?`, "ds-1").
		Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected lock to be released, count=%d", count)
	}
}
