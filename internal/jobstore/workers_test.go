package jobstore

import (
	"testing"
	"time"
)

func TestRegisterAndTouchWorker(t *testing.T) {
	s := newTestStore(t)

	if err := s.RegisterWorker("w1", "host-a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	n, err := s.ActiveWorkerCount()
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if n != 1 {
		t.Fatalf("active = %d, want 1", n)
	}

	if err := s.RegisterWorker("w1", "host-a"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	n, err = s.ActiveWorkerCount()
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if n != 1 {
		t.Fatalf("re-registering should not duplicate the row, active = %d", n)
	}

	if err := s.TouchWorker("w1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
}

func TestActiveWorkerCountExcludesStale(t *testing.T) {
	s := newTestStore(t)
	if err := s.RegisterWorker("w1", "host-a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.db.Write.Exec(`UPDATE workers SET last_heartbeat = ? WHERE id = ?`,
		nowUTC().Add(-time.Hour), "w1"); err != nil {
		t.Fatalf("age heartbeat: %v", err)
	}

	n, err := s.ActiveWorkerCount()
	if err != nil {
		t.Fatalf("active count: %v", err)
	}
	if n != 0 {
		t.Fatalf("active = %d, want 0", n)
	}
}
