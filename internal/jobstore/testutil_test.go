package jobstore

import "testing"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func mustEnqueue(t *testing.T, s *Store, req EnqueueRequest) *EnqueueResult {
	t.Helper()
	res, err := s.Enqueue(req)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return res
}
