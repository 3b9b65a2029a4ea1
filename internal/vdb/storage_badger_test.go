package vdb

import "testing"

func TestBadgerStorage(t *testing.T) {
	s, err := OpenBadgerStorage(t.TempDir())
	if err != nil {
		t.Fatalf("open badger storage: %v", err)
	}
	defer s.Close()
	testStorageGetPutDelete(t, s)
}
