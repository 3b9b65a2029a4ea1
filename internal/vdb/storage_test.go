package vdb

import (
	"path/filepath"
	"testing"
)

func testStorageGetPutDelete(t *testing.T, s Storage) {
	t.Helper()

	v, err := s.Get([]byte("missing"))
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil for missing key, got %v", v)
	}

	if err := s.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err = s.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("got %q, want %q", v, "v1")
	}

	if err := s.Put([]byte("k1"), []byte("v2")); err != nil {
		t.Fatalf("overwrite put: %v", err)
	}
	v, _ = s.Get([]byte("k1"))
	if string(v) != "v2" {
		t.Fatalf("after overwrite: got %q, want %q", v, "v2")
	}

	if err := s.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	v, _ = s.Get([]byte("k1"))
	if v != nil {
		t.Fatalf("expected nil after delete, got %v", v)
	}

	// deleting an absent key is not an error
	if err := s.Delete([]byte("never-existed")); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestInMemoryStorage(t *testing.T) {
	testStorageGetPutDelete(t, NewInMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	testStorageGetPutDelete(t, s)
}

func TestFileStoragePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s1, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("new file storage: %v", err)
	}
	if err := s1.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}

	s2, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("reopen file storage: %v", err)
	}
	v, err := s2.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if string(v) != "v" {
		t.Fatalf("got %q after reopen, want %q", v, "v")
	}
}
