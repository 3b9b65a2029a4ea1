package vdb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// fileStoreImage is the on-disk representation required by the external
// interface contract: a single JSON object holding every (key, value) pair
// as a 2-element array. encoding/json renders a []byte field as a base64
// string, so an item is literally ["<b64 key>", "<b64 value>"].
type fileStoreImage struct {
	Items [][2][]byte `json:"items"`
}

// FileStorage is a write-through, file-backed Storage: the whole keyspace
// lives in one file, held in memory between calls; every mutation
// re-serializes the full image to a temp file, fsyncs it, then renames it
// into place, so a crash mid-write never leaves a torn file on disk.
type FileStorage struct {
	mu   sync.Mutex
	path string
	data map[string][]byte
}

// NewFileStorage opens (or creates) a file-backed store at path, loading any
// existing image into memory.
func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{path: path, data: make(map[string][]byte)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, NewStorageError("read storage file", err)
	}
	if len(raw) == 0 {
		return s, nil
	}

	var image fileStoreImage
	if err := json.Unmarshal(raw, &image); err != nil {
		return nil, NewSerializationError("decode storage file", err)
	}
	for _, item := range image.Items {
		s.data[string(item[0])] = item[1]
	}
	return s, nil
}

func (s *FileStorage) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *FileStorage) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
	return s.persistLocked()
}

func (s *FileStorage) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return s.persistLocked()
}

func (s *FileStorage) persistLocked() error {
	image := fileStoreImage{Items: make([][2][]byte, 0, len(s.data))}
	for k, v := range s.data {
		image.Items = append(image.Items, [2][]byte{[]byte(k), v})
	}

	raw, err := json.Marshal(image)
	if err != nil {
		return NewSerializationError("encode storage file", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NewStorageError("create storage dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return NewStorageError("create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return NewStorageError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return NewStorageError("fsync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return NewStorageError("close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return NewStorageError("rename into place", err)
	}
	return nil
}
