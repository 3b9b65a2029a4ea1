package vdb

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/user/vkv/internal/kv"
)

// PebbleNodeStore is a disk-backed NodeStore for trees too large to keep
// resident in memory. Keys are encoded by internal/kv's node-key scheme so
// the LSM tree sorts nodes by (height, path-prefix).
type PebbleNodeStore struct {
	db     *pebble.DB
	noSync bool
}

// OpenPebbleNodeStore opens (or creates) a Pebble-backed node store at dir.
func OpenPebbleNodeStore(dir string, noSync bool) (*PebbleNodeStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		MemTableSize:          16 << 20,
		L0CompactionThreshold: 8,
		MaxConcurrentCompactions: func() int {
			return 2
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble node store: %w", err)
	}
	return &PebbleNodeStore{db: db, noSync: noSync}, nil
}

func (s *PebbleNodeStore) syncOpt() *pebble.WriteOptions {
	if s.noSync {
		return pebble.NoSync
	}
	return pebble.Sync
}

func (s *PebbleNodeStore) Close() error {
	return s.db.Close()
}

func (s *PebbleNodeStore) Get(id NodeID) (Hash32, bool) {
	key := kv.NodeKey(id.Height, id.Key)
	v, closer, err := s.db.Get(key)
	if err != nil {
		return Hash32{}, false
	}
	defer func() { _ = closer.Close() }()
	var h Hash32
	copy(h[:], v)
	return h, true
}

func (s *PebbleNodeStore) Put(id NodeID, hash Hash32) {
	key := kv.NodeKey(id.Height, id.Key)
	_ = s.db.Set(key, hash[:], s.syncOpt())
}

func (s *PebbleNodeStore) Delete(id NodeID) {
	key := kv.NodeKey(id.Height, id.Key)
	_ = s.db.Delete(key, s.syncOpt())
}

// PutBatch applies a set of node writes and deletes atomically in one batch
// commit. The SMT update path does not call it; it writes through Put and
// Delete one node at a time.
func (s *PebbleNodeStore) PutBatch(puts map[NodeID]Hash32, deletes []NodeID) error {
	batch := s.db.NewBatch()
	defer func() { _ = batch.Close() }()
	for id, hash := range puts {
		if err := batch.Set(kv.NodeKey(id.Height, id.Key), hash[:], pebble.NoSync); err != nil {
			return err
		}
	}
	for _, id := range deletes {
		if err := batch.Delete(kv.NodeKey(id.Height, id.Key), pebble.NoSync); err != nil && err != pebble.ErrNotFound {
			return err
		}
	}
	return batch.Commit(s.syncOpt())
}
