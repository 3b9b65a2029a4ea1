package vdb

import (
	"crypto/ed25519"
	"crypto/rand"
	"sort"
	"time"

	"github.com/zeebo/blake3"
)

// defaultHistoryDepth is how many recent state roots VerifiableKV retains
// for root_by_event/root_at_or_before style lookups.
const defaultHistoryDepth = 100

// VerifiableKV is the facade over a Sparse Merkle Tree, a raw value store,
// a signed event log, and bounded state history: every write returns a
// receipt binding it to the resulting root, and every read returns a proof
// against the current root.
type VerifiableKV struct {
	storage    Storage
	smt        *SparseMerkleTree
	signingKey ed25519.PrivateKey
	verifyKey  ed25519.PublicKey
	eventLog   *EventLog
	history    *StateHistory
}

// New creates a VerifiableKV over storage with a freshly generated signing
// key and an in-memory node store.
func New(storage Storage) (*VerifiableKV, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, NewStorageError("generate signing key", err)
	}
	return NewWithStoreAndKey(storage, NewInMemoryNodeStore(), priv, pub), nil
}

// NewWithStoreAndKey creates a VerifiableKV over an explicit node store and
// signing key pair, for recovery (reopening an existing tree) or tests that
// need a deterministic key.
func NewWithStoreAndKey(storage Storage, nodeStore NodeStore, signingKey ed25519.PrivateKey, verifyKey ed25519.PublicKey) *VerifiableKV {
	return &VerifiableKV{
		storage:    storage,
		smt:        NewSparseMerkleTree(nodeStore),
		signingKey: signingKey,
		verifyKey:  verifyKey,
		eventLog:   NewEventLog(signingKey),
		history:    NewStateHistory(defaultHistoryDepth),
	}
}

// Set stores value under key, updates the tree, and appends a signed event.
func (kv *VerifiableKV) Set(key, value []byte) (WriteReceipt, error) {
	keyHash := HashKey(key)
	valueHash := HashValue(value)

	if err := kv.storage.Put(key, value); err != nil {
		return WriteReceipt{}, err
	}
	kv.smt.Update(keyHash, valueHash)
	newRoot := kv.smt.Root()

	entry, err := kv.appendWriteEvent(OpSet, key, valueHash, newRoot)
	if err != nil {
		return WriteReceipt{}, err
	}

	return WriteReceipt{
		Key:       key,
		ValueHash: valueHash,
		StateRoot: newRoot,
		EventHash: entry.EventHash,
		Signature: entry.Signature,
	}, nil
}

// Delete removes key from storage and sets its tree leaf back to the empty
// value hash, appending a signed event.
func (kv *VerifiableKV) Delete(key []byte) (WriteReceipt, error) {
	keyHash := HashKey(key)
	emptyHash := EmptyValueHash()

	if err := kv.storage.Delete(key); err != nil {
		return WriteReceipt{}, err
	}
	kv.smt.Update(keyHash, emptyHash)
	newRoot := kv.smt.Root()

	entry, err := kv.appendWriteEvent(OpDelete, key, emptyHash, newRoot)
	if err != nil {
		return WriteReceipt{}, err
	}

	return WriteReceipt{
		Key:       key,
		ValueHash: emptyHash,
		StateRoot: newRoot,
		EventHash: entry.EventHash,
		Signature: entry.Signature,
	}, nil
}

func (kv *VerifiableKV) appendWriteEvent(op Operation, key []byte, valueHash, newRoot Hash32) (LogEntry, error) {
	timestamp := uint64(time.Now().Unix())
	event := SingleEvent(WriteEvent{
		Operation:     op,
		Key:           append([]byte(nil), key...),
		ValueHash:     valueHash,
		PrevEventHash: kv.eventLog.LatestHash(),
		StateRoot:     newRoot,
		Timestamp:     timestamp,
	})
	entry, err := kv.eventLog.Append(event)
	if err != nil {
		return LogEntry{}, err
	}
	kv.history.Record(RootPoint{EventHash: entry.EventHash, StateRoot: newRoot, Timestamp: timestamp})
	return entry, nil
}

// KVPair is one key/value input to BatchSet.
type KVPair struct {
	Key   []byte
	Value []byte
}

// BatchSet applies every pair in a single commitment: keys are sorted by
// key hash before being applied so the resulting root and commitment hash
// are independent of input order, then the whole batch is recorded as one
// event.
func (kv *VerifiableKV) BatchSet(pairs []KVPair) (BatchReceipt, error) {
	type preparedOp struct {
		key       []byte
		value     []byte
		keyHash   Hash32
		valueHash Hash32
	}

	ops := make([]preparedOp, len(pairs))
	for i, p := range pairs {
		ops[i] = preparedOp{
			key:       p.Key,
			value:     p.Value,
			keyHash:   HashKey(p.Key),
			valueHash: HashValue(p.Value),
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		return string(ops[i].keyHash[:]) < string(ops[j].keyHash[:])
	})

	commitment := blake3.New()
	commitment.Write([]byte("batch"))

	for _, op := range ops {
		if err := kv.storage.Put(op.key, op.value); err != nil {
			return BatchReceipt{}, err
		}
		kv.smt.Update(op.keyHash, op.valueHash)

		opHasher := blake3.New()
		opHasher.Write([]byte("set"))
		opHasher.Write(op.keyHash[:])
		opHasher.Write(op.valueHash[:])
		var opHash Hash32
		copy(opHash[:], opHasher.Sum(nil))
		commitment.Write(opHash[:])
	}

	var batchHash Hash32
	copy(batchHash[:], commitment.Sum(nil))
	newRoot := kv.smt.Root()
	timestamp := uint64(time.Now().Unix())

	event := BatchEvent(BatchWriteEvent{
		BatchHash:     batchHash,
		OpCount:       uint32(len(ops)),
		PrevEventHash: kv.eventLog.LatestHash(),
		StateRoot:     newRoot,
		Timestamp:     timestamp,
	})
	entry, err := kv.eventLog.Append(event)
	if err != nil {
		return BatchReceipt{}, err
	}
	kv.history.Record(RootPoint{EventHash: entry.EventHash, StateRoot: newRoot, Timestamp: timestamp})

	return BatchReceipt{
		StateRoot:       newRoot,
		LatestEventHash: entry.EventHash,
		BatchHash:       batchHash,
		Signature:       entry.Signature,
		OpCount:         uint32(len(ops)),
	}, nil
}

// Get returns value (nil if absent), its hash, the current root, and a
// membership/absence proof against that root.
func (kv *VerifiableKV) Get(key []byte) (ReadResult, error) {
	keyHash := HashKey(key)

	value, err := kv.storage.Get(key)
	if err != nil {
		return ReadResult{}, err
	}

	proof := kv.smt.Prove(keyHash)

	var valueHash Hash32
	if value != nil {
		valueHash = HashValue(value)
	} else {
		valueHash = EmptyValueHash()
	}

	return ReadResult{
		Key:       key,
		Value:     value,
		ValueHash: valueHash,
		StateRoot: kv.smt.Root(),
		Proof:     proof,
	}, nil
}

// StateRoot returns the tree's current root.
func (kv *VerifiableKV) StateRoot() Hash32 {
	return kv.smt.Root()
}

// VerifyingKey returns the Ed25519 public key against which this store's
// event signatures verify.
func (kv *VerifiableKV) VerifyingKey() ed25519.PublicKey {
	return kv.verifyKey
}

// Checkpoint returns a publishable anchor: the current root and the hash of
// the most recent logged event.
func (kv *VerifiableKV) Checkpoint() Checkpoint {
	return Checkpoint{
		StateRoot:       kv.StateRoot(),
		LatestEventHash: kv.eventLog.LatestHash(),
	}
}

// VerifyProofForKey checks proof for key/value against stateRoot. value is nil
// for an absence proof. This is a pure function independent of any live
// VerifiableKV instance — a verifier only needs the proof, the key, the
// claimed value, and the root.
func VerifyProofForKey(proof MerkleProof256, key []byte, value []byte, stateRoot Hash32) bool {
	keyHash := HashKey(key)
	var valueHash Hash32
	if value != nil {
		valueHash = HashValue(value)
	} else {
		valueHash = EmptyValueHash()
	}
	return VerifyProof(proof, keyHash, valueHash, stateRoot)
}

// VerifyEventLog checks this store's own log for chain and signature
// integrity under its own verifying key.
func (kv *VerifiableKV) VerifyEventLog() bool {
	return VerifyChainAndSigs(kv.eventLog.Entries(), kv.verifyKey)
}

// Entries exposes the raw log entries, e.g. for an external auditor given
// only the verifying key.
func (kv *VerifiableKV) Entries() []LogEntry {
	return kv.eventLog.Entries()
}

// HistoryRootByEvent looks up the root recorded alongside eventHash.
func (kv *VerifiableKV) HistoryRootByEvent(eventHash Hash32) (Hash32, bool) {
	return kv.history.RootByEvent(eventHash)
}

// HistoryRootAtOrBefore looks up the most recent root at or before
// timestamp.
func (kv *VerifiableKV) HistoryRootAtOrBefore(timestamp uint64) (Hash32, bool) {
	return kv.history.RootAtOrBefore(timestamp)
}

// CompressProof drops every sibling that equals the default hash at its
// height, recording only which heights were non-default in a bitmap.
func (kv *VerifiableKV) CompressProof(proof MerkleProof256) CompressedProof {
	defaults := kv.smt.DefaultHashes()
	var bitmap [32]byte
	siblings := make([]Hash32, 0, len(proof.Siblings))

	for i, sibling := range proof.Siblings {
		if sibling != defaults[i] {
			bitmap[i/8] |= 1 << uint(i%8)
			siblings = append(siblings, sibling)
		}
	}

	return CompressedProof{
		Depth:    treeDepth,
		Bitmap:   bitmap,
		Siblings: siblings,
	}
}

// DecompressProof expands a CompressedProof back into a full 256-sibling
// MerkleProof256, filling in default hashes where the bitmap says a sibling
// was omitted.
func (kv *VerifiableKV) DecompressProof(compressed CompressedProof) (MerkleProof256, error) {
	if compressed.Depth != treeDepth {
		return MerkleProof256{}, ErrInvalidProof
	}

	defaults := kv.smt.DefaultHashes()
	full := make([]Hash32, 0, treeDepth)
	next := 0

	for i := 0; i < treeDepth; i++ {
		present := (compressed.Bitmap[i/8]>>uint(i%8))&1 == 1
		if present {
			if next >= len(compressed.Siblings) {
				return MerkleProof256{}, ErrInvalidProof
			}
			full = append(full, compressed.Siblings[next])
			next++
		} else {
			full = append(full, defaults[i])
		}
	}

	if next != len(compressed.Siblings) {
		return MerkleProof256{}, ErrInvalidProof
	}

	return MerkleProof256{Siblings: full}, nil
}
