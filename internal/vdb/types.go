// Package vdb implements a verifiable key-value store: a 256-deep Sparse
// Merkle Tree authenticating a raw value store, with a signed hash-chained
// event log and bounded state history.
package vdb

// Hash32 is an opaque 32-byte identifier used for keys, values, nodes and
// events throughout the package.
type Hash32 = [32]byte

// WriteReceipt is returned from Set/Delete and binds the write to the state
// root it produced and the signed event that recorded it.
type WriteReceipt struct {
	Key        []byte
	ValueHash  Hash32
	StateRoot  Hash32
	EventHash  Hash32
	Signature  []byte
}

// ReadResult is returned from Get: the raw value (if present), its hash,
// the current state root, and a membership/absence proof against that root.
type ReadResult struct {
	Key       []byte
	Value     []byte // nil if absent
	ValueHash Hash32
	StateRoot Hash32
	Proof     MerkleProof256
}

// MerkleProof256 holds the 256 sibling hashes for a key's path, ordered
// leaf-to-root.
type MerkleProof256 struct {
	Siblings []Hash32
}

// Checkpoint is a publishable anchor: the current root plus the hash of the
// most recent log entry.
type Checkpoint struct {
	StateRoot       Hash32
	LatestEventHash Hash32
}

// BatchReceipt is returned from BatchSet.
type BatchReceipt struct {
	StateRoot       Hash32
	LatestEventHash Hash32
	BatchHash       Hash32
	Signature       []byte
	OpCount         uint32
}

// CompressedProof omits siblings that equal the default hash at their
// height, recording only which heights were non-default via a bitmap.
type CompressedProof struct {
	Depth    uint16 // always 256
	Bitmap   [32]byte
	Siblings []Hash32
}
