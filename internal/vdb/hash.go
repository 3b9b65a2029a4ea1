package vdb

import "github.com/zeebo/blake3"

// Domain separation tags: a leaf preimage and an internal-node preimage can
// never collide since the first byte fixes which one was hashed.
const (
	domainLeaf     byte = 0x00
	domainInternal byte = 0x01
)

// HashKey hashes a raw key to its 256-bit tree path. Used only for path
// bits, never mixed into leaf content.
func HashKey(key []byte) Hash32 {
	return blake3.Sum256(key)
}

// HashValue hashes a raw value to the payload committed at a leaf.
func HashValue(value []byte) Hash32 {
	return blake3.Sum256(value)
}

// HashLeaf computes the leaf hash for a given value hash: H(0x00 || vh).
// It depends only on the value hash, never on the key hash.
func HashLeaf(valueHash Hash32) Hash32 {
	var buf [1 + 32]byte
	buf[0] = domainLeaf
	copy(buf[1:], valueHash[:])
	return blake3.Sum256(buf[:])
}

// HashInternal computes an internal node hash: H(0x01 || left || right).
func HashInternal(left, right Hash32) Hash32 {
	var buf [1 + 32 + 32]byte
	buf[0] = domainInternal
	copy(buf[1:33], left[:])
	copy(buf[33:], right[:])
	return blake3.Sum256(buf[:])
}

// EmptyValueHash is the canonical value hash standing in for "no value".
func EmptyValueHash() Hash32 {
	return Hash32{}
}

// EmptyLeafHash is the leaf hash of an unused slot; it proves non-existence.
func EmptyLeafHash() Hash32 {
	return HashLeaf(EmptyValueHash())
}

// treeDepth is the fixed Sparse Merkle Tree depth (one slot per 256-bit key
// hash).
const treeDepth = 256

// defaultHashes is the precomputed default-node tower: defaultHashes[0] is
// the empty leaf hash, defaultHashes[h+1] = HashInternal(defaultHashes[h],
// defaultHashes[h]), up to defaultHashes[256], the empty tree's root.
func computeDefaultHashes() [treeDepth + 1]Hash32 {
	var defaults [treeDepth + 1]Hash32
	defaults[0] = EmptyLeafHash()
	for h := 0; h < treeDepth; h++ {
		prev := defaults[h]
		defaults[h+1] = HashInternal(prev, prev)
	}
	return defaults
}

var defaultHashTower = computeDefaultHashes()

// DefaultHashes returns the precomputed default-node tower, indexed by
// height [0,256]. Index 256 is the empty tree's root.
func DefaultHashes() [treeDepth + 1]Hash32 {
	return defaultHashTower
}
