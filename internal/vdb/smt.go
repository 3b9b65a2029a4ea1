package vdb

// SparseMerkleTree is a 256-deep authenticated map from key hash to value
// hash, backed by a NodeStore that only ever holds non-default nodes.
type SparseMerkleTree struct {
	root     Hash32
	store    NodeStore
	defaults [treeDepth + 1]Hash32
}

// NewSparseMerkleTree builds an SMT over store, starting from the empty
// tree's root if store holds no nodes yet.
func NewSparseMerkleTree(store NodeStore) *SparseMerkleTree {
	defaults := DefaultHashes()
	root := defaults[treeDepth]
	// The root node lives at height 256 under the all-zero prefix key.
	if h, ok := store.Get(NodeID{Height: treeDepth}); ok {
		root = h
	}
	return &SparseMerkleTree{
		root:     root,
		store:    store,
		defaults: defaults,
	}
}

// Root returns the current state root.
func (t *SparseMerkleTree) Root() Hash32 {
	return t.root
}

// DefaultHashes returns the tree's precomputed default-node tower.
func (t *SparseMerkleTree) DefaultHashes() [treeDepth + 1]Hash32 {
	return t.defaults
}

// Update sets the leaf at keyHash to valueHash and recomputes the root,
// walking the path bottom-up and pruning any node that collapses back to
// its height's default hash.
func (t *SparseMerkleTree) Update(keyHash, valueHash Hash32) {
	current := HashLeaf(valueHash)

	leafID := NodeID{Height: 0, Key: keyHash}
	if current == t.defaults[0] {
		t.store.Delete(leafID)
	} else {
		t.store.Put(leafID, current)
	}

	for h := 0; h < treeDepth; h++ {
		isRight := bitAtLSB(keyHash, h)
		siblingKey := flipBitLSB(keyHash, h)
		siblingID := NodeID{Height: uint16(h), Key: prefixKey(siblingKey, h)}
		siblingHash := t.getNodeOrDefault(siblingID)

		parentID := NodeID{Height: uint16(h + 1), Key: prefixKey(keyHash, h+1)}

		var parentHash Hash32
		if isRight {
			parentHash = HashInternal(siblingHash, current)
		} else {
			parentHash = HashInternal(current, siblingHash)
		}

		if parentHash == t.defaults[h+1] {
			t.store.Delete(parentID)
		} else {
			t.store.Put(parentID, parentHash)
		}

		current = parentHash
	}

	t.root = current
}

// Prove returns the 256 sibling hashes on keyHash's path, leaf-to-root.
func (t *SparseMerkleTree) Prove(keyHash Hash32) MerkleProof256 {
	proof := MerkleProof256{Siblings: make([]Hash32, 0, treeDepth)}
	for h := 0; h < treeDepth; h++ {
		siblingKey := flipBitLSB(keyHash, h)
		siblingID := NodeID{Height: uint16(h), Key: prefixKey(siblingKey, h)}
		proof.Siblings = append(proof.Siblings, t.getNodeOrDefault(siblingID))
	}
	return proof
}

// VerifyProof recomputes the root along keyHash's path using proof's
// siblings and reports whether it matches stateRoot. It is a pure function
// of its arguments; no store is consulted.
func VerifyProof(proof MerkleProof256, keyHash, valueHash, stateRoot Hash32) bool {
	if len(proof.Siblings) != treeDepth {
		return false
	}
	current := HashLeaf(valueHash)
	for h := 0; h < treeDepth; h++ {
		isRight := bitAtLSB(keyHash, h)
		sibling := proof.Siblings[h]
		if isRight {
			current = HashInternal(sibling, current)
		} else {
			current = HashInternal(current, sibling)
		}
	}
	return current == stateRoot
}

func (t *SparseMerkleTree) getNodeOrDefault(id NodeID) Hash32 {
	if h, ok := t.store.Get(id); ok {
		return h
	}
	return t.defaults[id.Height]
}

// bitAtLSB reports bit h of key, counting from the least-significant bit of
// the key treated as a 256-bit big-endian integer: byte index 31-(h/8),
// bit h%8 within that byte.
func bitAtLSB(key Hash32, h int) bool {
	byteIndex := 31 - (h / 8)
	bitIndex := uint(h % 8)
	return (key[byteIndex]>>bitIndex)&1 == 1
}

// flipBitLSB returns a copy of key with bit h toggled.
func flipBitLSB(key Hash32, h int) Hash32 {
	byteIndex := 31 - (h / 8)
	bitIndex := uint(h % 8)
	key[byteIndex] ^= 1 << bitIndex
	return key
}

// prefixKey zeroes the h lowest bits of key (bits 0..h-1 as bitAtLSB counts
// them), leaving bits h..255: the path prefix shared by every key in the
// height-h subtree that contains key. Used so sibling and parent node IDs
// at different heights never alias.
func prefixKey(key Hash32, h int) Hash32 {
	fullBytes := h / 8
	for i := 0; i < fullBytes; i++ {
		key[31-i] = 0
	}
	remBits := h % 8
	if remBits != 0 {
		idx := 31 - fullBytes
		mask := byte(0xFF << uint(remBits))
		key[idx] &= mask
	}
	return key
}
