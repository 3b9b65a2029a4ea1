package vdb

import "testing"

func TestEmptyTreeRootMatchesDefaultTower(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	defaults := DefaultHashes()
	if tree.Root() != defaults[treeDepth] {
		t.Fatal("empty tree root should equal the top of the default hash tower")
	}
}

func TestUpdateChangesRoot(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	before := tree.Root()

	keyHash := HashKey([]byte("alpha"))
	valueHash := HashValue([]byte("one"))
	tree.Update(keyHash, valueHash)

	if tree.Root() == before {
		t.Fatal("root should change after an update")
	}
}

func TestProveAndVerifyRoundTrip(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	keyHash := HashKey([]byte("alpha"))
	valueHash := HashValue([]byte("one"))
	tree.Update(keyHash, valueHash)

	proof := tree.Prove(keyHash)
	if !VerifyProof(proof, keyHash, valueHash, tree.Root()) {
		t.Fatal("proof should verify against the tree's own root")
	}
}

func TestVerifyProofRejectsWrongValue(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	keyHash := HashKey([]byte("alpha"))
	valueHash := HashValue([]byte("one"))
	tree.Update(keyHash, valueHash)

	proof := tree.Prove(keyHash)
	wrongValueHash := HashValue([]byte("two"))
	if VerifyProof(proof, keyHash, wrongValueHash, tree.Root()) {
		t.Fatal("proof should not verify against a different value")
	}
}

func TestVerifyProofRejectsWrongSiblingCount(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	keyHash := HashKey([]byte("alpha"))
	valueHash := HashValue([]byte("one"))
	tree.Update(keyHash, valueHash)

	proof := tree.Prove(keyHash)
	proof.Siblings = proof.Siblings[:len(proof.Siblings)-1]
	if VerifyProof(proof, keyHash, valueHash, tree.Root()) {
		t.Fatal("proof with wrong sibling count must be rejected")
	}
}

func TestAbsenceProof(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	present := HashKey([]byte("present"))
	tree.Update(present, HashValue([]byte("x")))

	absentKey := HashKey([]byte("absent"))
	proof := tree.Prove(absentKey)
	if !VerifyProof(proof, absentKey, EmptyValueHash(), tree.Root()) {
		t.Fatal("absence proof should verify the empty value hash at an untouched key")
	}
}

func TestUpdateIsOrderIndependentForDisjointKeys(t *testing.T) {
	a := NewSparseMerkleTree(NewInMemoryNodeStore())
	b := NewSparseMerkleTree(NewInMemoryNodeStore())

	k1, v1 := HashKey([]byte("k1")), HashValue([]byte("v1"))
	k2, v2 := HashKey([]byte("k2")), HashValue([]byte("v2"))

	a.Update(k1, v1)
	a.Update(k2, v2)

	b.Update(k2, v2)
	b.Update(k1, v1)

	if a.Root() != b.Root() {
		t.Fatal("root should not depend on update order for disjoint keys")
	}
}

func TestDeletingBackToEmptyRestoresRoot(t *testing.T) {
	tree := NewSparseMerkleTree(NewInMemoryNodeStore())
	empty := tree.Root()

	key := HashKey([]byte("k"))
	tree.Update(key, HashValue([]byte("v")))
	if tree.Root() == empty {
		t.Fatal("sanity: update should move the root away from empty")
	}

	tree.Update(key, EmptyValueHash())
	if tree.Root() != empty {
		t.Fatal("setting a key back to the empty value hash should restore the empty root")
	}
}

func TestUpdatePrunesDefaultNodes(t *testing.T) {
	store := NewInMemoryNodeStore()
	tree := NewSparseMerkleTree(store)

	key := HashKey([]byte("k"))
	tree.Update(key, HashValue([]byte("v")))
	if store.Len() == 0 {
		t.Fatal("a non-default leaf and its path should leave entries in the store")
	}

	tree.Update(key, EmptyValueHash())
	if store.Len() != 0 {
		t.Errorf("reverting to the default value should prune every node on the path, got %d left", store.Len())
	}
}

func TestBitAtLSBAndPrefixKeyAgree(t *testing.T) {
	var key Hash32
	key[31] = 0b0000_0101 // bits 0 and 2 set

	if !bitAtLSB(key, 0) {
		t.Error("bit 0 should be set")
	}
	if bitAtLSB(key, 1) {
		t.Error("bit 1 should be clear")
	}
	if !bitAtLSB(key, 2) {
		t.Error("bit 2 should be set")
	}

	prefixed := prefixKey(key, 1)
	if bitAtLSB(prefixed, 0) {
		t.Error("prefixKey(key, 1) should zero bit 0")
	}
	if !bitAtLSB(prefixed, 2) {
		t.Error("prefixKey(key, 1) should leave bit 2 untouched")
	}
}
