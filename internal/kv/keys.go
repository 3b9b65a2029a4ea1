// Package kv holds low-level byte-key encoding for the Pebble-backed node
// store. Keys are flat byte strings so a plain LSM engine can serve as the
// backing store without any schema.
package kv

// PrefixNode namespaces Sparse Merkle Tree node entries within the Pebble
// keyspace: n|{height:2BE}{path_prefix:32B} -> node hash (32 bytes).
const PrefixNode = "n|"

// NodeKey returns the Pebble key for a tree node at the given height and
// prefix-form path. height is in [0,256]; pathPrefix must already have its
// height lowest bits zeroed by the caller (see smt.go's prefixKey), so that
// every key under the same subtree at that height maps to one node key.
func NodeKey(height uint16, pathPrefix [32]byte) []byte {
	k := make([]byte, 0, len(PrefixNode)+2+32)
	k = append(k, PrefixNode...)
	k = PutUint16BE(k, height)
	return append(k, pathPrefix[:]...)
}

// NodePrefix returns the scan prefix for all nodes at a given height:
// n|{height:2BE}
func NodePrefix(height uint16) []byte {
	k := make([]byte, 0, len(PrefixNode)+2)
	k = append(k, PrefixNode...)
	return PutUint16BE(k, height)
}

// DecodeNodeKey splits a node key back into its height and path prefix. ok
// is false if k is not a well-formed node key.
func DecodeNodeKey(k []byte) (height uint16, pathPrefix [32]byte, ok bool) {
	if len(k) != len(PrefixNode)+2+32 {
		return 0, pathPrefix, false
	}
	if string(k[:len(PrefixNode)]) != PrefixNode {
		return 0, pathPrefix, false
	}
	height = GetUint16BE(k[len(PrefixNode) : len(PrefixNode)+2])
	copy(pathPrefix[:], k[len(PrefixNode)+2:])
	return height, pathPrefix, true
}
