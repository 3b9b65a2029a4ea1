package kv

import (
	"bytes"
	"testing"
)

func TestNodeKeyRoundTrip(t *testing.T) {
	var prefix [32]byte
	prefix[0] = 0xAB
	prefix[31] = 0xCD

	k := NodeKey(17, prefix)
	height, got, ok := DecodeNodeKey(k)
	if !ok {
		t.Fatal("DecodeNodeKey: ok=false")
	}
	if height != 17 {
		t.Errorf("height: got %d, want 17", height)
	}
	if got != prefix {
		t.Errorf("prefix: got %x, want %x", got, prefix)
	}
}

func TestNodeKeyHeightSeparation(t *testing.T) {
	var prefix [32]byte
	// Same path prefix bytes, different heights must not collide.
	k0 := NodeKey(0, prefix)
	k1 := NodeKey(1, prefix)
	if bytes.Equal(k0, k1) {
		t.Error("keys at different heights must differ even with identical path bytes")
	}
}

func TestNodePrefixSeek(t *testing.T) {
	prefix := NodePrefix(42)
	var path [32]byte
	path[5] = 0x11
	k := NodeKey(42, path)
	if !bytes.HasPrefix(k, prefix) {
		t.Error("node key should start with its height prefix")
	}

	other := NodeKey(43, path)
	if bytes.HasPrefix(other, prefix) {
		t.Error("node key at a different height should not match")
	}
}

func TestDecodeNodeKeyRejectsMalformed(t *testing.T) {
	if _, _, ok := DecodeNodeKey([]byte("garbage")); ok {
		t.Error("expected ok=false for malformed key")
	}
	if _, _, ok := DecodeNodeKey(nil); ok {
		t.Error("expected ok=false for nil key")
	}
}
