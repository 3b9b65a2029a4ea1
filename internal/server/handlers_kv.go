package server

import (
	"encoding/base64"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/user/vkv/internal/vdb"
)

// keyParam decodes the {key} URL segment: it is matched as-is against the
// raw key bytes, so any key that isn't valid UTF-8-safe path text should
// be base64url-encoded by the caller; plain text keys pass through
// unchanged.
func keyParam(r *http.Request) []byte {
	return []byte(chi.URLParam(r, "key"))
}

func (s *Server) handlePutKV(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"` // base64
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "PARSE_ERROR")
		return
	}
	value, err := base64.StdEncoding.DecodeString(body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "value must be base64", "VALIDATION_ERROR")
		return
	}

	receipt, err := s.kv.Set(keyParam(r), value)
	if err != nil {
		writeVdbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeReceipt(receipt))
}

func (s *Server) handleDeleteKV(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.kv.Delete(keyParam(r))
	if err != nil {
		writeVdbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeReceipt(receipt))
}

func (s *Server) handleGetKV(w http.ResponseWriter, r *http.Request) {
	result, err := s.kv.Get(keyParam(r))
	if err != nil {
		writeVdbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeReadResult(result))
}

func (s *Server) handleBatchSetKV(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []struct {
			Key   string `json:"key"`
			Value string `json:"value"` // base64
		} `json:"items"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "PARSE_ERROR")
		return
	}
	if len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required", "VALIDATION_ERROR")
		return
	}

	pairs := make([]vdb.KVPair, len(body.Items))
	for i, item := range body.Items {
		value, err := base64.StdEncoding.DecodeString(item.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "value must be base64", "VALIDATION_ERROR")
			return
		}
		pairs[i] = vdb.KVPair{Key: []byte(item.Key), Value: value}
	}

	receipt, err := s.kv.BatchSet(pairs)
	if err != nil {
		writeVdbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state_root":        hex.EncodeToString(receipt.StateRoot[:]),
		"latest_event_hash": hex.EncodeToString(receipt.LatestEventHash[:]),
		"batch_hash":        hex.EncodeToString(receipt.BatchHash[:]),
		"signature":         base64.StdEncoding.EncodeToString(receipt.Signature),
		"op_count":          receipt.OpCount,
	})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp := s.kv.Checkpoint()
	writeJSON(w, http.StatusOK, map[string]any{
		"state_root":        hex.EncodeToString(cp.StateRoot[:]),
		"latest_event_hash": hex.EncodeToString(cp.LatestEventHash[:]),
		"verifying_key":     base64.StdEncoding.EncodeToString(s.kv.VerifyingKey()),
	})
}

func (s *Server) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key       string   `json:"key"`
		Value     *string  `json:"value"` // base64, nil for an absence proof
		StateRoot string   `json:"state_root"`
		Siblings  []string `json:"siblings"` // hex, leaf-to-root
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "PARSE_ERROR")
		return
	}

	var value []byte
	if body.Value != nil {
		decoded, err := base64.StdEncoding.DecodeString(*body.Value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "value must be base64", "VALIDATION_ERROR")
			return
		}
		value = decoded
	}

	rootBytes, err := hex.DecodeString(body.StateRoot)
	if err != nil || len(rootBytes) != 32 {
		writeError(w, http.StatusBadRequest, "state_root must be 32 bytes hex", "VALIDATION_ERROR")
		return
	}
	var root vdb.Hash32
	copy(root[:], rootBytes)

	siblings := make([]vdb.Hash32, len(body.Siblings))
	for i, sibHex := range body.Siblings {
		b, err := hex.DecodeString(sibHex)
		if err != nil || len(b) != 32 {
			writeError(w, http.StatusBadRequest, "each sibling must be 32 bytes hex", "VALIDATION_ERROR")
			return
		}
		copy(siblings[i][:], b)
	}

	ok := vdb.VerifyProofForKey(vdb.MerkleProof256{Siblings: siblings}, []byte(body.Key), value, root)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

func encodeReceipt(r vdb.WriteReceipt) map[string]any {
	return map[string]any{
		"key":        string(r.Key),
		"value_hash": hex.EncodeToString(r.ValueHash[:]),
		"state_root": hex.EncodeToString(r.StateRoot[:]),
		"event_hash": hex.EncodeToString(r.EventHash[:]),
		"signature":  base64.StdEncoding.EncodeToString(r.Signature),
	}
}

func encodeReadResult(r vdb.ReadResult) map[string]any {
	out := map[string]any{
		"key":        string(r.Key),
		"value_hash": hex.EncodeToString(r.ValueHash[:]),
		"state_root": hex.EncodeToString(r.StateRoot[:]),
	}
	if r.Value != nil {
		out["value"] = base64.StdEncoding.EncodeToString(r.Value)
	}
	siblings := make([]string, len(r.Proof.Siblings))
	for i, sib := range r.Proof.Siblings {
		siblings[i] = hex.EncodeToString(sib[:])
	}
	out["proof"] = map[string]any{"siblings": siblings}
	return out
}
