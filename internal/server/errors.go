package server

import (
	"net/http"

	"github.com/user/vkv/internal/jobstore"
	"github.com/user/vkv/internal/vdb"
)

// writeJobStoreError maps a jobstore error to an HTTP response.
func writeJobStoreError(w http.ResponseWriter, err error) {
	switch {
	case jobstore.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case jobstore.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error(), "CONFLICT")
	case jobstore.IsBadRequest(err):
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

// writeVdbError maps a vdb engine error to an HTTP response.
func writeVdbError(w http.ResponseWriter, err error) {
	switch {
	case vdb.IsInvalidProof(err):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PROOF")
	case vdb.IsSerializationError(err):
		writeError(w, http.StatusBadRequest, err.Error(), "SERIALIZATION")
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), "STORAGE")
	}
}
