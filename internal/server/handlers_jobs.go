package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/user/vkv/internal/jobstore"
)

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req jobstore.EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", "PARSE_ERROR")
		return
	}
	if req.Kind == "" || req.Queue == "" {
		writeError(w, http.StatusBadRequest, "kind and queue are required", "VALIDATION_ERROR")
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage(`{}`)
	}

	result, err := s.jobs.Enqueue(req)
	if err != nil {
		writeJobStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.jobs.GetJob(id)
	if err != nil {
		writeJobStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	events, err := s.jobs.JobEvents(id)
	if err != nil {
		writeJobStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycleVerb(w, r, s.jobs.Cancel)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycleVerb(w, r, s.jobs.Retry)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycleVerb(w, r, s.jobs.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycleVerb(w, r, s.jobs.Resume)
}

func (s *Server) handleLifecycleVerb(w http.ResponseWriter, r *http.Request, verb func(string) (jobstore.LifecycleResult, error)) {
	id := chi.URLParam(r, "id")
	result, err := verb(id)
	if err != nil {
		writeJobStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}
