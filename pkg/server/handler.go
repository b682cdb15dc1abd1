package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/nodesync/pkg/rpc"
	"github.com/vango-dev/nodesync/pkg/snapshot"
)

// CreateResponse is returned when a UI is created. It carries the changes
// that describe the initial tree.
type CreateResponse struct {
	ID string `json:"id"`
	rpc.Response
}

// RestoreResponse is returned when a UI is restored from a snapshot.
type RestoreResponse struct {
	ID       string             `json:"id"`
	SyncID   int                `json:"syncId"`
	Snapshot *snapshot.Document `json:"snapshot"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uis":    s.manager.Count(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	u, err := s.manager.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := u.Flush()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Debug("ui created", "ui", u.ID())
	writeJSON(w, http.StatusCreated, CreateResponse{ID: u.ID(), Response: resp})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	u, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req rpc.Request
	body := http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpc.Response{
			SyncID: u.SyncID(),
			Error:  "server: invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := u.Handle(r.Context(), req)
	if err != nil && resp.SyncID == 0 {
		s.writeError(w, err)
		return
	}
	writeJSON(w, statusFor(err), resp)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	u, err := s.manager.Restore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := u.Snapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RestoreResponse{ID: u.ID(), SyncID: u.SyncID(), Snapshot: doc})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUINotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUIClosed):
		return http.StatusGone
	case errors.Is(err, ErrMaxUIsReached), errors.Is(err, ErrManagerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrSyncIDAhead):
		return http.StatusConflict
	case errors.Is(err, rpc.ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, rpc.ErrMalformedInvocation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, rpc.Response{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
