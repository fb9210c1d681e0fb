package handlers

import (
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/indexmanager"
	"github.com/go-chi/chi/v5"
)

// IndexHandler exposes rebuild-trigger and build-status over IndexManager.
type IndexHandler struct {
	manager *indexmanager.Manager
}

func NewIndexHandler(manager *indexmanager.Manager) *IndexHandler {
	return &IndexHandler{manager: manager}
}

type buildStateResponse struct {
	ProjectID      string `json:"project_id"`
	CurrentVersion uint64 `json:"current_version"`
	TargetVersion  uint64 `json:"target_version"`
	Building       bool   `json:"building"`
	LastError      string `json:"last_error,omitempty"`
}

func buildStateToResponse(s domain.BuildState) buildStateResponse {
	return buildStateResponse{
		ProjectID:      s.ProjectID,
		CurrentVersion: s.CurrentVersion,
		TargetVersion:  s.TargetVersion,
		Building:       s.Building,
		LastError:      s.LastError,
	}
}

// Rebuild implements POST /v1/projects/{pid}/rebuild-indexes. It marks the
// project dirty and returns immediately with the resulting build state; the
// rebuild itself runs asynchronously on IndexManager's worker.
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	h.manager.MarkDirty(pid)
	api.Success(w, http.StatusAccepted, buildStateToResponse(h.manager.Status(pid)))
}

// Status implements GET /v1/projects/{pid}/build-status.
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	api.Success(w, http.StatusOK, buildStateToResponse(h.manager.Status(pid)))
}
