package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/contentapi"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/storage"
	"github.com/go-chi/chi/v5"
)

// ProjectHandler exposes project lifecycle operations: create/update,
// deactivate, and list.
type ProjectHandler struct {
	api   *contentapi.ContentAPI
	store storage.Storage
}

func NewProjectHandler(capi *contentapi.ContentAPI, store storage.Storage) *ProjectHandler {
	return &ProjectHandler{api: capi, store: store}
}

type projectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type projectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func projectToResponse(p *domain.Project) projectResponse {
	return projectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Active:    p.Active,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// CreateOrUpdate implements POST /v1/projects.
func (h *ProjectHandler) CreateOrUpdate(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" {
		api.HandleError(w, r, domain.ErrMissingRequiredField)
		return
	}

	project, err := h.api.CreateOrUpdateProject(r.Context(), req.ID, req.Name)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, projectToResponse(project))
}

// List implements GET /v1/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectToResponse(p))
	}
	api.Success(w, http.StatusOK, out)
}

// Deactivate implements DELETE /v1/projects/{pid}.
func (h *ProjectHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	if err := h.api.DeactivateProject(r.Context(), pid); err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusNoContent, nil)
}
