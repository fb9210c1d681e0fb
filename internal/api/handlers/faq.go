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

// FAQHandler exposes FAQ CRUD under /v1/projects/{pid}/faqs.
type FAQHandler struct {
	api   *contentapi.ContentAPI
	store storage.Storage
}

func NewFAQHandler(capi *contentapi.ContentAPI, store storage.Storage) *FAQHandler {
	return &FAQHandler{api: capi, store: store}
}

type faqRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type faqResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

func faqToResponse(f *domain.FAQ) faqResponse {
	return faqResponse{
		ID:        f.ID,
		ProjectID: f.ProjectID,
		Question:  f.Question,
		Answer:    f.Answer,
		Source:    string(f.Source),
		CreatedAt: f.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// List implements GET /v1/projects/{pid}/faqs.
func (h *FAQHandler) List(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	faqs, err := h.store.ListFAQs(r.Context(), pid)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	out := make([]faqResponse, 0, len(faqs))
	for _, f := range faqs {
		out = append(out, faqToResponse(f))
	}
	api.Success(w, http.StatusOK, out)
}

// Add implements POST /v1/projects/{pid}/faqs.
func (h *FAQHandler) Add(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req faqRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" || req.Answer == "" {
		api.HandleError(w, r, domain.ErrMissingRequiredField)
		return
	}

	faq, err := h.api.AddFAQ(r.Context(), pid, req.Question, req.Answer)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, faqToResponse(faq))
}

// Delete implements DELETE /v1/projects/{pid}/faqs/{id}.
func (h *FAQHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	id := chi.URLParam(r, "id")

	removed, err := h.api.DeleteFAQ(r.Context(), pid, id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	if !removed {
		api.HandleError(w, r, domain.ErrFAQNotFound)
		return
	}
	api.Success(w, http.StatusNoContent, nil)
}
