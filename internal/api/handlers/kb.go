package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/contentapi"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/storage"
	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 20 * 1024 * 1024

// KBHandler exposes KB record CRUD and document upload under
// /v1/projects/{pid}/kb and /v1/projects/{pid}/documents.
type KBHandler struct {
	api   *contentapi.ContentAPI
	store storage.Storage
}

func NewKBHandler(capi *contentapi.ContentAPI, store storage.Storage) *KBHandler {
	return &KBHandler{api: capi, store: store}
}

type kbRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type kbResponse struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	ArticleTitle     string `json:"article_title"`
	Content          string `json:"content"`
	Source           string `json:"source"`
	ChunkIndex       int    `json:"chunk_index"`
	ParentDocumentID string `json:"parent_document_id,omitempty"`
	AttachmentID     string `json:"attachment_id,omitempty"`
	CreatedAt        string `json:"created_at"`
}

func kbToResponse(k *domain.KB) kbResponse {
	return kbResponse{
		ID:               k.ID,
		ProjectID:        k.ProjectID,
		ArticleTitle:     k.ArticleTitle,
		Content:          k.Content,
		Source:           string(k.Source),
		ChunkIndex:       k.ChunkIndex,
		ParentDocumentID: k.ParentDocumentID,
		AttachmentID:     k.AttachmentID,
		CreatedAt:        k.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// List implements GET /v1/projects/{pid}/kb.
func (h *KBHandler) List(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	records, err := h.store.ListKB(r.Context(), pid)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	out := make([]kbResponse, 0, len(records))
	for _, k := range records {
		out = append(out, kbToResponse(k))
	}
	api.Success(w, http.StatusOK, out)
}

// Add implements POST /v1/projects/{pid}/kb (single-chunk records only;
// multi-chunk documents go through Upload).
func (h *KBHandler) Add(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req kbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Content == "" {
		api.HandleError(w, r, domain.ErrMissingRequiredField)
		return
	}

	kb, err := h.api.AddKB(r.Context(), pid, req.Title, req.Content)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusCreated, kbToResponse(kb))
}

// Get implements GET /v1/projects/{pid}/kb/{id}: if the record has an
// attachment, streams the original bytes with the attachment's mime type;
// otherwise returns the KB record as JSON.
func (h *KBHandler) Get(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	id := chi.URLParam(r, "id")

	content, err := h.api.GetKB(r.Context(), pid, id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	if content.Attachment != nil {
		w.Header().Set("Content-Type", content.Attachment.Mime)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, content.Attachment.OriginalName))
		w.WriteHeader(http.StatusOK)
		w.Write(content.Attachment.Bytes)
		return
	}

	api.Success(w, http.StatusOK, kbToResponse(content.Record))
}

// Delete implements DELETE /v1/projects/{pid}/kb/{id}.
func (h *KBHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	id := chi.URLParam(r, "id")

	removed, err := h.api.DeleteKB(r.Context(), pid, id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	if !removed {
		api.HandleError(w, r, domain.ErrKBNotFound)
		return
	}
	api.Success(w, http.StatusNoContent, nil)
}

type uploadDocumentResponse struct {
	DocumentID        string `json:"document_id"`
	IndexBuildStarted bool   `json:"index_build_started"`
}

// Upload implements POST /v1/projects/{pid}/documents: a multipart upload
// whose "file" part is extracted into N KB chunks sharing a
// parent_document_id and attachment_id.
func (h *KBHandler) Upload(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	documentID, buildStarted, err := h.api.UploadDocument(r.Context(), pid, bytes, mime, title)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusAccepted, uploadDocumentResponse{
		DocumentID:        documentID,
		IndexBuildStarted: buildStarted,
	})
}
