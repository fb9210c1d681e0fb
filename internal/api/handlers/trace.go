package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/tracering"
	"github.com/go-chi/chi/v5"
)

// TraceHandler exposes TraceRing queries under /v1/traces.
type TraceHandler struct {
	store *tracering.Store
}

func NewTraceHandler(store *tracering.Store) *TraceHandler {
	return &TraceHandler{store: store}
}

type traceResponse struct {
	ID              string            `json:"id"`
	TS              string            `json:"ts"`
	Method          string            `json:"method"`
	Path            string            `json:"path"`
	Status          int               `json:"status"`
	LatencyMS       int64             `json:"latency_ms"`
	IP              string            `json:"ip"`
	UserAgent       string            `json:"user_agent"`
	HeadersScrubbed map[string]string `json:"headers_scrubbed,omitempty"`
	QueryParams     map[string]string `json:"query_params,omitempty"`
	BodySHA256      string            `json:"body_sha256"`
	SessionID       string            `json:"session_id,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func traceToResponse(t domain.Trace) traceResponse {
	return traceResponse{
		ID:              t.ID,
		TS:              t.TS.Format(time.RFC3339Nano),
		Method:          t.Method,
		Path:            t.Path,
		Status:          t.Status,
		LatencyMS:       t.LatencyMS,
		IP:              t.IP,
		UserAgent:       t.UserAgent,
		HeadersScrubbed: t.HeadersScrubbed,
		QueryParams:     t.QueryParams,
		BodySHA256:      t.BodySHA256,
		SessionID:       t.SessionID,
		Error:           t.Error,
	}
}

// List implements GET /v1/traces[?since=&status=&path_prefix=&has_error=&limit=].
func (h *TraceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var filters tracering.Filters
	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filters.Since = ts
	}
	if status := q.Get("status"); status != "" {
		v, err := strconv.Atoi(status)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "status must be an integer")
			return
		}
		filters.Status = v
	}
	filters.PathPrefix = q.Get("path_prefix")
	if hasErr := q.Get("has_error"); hasErr != "" {
		v, err := strconv.ParseBool(hasErr)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "has_error must be a boolean")
			return
		}
		filters.HasError = v
	}

	limit := 100
	if l := q.Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = v
	}

	traces, err := h.store.List(r.Context(), filters, limit)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	out := make([]traceResponse, 0, len(traces))
	for _, t := range traces {
		out = append(out, traceToResponse(t))
	}
	api.Success(w, http.StatusOK, out)
}

// Get implements GET /v1/traces/{id}.
func (h *TraceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trace, err := h.store.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}
	api.Success(w, http.StatusOK, traceToResponse(*trace))
}
