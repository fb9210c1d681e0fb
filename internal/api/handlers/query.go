package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/orchestrator"
)

// QueryHandler exposes POST /v1/query over the QueryOrchestrator.
type QueryHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewQueryHandler(o *orchestrator.Orchestrator) *QueryHandler {
	return &QueryHandler{orchestrator: o}
}

type queryRequest struct {
	ProjectID  string `json:"project_id"`
	Question   string `json:"question"`
	MaxSources int    `json:"max_sources"`
	UseTools   *bool  `json:"use_tools"`
}

type sourceResponse struct {
	ID            string  `json:"id"`
	Kind          string  `json:"kind"`
	Title         string  `json:"title"`
	Excerpt       string  `json:"excerpt"`
	Score         float64 `json:"score"`
	AttachmentURL string  `json:"attachment_url,omitempty"`
}

type toolUsageResponse struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

type queryResponse struct {
	Answer           string              `json:"answer"`
	Sources          []sourceResponse    `json:"sources"`
	ProjectID        string              `json:"project_id"`
	Timestamp        string              `json:"timestamp"`
	ToolsUsed        []toolUsageResponse `json:"tools_used"`
	Model            *string             `json:"model"`
	ProcessingTimeMS int64               `json:"processing_time_ms"`
}

// Answer implements POST /v1/query.
func (h *QueryHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID == "" || req.Question == "" {
		api.HandleError(w, r, domain.ErrMissingRequiredField)
		return
	}

	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = 5
	}
	useTools := true
	if req.UseTools != nil {
		useTools = *req.UseTools
	}

	resp, err := h.orchestrator.Answer(r.Context(), orchestrator.Request{
		ProjectID:  req.ProjectID,
		Question:   req.Question,
		MaxSources: maxSources,
		UseTools:   useTools,
	})
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, toQueryResponse(resp))
}

func toQueryResponse(resp orchestrator.Response) queryResponse {
	sources := make([]sourceResponse, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		sources = append(sources, sourceResponse{
			ID:            s.ID,
			Kind:          string(s.Kind),
			Title:         s.Title,
			Excerpt:       s.Excerpt,
			Score:         s.Score,
			AttachmentURL: s.AttachmentURL,
		})
	}

	tools := make([]toolUsageResponse, 0, len(resp.ToolsUsed))
	for _, t := range resp.ToolsUsed {
		tools = append(tools, toolUsageResponse{
			ToolName:   t.ToolName,
			Parameters: t.Parameters,
			Success:    t.Result.Success,
			Error:      t.Result.Error,
		})
	}

	var model *string
	if resp.Model != "" {
		model = &resp.Model
	}

	return queryResponse{
		Answer:           resp.Answer,
		Sources:          sources,
		ProjectID:        resp.ProjectID,
		Timestamp:        resp.Timestamp.Format("2006-01-02T15:04:05Z"),
		ToolsUsed:        tools,
		Model:            model,
		ProcessingTimeMS: resp.ProcessingTimeMS,
	}
}
