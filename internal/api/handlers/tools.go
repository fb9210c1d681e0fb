package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/tools"
	"github.com/go-chi/chi/v5"
)

// ToolsHandler exposes tool listing and direct invocation under /v1/tools.
type ToolsHandler struct {
	registry *tools.Registry
}

func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

type parameterSchemaResponse struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description,omitempty"`
}

type toolInfoResponse struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Parameters  []parameterSchemaResponse `json:"parameters"`
	Enabled     bool                      `json:"enabled"`
}

func toolInfoToResponse(info domain.ToolInfo) toolInfoResponse {
	params := make([]parameterSchemaResponse, 0, len(info.Parameters))
	for _, p := range info.Parameters {
		params = append(params, parameterSchemaResponse{
			Name:        p.Name,
			Type:        p.Type,
			Required:    p.Required,
			Default:     p.Default,
			Enum:        p.Enum,
			Description: p.Description,
		})
	}
	return toolInfoResponse{
		Name:        info.Name,
		Description: info.Description,
		Parameters:  params,
		Enabled:     info.Enabled,
	}
}

// List implements GET /v1/tools.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.Info()
	out := make([]toolInfoResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, toolInfoToResponse(info))
	}
	api.Success(w, http.StatusOK, out)
}

type invokeRequest struct {
	Parameters map[string]any `json:"parameters"`
}

type invokeResponse struct {
	Success       bool           `json:"success"`
	Data          map[string]any `json:"data,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime float64        `json:"execution_time"`
}

// Invoke implements POST /v1/tools/{name}.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req invokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.registry.Execute(r.Context(), name, req.Parameters)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusOK, invokeResponse{
		Success:       result.Success,
		Data:          result.Data,
		Error:         result.Error,
		ExecutionTime: result.ExecutionTime,
	})
}
