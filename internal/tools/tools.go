// Package tools implements the C7 ToolRegistry: a small fixed set of
// auxiliary capabilities (current time, web search) the QueryOrchestrator
// can invoke alongside retrieval, each wrapped so a failure degrades to a
// failed domain.ToolResult rather than aborting the query.
package tools

import (
	"context"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
)

// Tool is one invocable capability. Name is the stable key the registry and
// the orchestrator's tool-selection heuristic address it by.
type Tool interface {
	Name() string
	Description() string
	ParameterSchema() []domain.ParameterSchema
	Execute(ctx context.Context, params map[string]any) domain.ToolResult
}

// runTimed wraps a tool body, recording ExecutionTime and normalizing a
// returned error into a failed domain.ToolResult. Every concrete Tool's
// Execute should funnel through this so timing and shape stay consistent.
func runTimed(fn func() (map[string]any, error)) domain.ToolResult {
	start := time.Now()
	data, err := fn()
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return domain.ToolResult{Success: false, Error: err.Error(), ExecutionTime: elapsed}
	}
	return domain.ToolResult{Success: true, Data: data, ExecutionTime: elapsed}
}
