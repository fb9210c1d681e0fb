// Package orchestrator implements the C8 QueryOrchestrator: it validates
// the target project, retrieves sources, conditionally invokes tools,
// composes a bounded prompt, calls a pluggable Completer, and assembles the
// final answer with its citations and tool log.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/cloo-solutions/kbcore/internal/retriever"
	"github.com/cloo-solutions/kbcore/internal/storage"
	"github.com/cloo-solutions/kbcore/internal/tools"
)

const (
	defaultMaxSources   = 5
	promptCharCap       = 8000
	sufficiencyFloor    = 1.0 / 30.0
	systemIdentity      = "You are the Knowledge Base AI System, a helpful and knowledgeable assistant. Answer using only the provided knowledge base context and tool results; never invent information that is not present there."
)

var (
	datetimeTokens = map[string]bool{
		"time": true, "date": true, "today": true, "now": true, "current": true,
	}
	webSearchTokens = map[string]bool{
		"latest": true, "news": true, "search": true, "web": true,
	}
)

// Completer synthesizes a final answer from a composed prompt. Returning a
// non-empty model name on success lets the response report which model
// answered; a nil/empty Completer (or any error) triggers the deterministic
// fallback.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (answer, model string, err error)
}

// ToolUsage records one tool invocation for the response's audit trail.
type ToolUsage struct {
	ToolName   string
	Parameters map[string]any
	Result     domain.ToolResult
}

// Request is one query to answer.
type Request struct {
	ProjectID  string
	Question   string
	MaxSources int
	UseTools   bool
}

// Response is the full QueryOrchestrator output.
type Response struct {
	Answer           string
	Sources          []retriever.Source
	ProjectID        string
	Timestamp        time.Time
	ToolsUsed        []ToolUsage
	Model            string
	ProcessingTimeMS int64
}

// Orchestrator is the process-singleton C8 component.
type Orchestrator struct {
	store     storage.Storage
	retriever *retriever.Retriever
	tools     *tools.Registry
	completer Completer
}

// New creates an Orchestrator. completer may be nil, in which case every
// query answers via the deterministic fallback.
func New(store storage.Storage, r *retriever.Retriever, registry *tools.Registry, completer Completer) *Orchestrator {
	return &Orchestrator{store: store, retriever: r, tools: registry, completer: completer}
}

// Answer runs the full pipeline for one query.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (Response, error) {
	proj, err := o.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return Response{}, err
	}
	if !proj.Active {
		return Response{}, domain.ErrProjectNotFound
	}

	maxSources := req.MaxSources
	if maxSources <= 0 {
		maxSources = defaultMaxSources
	}

	started := time.Now()

	sources, err := o.retriever.Retrieve(ctx, req.ProjectID, req.Question, maxSources)
	if err != nil {
		return Response{}, err
	}

	var toolsUsed []ToolUsage
	if req.UseTools {
		toolsUsed = o.runTools(ctx, req.Question, sources)
	}

	systemPrompt, userPrompt := composePrompt(req.Question, sources, toolsUsed)

	answer, model := o.complete(ctx, systemPrompt, userPrompt, sources, toolsUsed)

	return Response{
		Answer:           answer,
		Sources:          sources,
		ProjectID:        req.ProjectID,
		Timestamp:        time.Now().UTC(),
		ToolsUsed:        toolsUsed,
		Model:            model,
		ProcessingTimeMS: time.Since(started).Milliseconds(),
	}, nil
}

// runTools implements spec §4.8 step 3's deterministic keyword heuristic:
// datetime keywords are checked first; web_search additionally requires
// that no source already clears the sufficiency floor. Either tool's
// failure is recorded with success=false and never aborts the query.
func (o *Orchestrator) runTools(ctx context.Context, question string, sources []retriever.Source) []ToolUsage {
	tokens := tokenize(question)

	var usage []ToolUsage

	if intersects(tokens, datetimeTokens) {
		usage = append(usage, o.invoke(ctx, "datetime", nil))
	}

	if intersects(tokens, webSearchTokens) && !sufficientContext(sources) {
		params := map[string]any{"query": question}
		usage = append(usage, o.invoke(ctx, "web_search", params))
	}

	return usage
}

func (o *Orchestrator) invoke(ctx context.Context, name string, params map[string]any) ToolUsage {
	result, err := o.tools.Execute(ctx, name, params)
	if err != nil {
		result = domain.ToolResult{Success: false, Error: err.Error()}
	}
	return ToolUsage{ToolName: name, Parameters: params, Result: result}
}

func sufficientContext(sources []retriever.Source) bool {
	if len(sources) == 0 {
		return false
	}
	return sources[0].Score > sufficiencyFloor
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func intersects(tokens []string, set map[string]bool) bool {
	for _, t := range tokens {
		if set[t] {
			return true
		}
	}
	return false
}

// composePrompt builds the system+user prompt pair, capping total length at
// promptCharCap by dropping earliest source excerpts first.
func composePrompt(question string, sources []retriever.Source, toolsUsed []ToolUsage) (system, user string) {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")

	sourceLines := make([]string, 0, len(sources))
	for i, s := range sources {
		sourceLines = append(sourceLines, fmt.Sprintf("%d. [%s] %s\n   %s", i+1, s.Kind, s.Title, s.Excerpt))
	}

	toolLines := make([]string, 0, len(toolsUsed))
	for _, t := range toolsUsed {
		if !t.Result.Success {
			continue
		}
		toolLines = append(toolLines, fmt.Sprintf("Tool %s: %v", t.ToolName, t.Result.Data))
	}

	for {
		b2 := strings.Builder{}
		b2.WriteString(b.String())
		if len(sourceLines) > 0 {
			b2.WriteString("=== KNOWLEDGE BASE CONTEXT ===\n")
			for _, l := range sourceLines {
				b2.WriteString(l)
				b2.WriteString("\n")
			}
			b2.WriteString("\n")
		}
		if len(toolLines) > 0 {
			b2.WriteString("=== TOOL RESULTS ===\n")
			for _, l := range toolLines {
				b2.WriteString(l)
				b2.WriteString("\n")
			}
		}
		composed := b2.String()
		if len(composed) <= promptCharCap || len(sourceLines) == 0 {
			user = composed
			break
		}
		sourceLines = sourceLines[1:]
	}

	system = systemIdentity
	return system, user
}

// complete calls the Completer; on absence or failure it falls back to a
// deterministic answer built from the top source excerpts.
func (o *Orchestrator) complete(ctx context.Context, system, user string, sources []retriever.Source, toolsUsed []ToolUsage) (string, string) {
	if o.completer != nil {
		answer, model, err := o.completer.Complete(ctx, system, user)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer, model
		}
	}
	return fallbackAnswer(sources, toolsUsed), ""
}

// fallbackAnswer concatenates the top source excerpts, preferring a
// datetime tool result when one succeeded, per the teacher's fallback
// precedence (time-sensitive answers take priority over KB excerpts).
func fallbackAnswer(sources []retriever.Source, toolsUsed []ToolUsage) string {
	for _, t := range toolsUsed {
		if t.ToolName == "datetime" && t.Result.Success {
			iso, _ := t.Result.Data["iso_format"].(string)
			weekday, _ := t.Result.Data["weekday"].(string)
			return fmt.Sprintf("The current date and time is %s (%s). For additional information, please check the sources provided.", iso, weekday)
		}
	}

	if len(sources) == 0 {
		return "I don't have enough information in the knowledge base to answer that. Please try rephrasing or contact support directly."
	}

	top := make([]retriever.Source, len(sources))
	copy(top, sources)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Score > top[j].Score })
	if len(top) > 3 {
		top = top[:3]
	}

	lines := make([]string, 0, len(top)+1)
	lines = append(lines, "Based on the knowledge base, here is what I found:")
	for _, s := range top {
		lines = append(lines, s.Excerpt)
	}
	return strings.Join(lines, "\n")
}
