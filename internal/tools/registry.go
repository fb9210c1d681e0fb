package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloo-solutions/kbcore/internal/domain"
)

// Registry holds the enabled/disabled set of available Tools and dispatches
// by name. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	enabled map[string]bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), enabled: make(map[string]bool)}
}

// NewDefaultRegistry creates a Registry pre-populated with datetime and
// web_search, both enabled.
func NewDefaultRegistry(webSearchBaseURL string) *Registry {
	r := NewRegistry()
	r.Register(NewDateTimeTool())
	r.Register(NewWebSearchTool(webSearchBaseURL, 1, 3))
	return r
}

// Register adds or replaces a tool, enabled by default.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.enabled[t.Name()] = true
}

// Unregister removes a tool entirely.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.enabled, name)
}

// SetEnabled toggles a registered tool without removing it.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; ok {
		r.enabled[name] = enabled
	}
}

// List returns the names of every enabled tool.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		if r.enabled[name] {
			names = append(names, name)
		}
	}
	return names
}

// Info returns the static description of every enabled tool.
func (r *Registry) Info() []domain.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]domain.ToolInfo, 0, len(r.tools))
	for name, t := range r.tools {
		if !r.enabled[name] {
			continue
		}
		infos = append(infos, domain.ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.ParameterSchema(),
			Enabled:     true,
		})
	}
	return infos
}

// Execute dispatches to a registered, enabled tool. A missing or disabled
// tool is a domain error; a tool that errors during execution is reported
// as a failed domain.ToolResult, not propagated as a Go error, so the
// orchestrator can fall back gracefully rather than abort the whole query.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (domain.ToolResult, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	enabled := r.enabled[name]
	r.mu.RUnlock()

	if !ok {
		return domain.ToolResult{}, domain.ErrToolNotFound
	}
	if !enabled {
		return domain.ToolResult{}, domain.NewDomainError(domain.KindToolFailure, fmt.Sprintf("tool %q is disabled", name))
	}
	return t.Execute(ctx, params), nil
}

// datetimeKeywords and webSearchKeywords drive SuggestTools' deterministic
// keyword heuristic. Datetime is checked first and is mutually exclusive
// with web_search so a question like "what time is it" doesn't also trigger
// a search.
var datetimeKeywords = []string{
	"time", "date", "when", "today", "now", "current",
	"year", "month", "day", "hour", "minute", "clock",
	"calendar", "schedule", "deadline",
}

var webSearchKeywords = []string{
	"search", "find", "look up", "latest", "recent", "news", "update",
	"website", "online", "internet", "web", "google", "how to", "where", "why",
}

var questionPrefixes = []string{"what", "who", "where", "why", "how"}

// SuggestTools returns the ordered list of tool names to invoke for query,
// per the deterministic keyword heuristic: datetime keywords take priority
// and, if matched, suppress web_search for the same query.
func SuggestTools(query string) []string {
	lower := strings.ToLower(query)

	if containsAny(lower, datetimeKeywords) {
		return []string{"datetime"}
	}

	if containsAny(lower, webSearchKeywords) || hasPrefix(lower, questionPrefixes) {
		return []string{"web_search"}
	}
	return nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
