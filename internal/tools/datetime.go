package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
)

// referenceLayoutTokens are the Go reference-time (Mon Jan 2 15:04:05 MST
// 2006) layout elements. time.Time.Format never errors on an unrecognized
// layout string — unlike Python's strftime, it just emits the string
// literally — so a custom "format" parameter is validated against this set
// instead, to give the invalid-format path spec.md §4.7 requires.
var referenceLayoutTokens = []string{
	"2006", "06", "January", "Jan", "01", "1",
	"Monday", "Mon", "02", "_2", "2",
	"15", "03", "3", "04", "4", "05", "5",
	"PM", "pm", "MST", "Z07:00", "-07:00", "-0700", "-07", ".000", ".999",
}

// DateTimeTool answers the current UTC time, optionally formatted with a
// caller-supplied Go reference-time layout. The orchestrator invokes it
// without params whenever the query's keyword heuristic detects a
// time-related question.
type DateTimeTool struct {
	now func() time.Time
}

// NewDateTimeTool creates a DateTimeTool reading the real clock.
func NewDateTimeTool() *DateTimeTool {
	return &DateTimeTool{now: time.Now}
}

func (t *DateTimeTool) Name() string { return "datetime" }

func (t *DateTimeTool) Description() string {
	return "get the current date and time in UTC"
}

func (t *DateTimeTool) ParameterSchema() []domain.ParameterSchema {
	return []domain.ParameterSchema{
		{
			Name:        "format",
			Type:        "string",
			Required:    false,
			Default:     time.RFC3339,
			Description: "optional Go reference-time layout (e.g. \"2006-01-02\", \"Jan 2, 2006\"); defaults to RFC3339",
		},
	}
}

func (t *DateTimeTool) Execute(ctx context.Context, params map[string]any) domain.ToolResult {
	return runTimed(func() (map[string]any, error) {
		now := t.now().UTC()

		layout := time.RFC3339
		formatUsed := "RFC3339"
		if raw, ok := params["format"]; ok && raw != nil {
			format, ok := raw.(string)
			if !ok || strings.TrimSpace(format) == "" {
				return nil, fmt.Errorf("invalid datetime format: %v", raw)
			}
			if !isValidReferenceLayout(format) {
				return nil, fmt.Errorf("invalid datetime format %q", format)
			}
			layout = format
			formatUsed = format
		}

		return map[string]any{
			"current_datetime": now.Format(layout),
			"iso_format":       now.Format(time.RFC3339),
			"year":             now.Year(),
			"month":            int(now.Month()),
			"day":              now.Day(),
			"hour":             now.Hour(),
			"minute":           now.Minute(),
			"weekday":          now.Weekday().String(),
			"format_used":      formatUsed,
		}, nil
	})
}

// isValidReferenceLayout reports whether layout contains at least one
// recognized Go reference-time element.
func isValidReferenceLayout(layout string) bool {
	for _, tok := range referenceLayoutTokens {
		if strings.Contains(layout, tok) {
			return true
		}
	}
	return false
}
