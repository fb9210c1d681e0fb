package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedDateTimeTool(ts time.Time) *DateTimeTool {
	return &DateTimeTool{now: func() time.Time { return ts }}
}

func TestDateTimeTool_DefaultsToRFC3339(t *testing.T) {
	tool := fixedDateTimeTool(time.Date(2026, 8, 6, 15, 4, 5, 0, time.UTC))

	result := tool.Execute(context.Background(), nil)

	assert.True(t, result.Success)
	assert.Equal(t, "2026-08-06T15:04:05Z", result.Data["iso_format"])
	assert.Equal(t, "2026-08-06T15:04:05Z", result.Data["current_datetime"])
	assert.Equal(t, "RFC3339", result.Data["format_used"])
}

func TestDateTimeTool_CustomFormat(t *testing.T) {
	tool := fixedDateTimeTool(time.Date(2026, 8, 6, 15, 4, 5, 0, time.UTC))

	result := tool.Execute(context.Background(), map[string]any{"format": "2006-01-02"})

	assert.True(t, result.Success)
	assert.Equal(t, "2026-08-06", result.Data["current_datetime"])
	assert.Equal(t, "2026-08-06T15:04:05Z", result.Data["iso_format"])
	assert.Equal(t, "2006-01-02", result.Data["format_used"])
}

func TestDateTimeTool_InvalidFormatFails(t *testing.T) {
	tool := fixedDateTimeTool(time.Now())

	result := tool.Execute(context.Background(), map[string]any{"format": "not a time layout"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid datetime format")
}

func TestDateTimeTool_NonStringFormatFails(t *testing.T) {
	tool := fixedDateTimeTool(time.Now())

	result := tool.Execute(context.Background(), map[string]any{"format": 42})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid datetime format")
}

func TestDateTimeTool_ParameterSchemaDeclaresFormat(t *testing.T) {
	tool := NewDateTimeTool()
	schema := tool.ParameterSchema()

	assert.Len(t, schema, 1)
	assert.Equal(t, "format", schema[0].Name)
	assert.False(t, schema[0].Required)
}
