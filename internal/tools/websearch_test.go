package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSearchToolParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Go Docs", "content": "The Go programming language", "url": "https://go.dev", "engines": []string{"duckduckgo"}},
			},
		})
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL, 100, 5)
	result := tool.Execute(context.Background(), map[string]any{"query": "golang"})

	require.True(t, result.Success)
	results, ok := result.Data["results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "Go Docs", results[0]["title"])
}

func TestWebSearchToolRetriesOn202(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": []map[string]any{}})
	}))
	defer srv.Close()

	tool := NewWebSearchTool(srv.URL, 100, 5)
	result := tool.Execute(context.Background(), map[string]any{"query": "retry me"})

	require.True(t, result.Success)
	assert.Equal(t, 2, attempts)
}

func TestWebSearchToolRejectsEmptyQuery(t *testing.T) {
	tool := NewWebSearchTool("", 100, 5)
	result := tool.Execute(context.Background(), map[string]any{"query": "  "})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "empty")
}
