package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"golang.org/x/time/rate"
)

const (
	webSearchUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0 Safari/537.36"
	webSearchMaxAttempts = 3
	webSearchTimeout     = 10 * time.Second
)

// searchResult is one entry of a SearX JSON response, mapped to the subset
// of fields surfaced to the orchestrator.
type searchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// WebSearchTool queries a public SearX instance. It is throttled
// independently of any per-request-IP limiter the transport layer applies,
// since a single slow orchestrator query can otherwise fan out many
// upstream searches.
type WebSearchTool struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebSearchTool creates a WebSearchTool allowing at most burst calls
// immediately, refilling at perSecond calls/sec thereafter.
func NewWebSearchTool(baseURL string, perSecond float64, burst int) *WebSearchTool {
	if baseURL == "" {
		baseURL = "https://searx.be/search"
	}
	return &WebSearchTool{
		baseURL: baseURL,
		client:  &http.Client{Timeout: webSearchTimeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "search the web for information not found in the knowledge base"
}

func (t *WebSearchTool) ParameterSchema() []domain.ParameterSchema {
	return []domain.ParameterSchema{
		{Name: "query", Type: "string", Required: true, Description: "the search query string"},
		{Name: "max_results", Type: "number", Required: false, Default: 5, Description: "maximum number of results to return"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) domain.ToolResult {
	return runTimed(func() (map[string]any, error) {
		query, _ := params["query"].(string)
		if strings.TrimSpace(query) == "" {
			return nil, fmt.Errorf("search query cannot be empty")
		}
		maxResults := 5
		if v, ok := params["max_results"].(int); ok && v > 0 {
			maxResults = v
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		results, err := t.search(ctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, len(results))
		for i, r := range results {
			out[i] = map[string]any{"title": r.Title, "snippet": r.Snippet, "url": r.URL, "source": r.Source}
		}
		return map[string]any{
			"query":         query,
			"results":       out,
			"total_results": len(out),
		}, nil
	})
}

func (t *WebSearchTool) search(ctx context.Context, query string, maxResults int) ([]searchResult, error) {
	reqURL, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, err
	}
	q := reqURL.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("language", "en")
	reqURL.RawQuery = q.Encode()

	var body []byte
	for attempt := 0; attempt < webSearchMaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", webSearchUserAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			return searchUnavailable(query), nil
		}
		status := resp.StatusCode
		b, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}

		if status == http.StatusOK {
			body = b
			break
		}
		if status == http.StatusAccepted {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return nil, fmt.Errorf("search service returned status %d", status)
	}
	if body == nil {
		return nil, fmt.Errorf("search service did not respond after %d attempts", webSearchMaxAttempts)
	}

	var payload struct {
		Results []struct {
			Title   string   `json:"title"`
			Content string   `json:"content"`
			URL     string   `json:"url"`
			Engines []string `json:"engines"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	results := make([]searchResult, 0, maxResults)
	for _, item := range payload.Results {
		results = append(results, searchResult{
			Title:   item.Title,
			Snippet: item.Content,
			URL:     item.URL,
			Source:  strings.Join(item.Engines, ", "),
		})
		if len(results) >= maxResults {
			break
		}
	}
	if len(results) == 0 {
		results = append(results, searchResult{
			Title:   fmt.Sprintf("Search for: %s", query),
			Snippet: fmt.Sprintf("No results found for %q.", query),
			URL:     reqURL.String(),
			Source:  "no results",
		})
	}
	return results, nil
}

func searchUnavailable(query string) []searchResult {
	return []searchResult{{
		Title:   "Search Service Unavailable",
		Snippet: fmt.Sprintf("Web search is currently unavailable. For information about %q, check the knowledge base or contact support directly.", query),
		Source:  "error",
	}}
}
