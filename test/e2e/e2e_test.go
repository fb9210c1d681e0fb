//go:build e2e

package e2e

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_ASPCAScenario walks spec.md §8's literal end-to-end scenario:
// project creation, FAQ ingestion, query retrieval, document upload, the
// datetime tool heuristic, and FAQ deletion dropping out of retrieval.
func TestE2E_ASPCAScenario(t *testing.T) {
	env := SetupE2EEnv(t)

	var project struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	resp, err := env.Post("/v1/projects", map[string]any{"id": "95", "name": "ASPCA"}, &project)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "95", project.ID)
	assert.True(t, project.Active)

	var projects []struct {
		ID string `json:"id"`
	}
	resp, err = env.Get("/v1/projects", &projects)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	found := false
	for _, p := range projects {
		if p.ID == "95" {
			found = true
		}
	}
	assert.True(t, found, "expected project 95 in listing")

	question := "What does ASPCA stand for?"
	answer := "American Society for the Prevention of Cruelty to Animals."
	var faq struct {
		ID       string `json:"id"`
		Question string `json:"question"`
	}
	resp, err = env.Post("/v1/projects/95/faqs", map[string]any{"question": question, "answer": answer}, &faq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	expectedID := identity.Mint("faq", "95", question)
	assert.Equal(t, expectedID, faq.ID)

	waitForBuildVersion(t, env, "95", 1)

	var queryResp struct {
		Answer  string `json:"answer"`
		Sources []struct {
			ID string `json:"id"`
		} `json:"sources"`
	}
	resp, err = env.Post("/v1/query", map[string]any{"project_id": "95", "question": question}, &queryResp)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, queryResp.Sources)
	assert.Equal(t, faq.ID, queryResp.Sources[0].ID)
	assert.Contains(t, queryResp.Answer, "American Society")

	pdfContent := strings.Repeat("The ASPCA policy describes humane treatment standards for sheltered animals across every regional office. ", 40) +
		"\n\n" + strings.Repeat("Intake procedures require a veterinary screening within twenty four hours of arrival. ", 40) +
		"\n\n" + strings.Repeat("Adoption placements follow a two week trial period before finalization. ", 40)

	var upload struct {
		DocumentID        string `json:"document_id"`
		IndexBuildStarted bool   `json:"index_build_started"`
	}
	resp, err = env.UploadDocument("95", "policy.pdf", "application/pdf", []byte(pdfContent), &upload)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, upload.IndexBuildStarted)
	require.NotEmpty(t, upload.DocumentID)

	var kbRecords []struct {
		ID               string `json:"id"`
		ParentDocumentID string `json:"parent_document_id"`
	}
	resp, err = env.Get("/v1/projects/95/kb", &kbRecords)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var childIDs []string
	for _, k := range kbRecords {
		if k.ParentDocumentID == upload.DocumentID {
			childIDs = append(childIDs, k.ID)
		}
	}
	require.GreaterOrEqual(t, len(childIDs), 3, "expected at least 3 chunks from the uploaded document")

	getResp, raw, err := env.do(http.MethodGet, "/v1/projects/95/kb/"+childIDs[0], nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, "application/pdf", getResp.Header.Get("Content-Type"))
	assert.Equal(t, pdfContent, string(raw))

	var timeQuery struct {
		ToolsUsed []struct {
			ToolName string `json:"tool_name"`
			Success  bool   `json:"success"`
		} `json:"tools_used"`
	}
	resp, err = env.Post("/v1/query", map[string]any{"project_id": "95", "question": "What time is it now?"}, &timeQuery)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var sawDatetime bool
	for _, tu := range timeQuery.ToolsUsed {
		if tu.ToolName == "datetime" && tu.Success {
			sawDatetime = true
		}
	}
	assert.True(t, sawDatetime, "expected a successful datetime tool invocation")

	resp, err = env.Delete("/v1/projects/95/faqs/" + faq.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	waitForBuildVersion(t, env, "95", 2)

	var postDeleteQuery struct {
		Sources []struct {
			ID string `json:"id"`
		} `json:"sources"`
	}
	resp, err = env.Post("/v1/query", map[string]any{"project_id": "95", "question": question}, &postDeleteQuery)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, s := range postDeleteQuery.Sources {
		assert.NotEqual(t, faq.ID, s.ID, "deleted FAQ should no longer be retrievable")
	}
}

// TestE2E_AuthModesAndHealth covers the unauthenticated surface and the
// dual credential modes from spec.md §4.9/§6.
func TestE2E_AuthModesAndHealth(t *testing.T) {
	env := SetupE2EEnv(t)

	resp, _, err := env.do(http.MethodGet, "/healthz", nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _, err = env.do(http.MethodGet, "/readyz", nil, "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var modes struct {
		Modes []string `json:"modes"`
	}
	resp, err = env.Get("/v1/auth/modes", &modes)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, modes.Modes, "api_key")
	assert.Contains(t, modes.Modes, "bearer")

	req, err := http.NewRequest(http.MethodGet, env.Server.URL+"/v1/projects", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "missing credential should be unauthenticated")

	var token struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	resp, err = env.Post("/v1/auth/token", map[string]any{"client_name": "e2e-client"}, &token)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, token.Token)

	req, err = http.NewRequest(http.MethodGet, env.Server.URL+"/v1/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "valid bearer token should authenticate")
}

// TestE2E_EmptyUploadRejected exercises the EmptyContent boundary from
// spec.md §8.
func TestE2E_EmptyUploadRejected(t *testing.T) {
	env := SetupE2EEnv(t)

	_, err := env.Post("/v1/projects", map[string]any{"id": "empty-proj", "name": "Empty"}, nil)
	require.NoError(t, err)

	resp, err := env.UploadDocument("empty-proj", "blank.txt", "text/plain", []byte{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func waitForBuildVersion(t *testing.T, env *E2EEnv, pid string, minVersion uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var status struct {
			CurrentVersion uint64 `json:"current_version"`
			Building       bool   `json:"building"`
		}
		if _, err := env.Get("/v1/projects/"+pid+"/build-status", &status); err == nil {
			if status.CurrentVersion >= minVersion && !status.Building {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("project %s did not reach build version %d within deadline", pid, minVersion)
}
