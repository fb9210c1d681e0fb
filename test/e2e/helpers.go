//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/cloo-solutions/kbcore/internal/config"
	"github.com/cloo-solutions/kbcore/internal/server"
	"github.com/cloo-solutions/kbcore/internal/services"
)

// E2EEnv wraps a fully-wired Services aggregate behind an in-process HTTP
// test server, using the file storage backend so no external database or
// object store is required to exercise spec.md §8's literal scenarios.
type E2EEnv struct {
	T       *testing.T
	Server  *httptest.Server
	Svc     *services.Services
	APIKey  string
	rootDir string
}

// SetupE2EEnv constructs a Services aggregate over a temp-dir file backend
// and starts an httptest.Server fronting server.NewRouter(svc).
func SetupE2EEnv(t *testing.T) *E2EEnv {
	t.Helper()
	root, err := os.MkdirTemp("", "kbcore-e2e-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	cfg := &config.Config{
		Port:               "0",
		StorageType:        "file",
		StorageRoot:        root,
		AuthSigningKey:     "e2e-signing-key",
		APIKey:             "e2e-api-key",
		MaxRequestBytes:    10 * 1024 * 1024,
		TraceMaxRecords:    1000,
		TraceMaxAgeSeconds: 86400,
		SessionDBPath:      root + "/sessions.db",
		TraceDBPath:        root + "/traces.db",
		CompleterModel:     "gpt-4o-mini",
		EmbedderModel:      "text-embedding-3-small",
	}

	svc, err := services.New(context.Background(), cfg)
	if err != nil {
		os.RemoveAll(root)
		t.Fatalf("failed to construct services: %v", err)
	}

	ts := httptest.NewServer(server.NewRouter(svc))

	env := &E2EEnv{T: t, Server: ts, Svc: svc, APIKey: cfg.APIKey, rootDir: root}
	t.Cleanup(env.Cleanup)
	return env
}

// Cleanup tears down the test server, Services, and temp storage root.
func (e *E2EEnv) Cleanup() {
	e.Server.Close()
	e.Svc.Close()
	os.RemoveAll(e.rootDir)
}

// apiResponse mirrors internal/api's SuccessResponse envelope for tests
// that only need the raw Data payload.
type apiResponse struct {
	Data json.RawMessage `json:"data"`
}

func (e *E2EEnv) do(method, path string, body io.Reader, contentType string) (*http.Response, []byte, error) {
	req, err := http.NewRequest(method, e.Server.URL+path, body)
	if err != nil {
		return nil, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-API-Key", e.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return resp, raw, err
}

// Get issues an authenticated GET and unmarshals the response envelope's
// Data field into out (if non-nil).
func (e *E2EEnv) Get(path string, out any) (*http.Response, error) {
	resp, raw, err := e.do(http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	return resp, decodeInto(raw, out)
}

// Post issues an authenticated POST with a JSON body.
func (e *E2EEnv) Post(path string, body any, out any) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, raw, err := e.do(http.MethodPost, path, bytes.NewReader(encoded), "application/json")
	if err != nil {
		return nil, err
	}
	return resp, decodeInto(raw, out)
}

// Delete issues an authenticated DELETE.
func (e *E2EEnv) Delete(path string) (*http.Response, error) {
	resp, _, err := e.do(http.MethodDelete, path, nil, "")
	return resp, err
}

// UploadDocument issues the multipart POST /v1/projects/{pid}/documents.
func (e *E2EEnv) UploadDocument(pid, filename, mime string, content []byte, out any) (*http.Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {mime},
	})
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	resp, raw, err := e.do(http.MethodPost, fmt.Sprintf("/v1/projects/%s/documents", pid), &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return resp, decodeInto(raw, out)
}

func decodeInto(raw []byte, out any) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
