package tracering

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, retention Retention) *Store {
	t.Helper()
	store, err := Open("", retention)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTrace(id, path string, status int, ts time.Time) domain.Trace {
	return domain.Trace{
		ID:              id,
		TS:              ts,
		Method:          "GET",
		Path:            path,
		Status:          status,
		LatencyMS:       5,
		IP:              "127.0.0.1",
		UserAgent:       "test-agent",
		HeadersScrubbed: map[string]string{"accept": "application/json"},
		QueryParams:     map[string]string{"k": "v"},
		BodySHA256:      "deadbeef",
		SessionID:       "sess_1",
	}
}

func TestAppendAndGet(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 100})
	trace := sampleTrace("t1", "/v1/query", 200, time.Now().UTC())

	require.NoError(t, store.Append(context.Background(), trace))

	got, err := store.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "/v1/query", got.Path)
	assert.Equal(t, "application/json", got.HeadersScrubbed["accept"])
}

func TestGetMissingIsTraceNotFound(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 100})
	_, err := store.Get(context.Background(), "missing")
	assert.Equal(t, domain.ErrTraceNotFound, err)
}

func TestListFiltersByStatusAndPathPrefix(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 100})
	now := time.Now().UTC()
	require.NoError(t, store.Append(context.Background(), sampleTrace("t1", "/v1/query", 200, now)))
	require.NoError(t, store.Append(context.Background(), sampleTrace("t2", "/v1/content", 500, now.Add(time.Second))))
	require.NoError(t, store.Append(context.Background(), sampleTrace("t3", "/v1/query", 500, now.Add(2*time.Second))))

	results, err := store.List(context.Background(), Filters{Status: 500}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	results, err = store.List(context.Background(), Filters{PathPrefix: "/v1/query"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestListHasErrorFilter(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 100})
	now := time.Now().UTC()
	ok := sampleTrace("t1", "/v1/query", 200, now)
	failed := sampleTrace("t2", "/v1/query", 500, now.Add(time.Second))
	failed.Error = "completer timeout"
	require.NoError(t, store.Append(context.Background(), ok))
	require.NoError(t, store.Append(context.Background(), failed))

	results, err := store.List(context.Background(), Filters{HasError: true}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t2", results[0].ID)
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 100})
	now := time.Now().UTC()
	require.NoError(t, store.Append(context.Background(), sampleTrace("t1", "/v1/query", 200, now)))
	require.NoError(t, store.Append(context.Background(), sampleTrace("t2", "/v1/query", 200, now.Add(time.Second))))

	results, err := store.List(context.Background(), Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t2", results[0].ID)
	assert.Equal(t, "t1", results[1].ID)
}

func TestAppendEvictsBeyondMaxRecords(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 2})
	now := time.Now().UTC()
	require.NoError(t, store.Append(context.Background(), sampleTrace("t1", "/v1/query", 200, now)))
	require.NoError(t, store.Append(context.Background(), sampleTrace("t2", "/v1/query", 200, now.Add(time.Second))))
	require.NoError(t, store.Append(context.Background(), sampleTrace("t3", "/v1/query", 200, now.Add(2*time.Second))))

	results, err := store.List(context.Background(), Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "t3", results[0].ID)
	assert.Equal(t, "t2", results[1].ID)
}

func TestAppendEvictsBeyondMaxAge(t *testing.T) {
	store := newTestStore(t, Retention{MaxRecords: 100, MaxAge: time.Minute})
	old := sampleTrace("old", "/v1/query", 200, time.Now().UTC().Add(-time.Hour))
	fresh := sampleTrace("fresh", "/v1/query", 200, time.Now().UTC())
	require.NoError(t, store.Append(context.Background(), old))
	require.NoError(t, store.Append(context.Background(), fresh))

	results, err := store.List(context.Background(), Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].ID)
}

func TestBuildTraceScrubsSensitiveHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/query?project_id=p1", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-API-Key", "secret-key")
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set("Accept", "application/json")

	trace := BuildTrace(req, []byte(`{"question":"hi"}`), 200, time.Now().UTC(), "sess_1", "")

	_, hasAuth := trace.HeadersScrubbed["Authorization"]
	_, hasKey := trace.HeadersScrubbed["X-Api-Key"]
	_, hasCookie := trace.HeadersScrubbed["Cookie"]
	assert.False(t, hasAuth)
	assert.False(t, hasKey)
	assert.False(t, hasCookie)
	assert.Equal(t, "application/json", trace.HeadersScrubbed["Accept"])
	assert.Equal(t, "p1", trace.QueryParams["project_id"])
	assert.NotEmpty(t, trace.BodySHA256)
}
