package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cloo-solutions/kbcore/internal/tracering"
)

type accessLogEntry struct {
	Timestamp  string `json:"ts"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Status     int    `json:"status"`
	Bytes      int    `json:"bytes"`
	DurationMS int64  `json:"duration_ms"`
	RequestID  string `json:"request_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Trace emits a structured access-log line and, when store is non-nil,
// appends a domain.Trace record built via tracering.BuildTrace — the C10
// ingestion point for every request, auth failures included.
func Trace(store *tracering.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			var bodyCopy []byte
			if r.Body != nil {
				bodyCopy, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(bodyCopy))
			}

			ctx, handlerErr := tracering.ContextWithHandlerErrorSlot(r.Context())
			r = r.WithContext(ctx)

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			sessionID := GetSessionID(r.Context())
			if sessionID == "" {
				sessionID = r.Header.Get("X-Session-ID")
			}

			entry := accessLogEntry{
				Timestamp:  start.UTC().Format(time.RFC3339Nano),
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     status,
				Bytes:      rec.bytes,
				DurationMS: time.Since(start).Milliseconds(),
				RequestID:  GetRequestID(r.Context()),
				SessionID:  sessionID,
				RemoteAddr: clientIP(r),
				UserAgent:  r.UserAgent(),
			}

			payload, err := json.Marshal(entry)
			if err != nil {
				log.Printf("access_log_marshal_error: %v", err)
			} else {
				log.Println(string(payload))
			}

			if store == nil {
				return
			}
			trace := tracering.BuildTrace(r, bodyCopy, status, start, sessionID, *handlerErr)
			if err := store.Append(context.Background(), trace); err != nil {
				log.Printf("trace_append_error: %v", err)
			}
		})
	}
}

func clientIP(r *http.Request) string {
	return tracering.ClientIP(r)
}
