package tracering

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
	"github.com/google/uuid"
)

var scrubbedHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
}

type handlerErrKey struct{}

// ContextWithHandlerErrorSlot installs an empty error-text holder into ctx;
// WithHandlerError fills it in from inside a handler, and BuildTrace's
// caller reads it back out once the handler has returned.
func ContextWithHandlerErrorSlot(ctx context.Context) (context.Context, *string) {
	holder := new(string)
	return context.WithValue(ctx, handlerErrKey{}, holder), holder
}

// WithHandlerError records err's text into the slot installed by
// ContextWithHandlerErrorSlot, so the access-log middleware can attach it to
// the request's Trace record without depending on the api package.
func WithHandlerError(r *http.Request, err error) {
	if err == nil {
		return
	}
	if holder, ok := r.Context().Value(handlerErrKey{}).(*string); ok {
		*holder = err.Error()
	}
}

// BuildTrace assembles a domain.Trace for a completed request, scrubbing
// sensitive headers and hashing (never storing) the request body.
func BuildTrace(req *http.Request, body []byte, status int, started time.Time, sessionID, handlerErr string) domain.Trace {
	sum := sha256.Sum256(body)

	headers := make(map[string]string, len(req.Header))
	for name, values := range req.Header {
		if scrubbedHeaders[strings.ToLower(name)] {
			continue
		}
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	query := make(map[string]string, len(req.URL.Query()))
	for name, values := range req.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	return domain.Trace{
		ID:              "trace_" + uuid.NewString(),
		TS:              started.UTC(),
		Method:          req.Method,
		Path:            req.URL.Path,
		Status:          status,
		LatencyMS:       time.Since(started).Milliseconds(),
		IP:              ClientIP(req),
		UserAgent:       req.UserAgent(),
		HeadersScrubbed: headers,
		QueryParams:     query,
		BodySHA256:      hex.EncodeToString(sum[:]),
		SessionID:       sessionID,
		Error:           handlerErr,
	}
}

// ClientIP prefers forwarding headers, falling back to the socket's
// remote address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
