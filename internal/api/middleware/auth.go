package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// AuthValidator is the narrow capability AuthGate offers the transport
// layer: verify a bearer token and/or api key and return the resulting
// session.
type AuthValidator interface {
	Authenticate(ctx context.Context, bearerToken, apiKey string) (*domain.Session, domain.AuthMethod, error)
}

// RequireAuth enforces AuthGate verification on every /v1/* route per
// spec.md §6, precedence bearer-then-api-key. On success it stores the
// resolved domain.Session in context and mirrors its id onto the request's
// own Header map so outer middleware (Trace) can read it even though it
// only ever sees the pre-chain *http.Request value.
func RequireAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := bearerToken(r)
			apiKey := r.Header.Get("X-API-Key")

			sess, _, err := validator.Authenticate(r.Context(), bearer, apiKey)
			if err != nil {
				api.HandleError(w, r, err)
				return
			}

			r.Header.Set("X-Session-ID", sess.ID)
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope wraps a handler so it 403s unless the authenticated session
// (already placed in context by RequireAuth) carries scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := GetSession(r.Context())
			if sess == nil || !sess.HasScope(scope) {
				api.HandleError(w, r, domain.ErrInsufficientScope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// GetSession returns the authenticated session from context, or nil.
func GetSession(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionKey).(*domain.Session)
	return sess
}

// GetSessionID is a convenience accessor used by logging/tracing middleware.
func GetSessionID(ctx context.Context) string {
	if sess := GetSession(ctx); sess != nil {
		return sess.ID
	}
	return ""
}
