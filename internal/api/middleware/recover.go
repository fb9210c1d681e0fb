package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/cloo-solutions/kbcore/internal/api"
)

// Recover turns a panic anywhere downstream into a 500 response instead of
// crashing the process. It must wrap SentryMiddleware from the outside:
// SentryMiddleware re-panics after reporting so an enclosing recoverer can
// still convert it into a response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("panic_recovered: %v\n%s", err, debug.Stack())
				api.Error(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
