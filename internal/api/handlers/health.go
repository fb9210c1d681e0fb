package handlers

import (
	"net/http"

	"github.com/cloo-solutions/kbcore/internal/api"
)

// Healthz reports process liveness with no dependency checks.
func Healthz(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness. It is deliberately dependency-free: the
// storage and index layers have no meaningful probe without a project id,
// so readiness here means only "process initialized".
func Readyz(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
}
