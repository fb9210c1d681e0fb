package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/authgate"
)

// AuthHandler exposes the unauthenticated credential endpoints: token
// exchange and auth-mode enumeration.
type AuthHandler struct {
	gate       *authgate.Gate
	bearerMode bool
	apiKeyMode bool
}

// NewAuthHandler wires the handler against the live AuthGate and the two
// credential modes this deployment has enabled.
func NewAuthHandler(gate *authgate.Gate, bearerMode, apiKeyMode bool) *AuthHandler {
	return &AuthHandler{gate: gate, bearerMode: bearerMode, apiKeyMode: apiKeyMode}
}

type tokenRequest struct {
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
	TTLSeconds int64    `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// IssueToken exchanges a client_name + requested scopes for a signed bearer
// token. Minting a token is gated by deployment-level trust in whoever can
// reach this endpoint, not by AuthGate itself — AuthGate's job is verifying
// already-issued tokens, not vetting issuance requests.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientName == "" {
		api.Error(w, http.StatusBadRequest, "client_name is required")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{"*"}
	}

	token, err := h.gate.Issue(r.Context(), req.ClientName, scopes, ttl)
	if err != nil {
		api.HandleError(w, r, err)
		return
	}

	api.Success(w, http.StatusCreated, tokenResponse{Token: token, ExpiresIn: int64(ttl.Seconds())})
}

// Modes enumerates which of the two credential modes (bearer, api_key) this
// deployment accepts.
func (h *AuthHandler) Modes(w http.ResponseWriter, r *http.Request) {
	modes := []string{}
	if h.bearerMode {
		modes = append(modes, "bearer")
	}
	if h.apiKeyMode {
		modes = append(modes, "api_key")
	}
	api.Success(w, http.StatusOK, map[string]any{"modes": modes})
}
