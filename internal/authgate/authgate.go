// Package authgate implements the C9 AuthGate: it accepts either a bearer
// JWT or a configured api-key constant, verifies it, and derives a
// domain.Session carrying scopes and the credential mode that produced it.
package authgate

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/cloo-solutions/kbcore/internal/domain"
)

const defaultSessionTTL = time.Hour

// Gate is the process-singleton C9 component.
type Gate struct {
	signingKey []byte
	apiKey     string
	defaultTTL time.Duration
	store      *SessionStore
}

// Config configures a Gate.
type Config struct {
	SigningKey string
	APIKey     string
	DefaultTTL time.Duration
}

// New creates a Gate backed by store. store must outlive the Gate.
func New(cfg Config, store *SessionStore) *Gate {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Gate{signingKey: []byte(cfg.SigningKey), apiKey: cfg.APIKey, defaultTTL: ttl, store: store}
}

// Issue mints and persists a new bearer-token session, returning the signed
// token to hand back to the caller.
func (g *Gate) Issue(ctx context.Context, clientName string, scopes []string, ttl time.Duration) (string, error) {
	token, rec, err := g.IssueToken(clientName, scopes, ttl)
	if err != nil {
		return "", err
	}
	sess := &domain.Session{
		ID:         rec.id,
		TokenJTI:   rec.jti,
		ClientName: rec.clientName,
		Scopes:     rec.scopes,
		IssuedAt:   rec.issuedAt,
		ExpiresAt:  rec.expiresAt,
	}
	if err := g.store.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// Authenticate implements spec.md §4.9: bearer first, then api-key,
// precedence; missing/malformed/expired credentials are Unauthenticated.
func (g *Gate) Authenticate(ctx context.Context, bearerToken, apiKey string) (*domain.Session, domain.AuthMethod, error) {
	if bearerToken != "" {
		sess, err := g.authenticateBearer(ctx, bearerToken)
		return sess, domain.AuthMethodBearer, err
	}
	if apiKey != "" {
		sess, err := g.authenticateAPIKey(apiKey)
		return sess, domain.AuthMethodAPIKey, err
	}
	return nil, "", domain.ErrMissingCredential
}

func (g *Gate) authenticateBearer(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := g.parseToken(token)
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}

	sess, err := g.store.GetByJTI(ctx, claims.ID)
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}
	if sess.Disabled {
		return nil, domain.ErrInvalidCredential
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, domain.ErrCredentialExpired
	}
	return sess, nil
}

// authenticateAPIKey grants a synthetic full-scope session for the
// constant-time-compared configured api-key; no Session row is created.
func (g *Gate) authenticateAPIKey(key string) (*domain.Session, error) {
	if g.apiKey == "" {
		return nil, domain.ErrInvalidCredential
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(g.apiKey)) != 1 {
		return nil, domain.ErrInvalidCredential
	}
	now := time.Now().UTC()
	return &domain.Session{
		ID:         "sess_api_key",
		ClientName: "api_key",
		Scopes:     []string{"*"},
		IssuedAt:   now,
		ExpiresAt:  now.Add(100 * 365 * 24 * time.Hour),
	}, nil
}

// RequireScope returns domain.ErrInsufficientScope when sess lacks scope.
func RequireScope(sess *domain.Session, scope string) error {
	if sess == nil || !sess.HasScope(scope) {
		return domain.ErrInsufficientScope
	}
	return nil
}
