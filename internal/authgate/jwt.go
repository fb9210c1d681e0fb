package authgate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// sessionClaims mirrors the original auth.py's token shape: sub (session
// id), jti, client_name, scopes, iat, exp.
type sessionClaims struct {
	jwt.RegisteredClaims
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
}

// IssueToken mints a new bearer token plus its backing session record.
func (g *Gate) IssueToken(clientName string, scopes []string, ttl time.Duration) (token string, sess *sessionRecord, err error) {
	if ttl <= 0 {
		ttl = g.defaultTTL
	}
	now := time.Now().UTC()
	sessionID := "sess_" + uuid.NewString()
	jti := "jti_" + uuid.NewString()

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ClientName: clientName,
		Scopes:     scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	rec := &sessionRecord{
		id:         sessionID,
		jti:        jti,
		clientName: clientName,
		scopes:     scopes,
		issuedAt:   now,
		expiresAt:  now.Add(ttl),
	}
	return signed, rec, nil
}

// sessionRecord is the subset of domain.Session a fresh IssueToken call
// produces, before it round-trips through the SessionStore.
type sessionRecord struct {
	id         string
	jti        string
	clientName string
	scopes     []string
	issuedAt   time.Time
	expiresAt  time.Time
}

// parseToken verifies signature and standard claims (exp), returning the
// decoded claims for session-store cross-checking. It does not by itself
// confirm the session is still enabled; that is AuthGate's job.
func (g *Gate) parseToken(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
