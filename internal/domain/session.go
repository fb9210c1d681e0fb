package domain

import "time"

// AuthMethod records which credential mode produced a Session.
type AuthMethod string

const (
	AuthMethodBearer AuthMethod = "bearer"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Session is the server-side record of an issued bearer-token credential
// (Session/Credential in the data model). A single out-of-band api-key
// constant grants full scope without a backing Session row; AuthMethod
// distinguishes the two.
type Session struct {
	ID         string
	TokenJTI   string
	ClientName string
	Scopes     []string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Disabled   bool
}

// HasScope reports whether the session carries the given scope, or "*" for
// full scope (the synthetic api-key session).
func (s *Session) HasScope(scope string) bool {
	for _, sc := range s.Scopes {
		if sc == "*" || sc == scope {
			return true
		}
	}
	return false
}

// Expired reports whether the session's expiry has elapsed as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
