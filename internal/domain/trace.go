package domain

import "time"

// Trace is an append-only request record with capped retention. Headers are
// scrubbed of Authorization, X-API-Key, and Cookie before storage; request
// bodies are never stored, only their SHA-256.
type Trace struct {
	ID             string
	TS             time.Time
	Method         string
	Path           string
	Status         int
	LatencyMS      int64
	IP             string
	UserAgent      string
	HeadersScrubbed map[string]string
	QueryParams    map[string]string
	BodySHA256     string
	SessionID      string
	Error          string
}
