package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/cloo-solutions/kbcore/internal/api"
	"github.com/cloo-solutions/kbcore/internal/tracering"
	"golang.org/x/time/rate"
)

const (
	visitorCleanupInterval = 5 * time.Minute
	visitorStaleThreshold  = 10 * time.Minute
)

// visitor pairs a per-IP token bucket with its last-seen time, so stale
// entries can be reclaimed without an unbounded map.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter implements per-IP rate limiting with golang.org/x/time/rate.
// Cleanup of stale entries happens inline during Allow calls.
type rateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	limit       rate.Limit
	burst       int
	lastCleanup time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	return &rateLimiter{
		visitors:    make(map[string]*visitor),
		limit:       rate.Limit(perSecond),
		burst:       burst,
		lastCleanup: time.Now(),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > visitorCleanupInterval {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorStaleThreshold {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// RateLimit returns middleware enforcing a per-IP token bucket: perSecond
// tokens refill per second, up to burst. Requests from IPs with no tokens
// left get 429 with a Retry-After hint instead of reaching the handler.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	rl := newRateLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := tracering.ClientIP(r)
			if !rl.allow(ip) {
				w.Header().Set("Retry-After", "1")
				api.Error(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
