// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter counts hits per key in fixed windows. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
	lastGC  time.Time
}

type window struct {
	count     int
	expiresAt time.Time
}

// New allows limit hits per key every period.
func New(limit int, period time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// WithClock replaces the limiter's time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gc(now)

	w, ok := l.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		l.windows[key] = &window{count: 1, expiresAt: now.Add(l.period)}
		return true
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// RetryAfter is how long until key's current window closes.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	if d := w.expiresAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// gc drops closed windows at most once per period. Caller holds mu.
func (l *Limiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < l.period {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.expiresAt) {
			delete(l.windows, k)
		}
	}
	l.lastGC = now
}

// Middleware rejects requests from a client IP that exceeded l with 429.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !l.Allow(ip) {
				tooMany(w, l.RetryAfter(ip), "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

/*─────────────────────────────────────────────────────────────────────────────*
| Login limiter                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// LoginLimiter limits sign-in attempts per client IP and per email.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

func NewLoginLimiter(ipLimit int, ipPeriod time.Duration, emailLimit int, emailPeriod time.Duration) *LoginLimiter {
	return &LoginLimiter{
		ip:    New(ipLimit, ipPeriod),
		email: New(emailLimit, emailPeriod),
	}
}

// Check records an attempt. When it is refused, the returned message says why
// and retry is how long the caller should wait.
func (ll *LoginLimiter) Check(r *http.Request, email string) (ok bool, msg string, retry time.Duration) {
	ip := ClientIP(r)
	if !ll.ip.Allow(ip) {
		return false, "Too many sign-in attempts. Please wait a minute before trying again.", ll.ip.RetryAfter(ip)
	}
	if key := strings.ToLower(strings.TrimSpace(email)); key != "" {
		if !ll.email.Allow(key) {
			return false, "Too many sign-in attempts for this account. Please wait a few minutes.", ll.email.RetryAfter(key)
		}
	}
	return true, "", 0
}

// ResetEmail clears the per-email count after a successful sign-in.
func (ll *LoginLimiter) ResetEmail(email string) {
	if key := strings.ToLower(strings.TrimSpace(email)); key != "" {
		ll.email.Reset(key)
	}
}

// TooMany writes a 429 JSON response with Retry-After.
func TooMany(w http.ResponseWriter, retry time.Duration, msg string) {
	tooMany(w, retry, msg)
}

func tooMany(w http.ResponseWriter, retry time.Duration, msg string) {
	secs := int(retry.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
