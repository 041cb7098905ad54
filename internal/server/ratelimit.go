package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// failureLimiter throttles failed logins per client address. A client that
// has used up its failures is refused before credentials are checked.
type failureLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

// newFailureLimiter allows perMinute failed attempts per client per minute.
func newFailureLimiter(perMinute int) *failureLimiter {
	return &failureLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *failureLimiter) limiter(key string) *rate.Limiter {
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	return lim
}

// Allow reports whether key may attempt a login.
func (l *failureLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.clients[key]
	return !ok || lim.TokensAt(l.now()) >= 1
}

// Fail records a failed attempt by key and forgets clients that have
// fully recovered.
func (l *failureLimiter) Fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.limiter(key).AllowN(now, 1)
	for k, lim := range l.clients {
		if k != key && lim.TokensAt(now) >= float64(l.burst) {
			delete(l.clients, k)
		}
	}
}

// clientKey is the client IP of r without its port.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// realIP applies middleware.RealIP only when the peer is one of the trusted
// proxies. Forwarding headers from anyone else are ignored.
func realIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		forwarded := middleware.RealIP(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromTrusted(r, trusted) {
				forwarded.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromTrusted(r *http.Request, trusted []*net.IPNet) bool {
	ip := net.ParseIP(clientKey(r))
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
