package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/security"
)

// credentialTTL bounds how long a verified password is trusted without
// re-hashing.
const credentialTTL = 5 * time.Minute

type userKey struct{}

// userFrom returns the authenticated user of a request.
func userFrom(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey{}).(*models.User)
	return u
}

// requestLogger attaches a request-scoped zerolog logger carrying the request
// ID and writes one access log line per request.
func (s *Server) requestLogger() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(s.logger),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reqID := middleware.GetReqID(r.Context())
				w.Header().Set("X-Request-ID", reqID)
				logger := hlog.FromRequest(r).With().Str("request_id", reqID).Logger()
				ctx := logger.WithContext(r.Context())
				ctx = logging.WithLogger(ctx, logger)
				ctx = security.WithRequestID(ctx, reqID)
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		},
		hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
			event := hlog.FromRequest(r).Info()
			if status >= http.StatusInternalServerError {
				event = hlog.FromRequest(r).Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", size).
				Dur("duration", d).
				Msg("Request completed")
		}),
	}
}

// requireUser checks HTTP Basic credentials and stores the user in the
// request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if s.limiter != nil && !s.limiter.Allow(client) {
			requestLog(r).Warn().Str("client", client).Msg("Too many failed logins")
			writeJSON(w, r, http.StatusTooManyRequests, errorBody{Error: "Too many failed login attempts"})
			return
		}

		email, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="trade-journal"`)
			writeError(w, r, jerrors.ErrNotAuthenticated)
			return
		}
		user, err := s.auth.authenticate(r.Context(), email, password)
		if err != nil {
			if s.limiter != nil && jerrors.Is(err, jerrors.ErrInvalidCredentials) {
				s.limiter.Fail(client)
			}
			w.Header().Set("WWW-Authenticate", `Basic realm="trade-journal"`)
			writeError(w, r, err)
			return
		}

		logger := logging.WithUser(logging.FromContext(r.Context()), user.ID)
		ctx := context.WithValue(r.Context(), userKey{}, user)
		ctx = logging.WithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type cachedUser struct {
	user    *models.User
	expires time.Time
}

// credentialCache remembers recently verified credentials so that every
// request does not pay for a full password hash.
type credentialCache struct {
	auth Authenticator
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	users map[string]cachedUser
}

func newCredentialCache(a Authenticator, ttl time.Duration) *credentialCache {
	return &credentialCache{auth: a, ttl: ttl, now: time.Now, users: make(map[string]cachedUser)}
}

func credentialKey(email, password string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + "\x00" + password))
	return hex.EncodeToString(sum[:])
}

func (c *credentialCache) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	key := credentialKey(email, password)
	now := c.now()

	c.mu.Lock()
	if cu, ok := c.users[key]; ok && now.Before(cu.expires) {
		c.mu.Unlock()
		return cu.user, nil
	}
	c.mu.Unlock()

	user, err := c.auth.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for k, cu := range c.users {
		if !now.Before(cu.expires) {
			delete(c.users, k)
		}
	}
	c.users[key] = cachedUser{user: user, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return user, nil
}

// cors allows cross-origin requests from the configured origins. "*" allows
// any origin.
func cors(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				h := w.Header()
				if allowAll {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLog returns the logger of a request.
func requestLog(r *http.Request) *zerolog.Logger {
	logger := logging.FromContext(r.Context())
	return &logger
}
