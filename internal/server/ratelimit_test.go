package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/config"
)

func TestFailureLimiter(t *testing.T) {
	now := fixedNow
	l := newFailureLimiter(2)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	l.Fail("10.0.0.1")
	l.Fail("10.0.0.1")
	assert.False(t, l.Allow("10.0.0.1"))

	l.Fail("10.0.0.2")
	assert.True(t, l.Allow("10.0.0.2"), "clients are limited separately")

	now = now.Add(31 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "one attempt refills every 30s")
	l.Fail("10.0.0.1")
	assert.False(t, l.Allow("10.0.0.1"))
	assert.NotContains(t, l.clients, "10.0.0.2", "recovered clients are dropped")
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientKey(r))
	r.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", clientKey(r))
}

func TestFailedLoginsAreThrottled(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.ServerConfig{Addr: ":0", MaxUploadMB: 1, AuthFailuresPerMinute: 2}
	h := New(cfg, env.svc, env.shots, zerolog.Nop(), WithAuthenticator(env.auth)).Handler()

	get := func(password string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		r.RemoteAddr = "192.0.2.7:4000"
		r.SetBasicAuth(testEmail, password)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	require.Equal(t, http.StatusOK, get(testPassword))
	assert.Equal(t, http.StatusUnauthorized, get("wrong"))
	assert.Equal(t, http.StatusOK, get(testPassword), "one failure leaves room")
	assert.Equal(t, http.StatusUnauthorized, get("wrong"))
	assert.Equal(t, http.StatusTooManyRequests, get(testPassword))
}

func TestFailedLogins_ForwardedHeadersFromUntrustedPeers(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.ServerConfig{Addr: ":0", MaxUploadMB: 1, AuthFailuresPerMinute: 2}
	h := New(cfg, env.svc, env.shots, zerolog.Nop(), WithAuthenticator(env.auth)).Handler()

	codes := map[int]int{}
	for i := 0; i < 50; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		r.RemoteAddr = "192.0.2.7:4000"
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		r.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		r.SetBasicAuth(testEmail, "wrong")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		codes[w.Code]++
	}

	assert.Equal(t, 2, codes[http.StatusUnauthorized])
	assert.Equal(t, 48, codes[http.StatusTooManyRequests])
}

func TestFailedLogins_TrustedProxyForwardsClient(t *testing.T) {
	env := newTestEnv(t)
	cfg := config.ServerConfig{
		Addr:                  ":0",
		MaxUploadMB:           1,
		AuthFailuresPerMinute: 1,
		TrustedProxies:        []string{"10.0.0.0/8"},
	}
	h := New(cfg, env.svc, env.shots, zerolog.Nop(), WithAuthenticator(env.auth)).Handler()

	get := func(client, password string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
		r.RemoteAddr = "10.1.2.3:4000"
		r.Header.Set("X-Forwarded-For", client)
		r.SetBasicAuth(testEmail, password)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, get("198.51.100.1", "wrong"))
	assert.Equal(t, http.StatusTooManyRequests, get("198.51.100.1", testPassword))
	assert.Equal(t, http.StatusOK, get("198.51.100.2", testPassword), "other clients behind the proxy are unaffected")
}

func TestRealIP_IgnoresUntrustedPeers(t *testing.T) {
	var seen string
	h := realIP(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = clientKey(r)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:4000"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "192.0.2.7", seen)
}
