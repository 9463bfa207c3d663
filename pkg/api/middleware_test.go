package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimitMiddleware(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)}
	limiter := NewGlobalRateLimiter(1, 2)
	limiter.clock = clock.Now
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/v1/requests", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, call("192.0.2.1:1000").Code, "within burst")
	}
	w := call("192.0.2.1:1001")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusOK, call("192.0.2.2:1000").Code)

	// A refused request does not consume the next token.
	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, call("192.0.2.1:1002").Code)
	assert.Equal(t, http.StatusTooManyRequests, call("192.0.2.1:1003").Code)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Now()
	limiter := NewGlobalRateLimiter(10, 10)
	_, ok := limiter.reserve("10.0.0.1", now)
	require.True(t, ok)
	_, ok = limiter.reserve("10.0.0.2", now)
	require.True(t, ok)
	assert.Equal(t, 2, limiter.Len())

	limiter.evict(now.Add(time.Minute), 3*time.Minute)
	assert.Equal(t, 2, limiter.Len())

	limiter.evict(now.Add(5*time.Minute), 3*time.Minute)
	assert.Equal(t, 0, limiter.Len())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:5123"
	assert.Equal(t, "192.0.2.7", clientIP(r))
	r.RemoteAddr = "[2001:db8::1]"
	assert.Equal(t, "2001:db8::1", clientIP(r))
}
