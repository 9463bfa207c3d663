package api

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"
)

// CachedResponse is a previously-seen response kept for idempotent replay.
type CachedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	CachedAt   time.Time
}

// IdempotencyStorer defines the interface for idempotency backends.
type IdempotencyStorer interface {
	Check(ctx context.Context, key string) (*CachedResponse, bool)
	Set(ctx context.Context, key string, resp CachedResponse)
}

// MemoryIdempotencyStore holds cached responses keyed by idempotency key (in-memory).
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*CachedResponse
	ttl     time.Duration
	clock   func() time.Time
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		entries: make(map[string]*CachedResponse),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// Run evicts expired entries every interval until ctx is done.
func (s *MemoryIdempotencyStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evict()
		}
	}
}

func (s *MemoryIdempotencyStore) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for k, v := range s.entries {
		if now.Sub(v.CachedAt) > s.ttl {
			delete(s.entries, k)
		}
	}
}

// Check returns a cached response if existing and valid.
func (s *MemoryIdempotencyStore) Check(_ context.Context, key string) (*CachedResponse, bool) {
	s.mu.RLock()
	cached, exists := s.entries[key]
	s.mu.RUnlock()

	if exists && s.clock().Sub(cached.CachedAt) < s.ttl {
		return cached, true
	}
	return nil, false
}

// Set stores a response.
func (s *MemoryIdempotencyStore) Set(_ context.Context, key string, resp CachedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp.CachedAt = s.clock()
	s.entries[key] = &resp
}

// maxIdempotencyKeyLen bounds the client-supplied Idempotency-Key.
const maxIdempotencyKeyLen = 255

// replayedHeaders are copied from the original response into the cache.
var replayedHeaders = []string{"Content-Type", "Location"}

type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rc *responseCapture) WriteHeader(code int) {
	rc.status = code
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	rc.body.Write(b)
	return rc.ResponseWriter.Write(b)
}

func replay(w http.ResponseWriter, cached *CachedResponse) {
	for k, vals := range cached.Headers {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// IdempotencyMiddleware runs a POST carrying an Idempotency-Key at most once
// per scope and replays its 2xx response afterwards. scope binds keys to the
// caller so one client never sees another's response; it may be nil.
func IdempotencyMiddleware(store IdempotencyStorer, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Idempotency-Key")
			if store == nil || r.Method != http.MethodPost || header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxIdempotencyKeyLen {
				WriteBadRequest(w, "Idempotency-Key too long")
				return
			}

			key := r.Method + " " + r.URL.Path + "|" + header
			if scope != nil {
				key = scope(r) + "|" + key
			}
			if cached, ok := store.Check(r.Context(), key); ok {
				replay(w, cached)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)
			if capture.status < 200 || capture.status >= 300 {
				return
			}
			headers := make(http.Header)
			for _, h := range replayedHeaders {
				if v := w.Header().Get(h); v != "" {
					headers.Set(h, v)
				}
			}
			store.Set(r.Context(), key, CachedResponse{
				StatusCode: capture.status,
				Headers:    headers,
				Body:       capture.body.Bytes(),
			})
		})
	}
}
