// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, access logging, and request timeouts.
package middleware

import (
	"crypto/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/ads-search-engine/pkg/logger"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a fresh, time-ordered ULID string.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RequestID propagates an inbound X-Request-ID or assigns a new ULID, stores
// it in the request context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the id RequestID stored on r.
func GetRequestID(r *http.Request) string {
	return logger.RequestID(r.Context())
}
