package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("lookup 7: %w", ErrAdNotFound), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"invalid record", ErrInvalidRecord, http.StatusBadRequest},
		{"store unavailable", Unavailable("redis", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"wrapped store error", fmt.Errorf("opening index: %w", Unavailable("redis", errors.New("dial tcp"))), http.StatusServiceUnavailable},
		{"not initialized", ErrNotInitialized, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("postgres", cause)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store unavailable: postgres: connection refused", err.Error())
	assert.Equal(t, "postgres", StoreName(err))

	again := Unavailable("catalog", fmt.Errorf("session: %w", err))
	assert.Equal(t, "postgres", StoreName(again), "the innermost store keeps its name")
	assert.Empty(t, StoreName(cause))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "store unavailable", PublicMessage(Unavailable("redis", errors.New("10.0.0.3:6379 refused"))))
	assert.Equal(t, "ad not found", PublicMessage(fmt.Errorf("ad 9: %w", ErrAdNotFound)))
	assert.Equal(t, "internal error", PublicMessage(errors.New("pq: relation does not exist")))
}
