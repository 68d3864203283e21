// Package errors holds the sentinels shared by the ad stores, the engine and
// the HTTP layer, and maps them to status codes and client-safe messages.
package errors

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidRecord    = errors.New("invalid ad record")
	ErrAdNotFound       = errors.New("ad not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotInitialized   = errors.New("engine not initialized")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// StoreError is a failure to reach a backing store. It matches
// ErrStoreUnavailable and unwraps to the driver error.
type StoreError struct {
	Store string
	Err   error
}

func (e *StoreError) Error() string {
	return ErrStoreUnavailable.Error() + ": " + e.Store + ": " + e.Err.Error()
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Unavailable wraps cause as a StoreError for the named store. A cause that
// is already a StoreError is returned unchanged.
func Unavailable(store string, cause error) error {
	var se *StoreError
	if errors.As(cause, &se) {
		return cause
	}
	return &StoreError{Store: store, Err: cause}
}

// StoreName reports which store err failed on, or "" if it is not a
// StoreError.
func StoreName(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Store
	}
	return ""
}

func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrAdNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the sentinel text for err. Store names and driver
// details never reach clients.
func PublicMessage(err error) string {
	for _, sentinel := range []error{ErrAdNotFound, ErrInvalidInput, ErrInvalidRecord, ErrTimeout, ErrNotInitialized, ErrStoreUnavailable} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return ErrInternal.Error()
}
