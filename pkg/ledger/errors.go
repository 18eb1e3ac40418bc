package ledger

import (
	"errors"
	"fmt"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/client"
)

var (
	// ErrInvalidConfig is returned by New when the host or port is unusable.
	ErrInvalidConfig = errors.New("ledger: invalid client configuration")

	// ErrResponseTooLarge is wrapped in a *TransportError when a response
	// body exceeds the WithMaxResponseBytes limit.
	ErrResponseTooLarge = client.ErrResponseTooLarge
)

// TransportError reports a request that failed below the HTTP layer:
// refused or reset connections, DNS failures, timeouts, cancellation, or a
// response body exceeding the configured limit.
type TransportError struct {
	Op  Op
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusError is returned under StatusStrict for non-2xx responses.
// Body holds the full response body.
type StatusError struct {
	Op         Op
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger %s: unexpected status %d", e.Op, e.StatusCode)
}

// IsStatusError reports whether err is or wraps a *StatusError.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
