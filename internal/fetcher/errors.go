package fetcher

import "github.com/cockroachdb/errors"

var (
	// ErrTransport marks a request that kept failing at the network level or
	// with a server error until the retry budget ran out.
	ErrTransport = errors.New("transport failure")
	// ErrRateLimited marks a request that stayed throttled across every
	// credential for the whole rotation budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedPayload marks a response body that is not the JSON shape
	// the caller asked for.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnexpectedStatus marks a client error other than throttling or
	// auth (404, 400, ...). It is not retried.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// IsFatal reports whether err exhausted a retry budget. Sync runs abort on
// fatal errors and skip the current source on anything else.
func IsFatal(err error) bool {
	return errors.IsAny(err, ErrTransport, ErrRateLimited)
}
