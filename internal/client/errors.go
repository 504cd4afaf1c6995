package client

import (
	"errors"
	"fmt"
)

// TransportError wraps a network-level failure (connection refused, timeout,
// truncated response). These are the only errors worth retrying.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError reports a 401/403 from the instance. Credentials are bad for the
// whole instance, so callers abort the run rather than retry per entity.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected (HTTP %d): check the api_key for this instance", e.Status)
}

// RemoteError reports any other non-2xx response. It is specific to the
// entity being written and never worth retrying without input changes.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// NotFound reports whether the error is a 404 from the remote instance.
func NotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == 404
}

// IsAuth reports whether the error is an AuthError anywhere in the chain.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
