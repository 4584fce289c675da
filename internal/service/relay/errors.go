package relay

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidHistory is returned when the history is empty or does not end with a user turn.
var ErrInvalidHistory = errors.New("history must be non-empty and end with a user message")

// ConfigurationError means the relay cannot run at all, typically a missing credential.
// It is never retried and is raised before any network I/O.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "relay misconfigured: " + e.Reason
}

// UpstreamError carries a non-2xx reply from the completion endpoint. Body is kept for
// diagnostics and must not be shown to end users.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// MalformedResponse means the endpoint answered 2xx but no known envelope shape yielded text.
type MalformedResponse struct {
	Reason string
	Err    error
}

func (e *MalformedResponse) Error() string {
	if e.Err != nil {
		return "malformed upstream response: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed upstream response: " + e.Reason
}

func (e *MalformedResponse) Unwrap() error { return e.Err }

// TransportError wraps network failures talking to the endpoint.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "relay transport failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err is operator-facing.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
