package remote

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrTimeout          = errors.New("timeout")
	ErrMalformedMessage = errors.New("malformed message")
	ErrSessionClosed    = errors.New("session closed")
)

// RemoteError is returned when the matched result reports a failure.
type RemoteError struct {
	Namespace string
	Method    string
	Value     json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error for %s.%s: %s", e.Namespace, e.Method, string(e.Value))
}
