package remote

import (
	"context"
	"encoding/json"
	"time"
)

// Call is one outstanding request. Done is closed exactly once, after Value
// and Err are set.
type Call struct {
	ID          uint64
	Namespace   string
	Method      string
	Args        []any
	SubmittedAt time.Time

	Value json.RawMessage
	Err   error
	Done  chan struct{}

	timer *time.Timer
}

func newCall(namespace, method string, args []any) *Call {
	return &Call{
		Namespace: namespace,
		Method:    method,
		Args:      args,
		Done:      make(chan struct{}),
	}
}

// Wait blocks until the call resolves or ctx ends. Abandoning a wait does
// not cancel the call; it still resolves through its own timeout.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.Done:
		return c.Value, c.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Call) resolve(value json.RawMessage, err error) {
	c.Value = value
	c.Err = err
	close(c.Done)
}
