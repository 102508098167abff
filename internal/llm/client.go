package llm

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedResponse is returned when a completion cannot be decoded into
// the expected shape.
var ErrMalformedResponse = errors.New("malformed llm response")

// #region client
// Client turns a prompt into a completion.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// WithTimeout bounds every completion of c by d. A non-positive d returns c unchanged.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Complete(ctx, prompt)
	})
}

// #endregion client
