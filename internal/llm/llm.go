// Package llm calls an OpenAI-compatible chat completions endpoint (OpenAI or OpenRouter)
// with a single user message.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrCompletion matches every *CompletionError.
var ErrCompletion = errors.New("completion failed")

// CompletionError reports a failed completion call. StatusCode is 0 when no HTTP
// response was received.
type CompletionError struct {
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCompletion) match.
func (e *CompletionError) Is(target error) bool { return target == ErrCompletion }

// CompletionOptions are per-call overrides. Zero values use the client defaults; a nil
// Temperature does too, so 0 can be requested.
type CompletionOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Completer produces a single-turn completion for prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}
