// Package model wraps generation against the configured language model:
// building requests, rate limiting, and retrying transient failures.
package model

import (
	"errors"

	"github.com/firebase/genkit/go/ai"
)

// ErrModelUnavailable indicates generation failed after all retries.
// The HTTP layer maps it to 502.
var ErrModelUnavailable = errors.New("model unavailable")

// ToolCallRequest is one tool invocation the model asked for. Ref is the
// provider's correlation id; every tool result must echo it back so the
// model can match results to requests.
type ToolCallRequest struct {
	Name string
	Ref  string
	Args map[string]any
}

// Response is one model turn. Requests is non-empty when the model wants
// tools run before it can answer.
type Response struct {
	Text     string
	Requests []ToolCallRequest
	Message  *ai.Message
}

// HasToolRequests reports whether the model asked for tool invocations.
func (r *Response) HasToolRequests() bool {
	return len(r.Requests) > 0
}
