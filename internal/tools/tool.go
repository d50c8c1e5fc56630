// Package tools provides the tool adapters the assistant can call while
// answering a question, plus the registry that dispatches to them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// RequestContext carries per-request caller identity into tool
// invocations. It travels alongside the model-provided arguments and is
// never merged into them, so the model cannot forge identity fields.
type RequestContext struct {
	// UserID is the authenticated subject, empty when auth is disabled.
	UserID string

	// OrgID is the caller's organization, when the credential carries one.
	OrgID string

	// SandboxID is set when the caller operates inside a sandbox
	// environment. Adapters may change behavior based on its presence.
	SandboxID string

	// Authorization is the raw credential to forward to downstream
	// services that authenticate the same principal.
	Authorization string
}

// Tool is a single callable adapter. Implementations must be safe for
// concurrent use: one Tool instance serves all requests.
type Tool interface {
	// Name returns the unique identifier the model uses to request the tool.
	Name() string

	// Description tells the model what the tool does and when to use it.
	Description() string

	// Invoke executes the tool. args are the model-provided arguments,
	// already decoded from the tool request. The returned string is fed
	// back to the model verbatim.
	Invoke(ctx context.Context, args map[string]any, rc RequestContext) (string, error)
}

// encodeArgs is decodeArgs in reverse: a typed input value back into
// the map shape Invoke takes.
func encodeArgs(in any) (map[string]any, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshaling input: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encoding input as arguments: %w", err)
	}
	return out, nil
}

// decodeArgs converts the model's map-shaped arguments into a typed
// input struct via a JSON round trip. Unknown fields are ignored, which
// keeps adapters tolerant of models that over-specify.
func decodeArgs[T any](args map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("marshaling arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("invalid arguments: expected %T: %w", out, err)
	}
	return out, nil
}
