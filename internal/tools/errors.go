package tools

import "errors"

// ErrToolNotFound indicates the model requested a tool name that is not
// registered. The orchestrator converts this into a correctable message
// for the model rather than failing the request.
var ErrToolNotFound = errors.New("tool not found")

// Error kinds for ToolError.Kind. The model sees these in tool results
// and can use them to self-correct.
const (
	KindInvalidArguments = "InvalidArguments"
	KindTimeout          = "Timeout"
	KindUpstream         = "UpstreamError"
	KindInternal         = "InternalError"
)

// ToolError is a structured tool failure. It classifies the error so the
// model (and the audit trail) can distinguish bad arguments from
// upstream outages.
type ToolError struct {
	Kind    string `json:"error_type"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return "<nil ToolError>"
	}
	switch {
	case e.Kind == "":
		return e.Message
	case e.Message == "":
		return e.Kind
	default:
		return e.Kind + ": " + e.Message
	}
}
