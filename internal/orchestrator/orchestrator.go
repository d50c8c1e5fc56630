// Package orchestrator runs the tool-calling loop that turns a user
// question plus conversation history into tool invocations and a final
// answer.
//
// The protocol per question: one model call; if the model requests
// tools, dispatch every request, feed the results back, and call the
// model again. Rounds are bounded by a hard cap, after which remaining
// tool requests are discarded and the last response text stands as the
// answer. Tool failures never abort a request: each failure becomes a
// tool-result message the model can read and an entry in the audit
// trail. Only model invocation failures are fatal.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/atlasdesk/atlas/internal/log"
	"github.com/atlasdesk/atlas/internal/model"
	"github.com/atlasdesk/atlas/internal/tools"
)

// SteeringInstruction directs the model to prefer conversation history
// over tool use. Wired as the system prompt of the model client.
const SteeringInstruction = "You are a helpful assistant processing a user's request within an ongoing conversation. " +
	"Please answer the user's latest question based *first* on the information available in our " +
	"conversation history (including previous tool calls and their results). " +
	"Only use the available tools if the answer cannot be found or requires updated information " +
	"not present in the history."

// FallbackAnswer is returned when the model produces an empty final text.
const FallbackAnswer = "I'm sorry, I was unable to generate a response. Please try rephrasing your question."

// ModelClient generates one model turn. See model.Client.
type ModelClient interface {
	Generate(ctx context.Context, messages []*ai.Message) (*model.Response, error)
}

// History is the conversation store. Load degrades to empty on failure;
// Append errors are best-effort and logged by the caller.
type History interface {
	Load(ctx context.Context, conversationID string) []*ai.Message
	Append(ctx context.Context, conversationID string, messages ...*ai.Message) error
}

// ToolSource resolves tool names to adapters. Lookup returns an error
// wrapping tools.ErrToolNotFound for unknown names.
type ToolSource interface {
	Lookup(name string) (tools.Tool, error)
}

// ToolCallRecord is one audit-trail entry. Exactly one of Output and
// Error is set.
type ToolCallRecord struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	Output    string         `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Result is the outcome of one question.
type Result struct {
	Answer    string           `json:"answer"`
	ToolCalls []ToolCallRecord `json:"tool_calls_made"`
}

// Orchestrator owns the per-question loop. It has no per-request mutable
// state and is safe for concurrent use.
type Orchestrator struct {
	model       ModelClient
	history     History
	tools       ToolSource
	maxRounds   int
	toolTimeout time.Duration
	logger      log.Logger
}

// Options configures an Orchestrator.
type Options struct {
	// MaxRounds caps tool-dispatch rounds per question. 1 reproduces the
	// two-call protocol: initial model call, one dispatch, one follow-up.
	MaxRounds int

	// ToolTimeout bounds each individual tool invocation.
	ToolTimeout time.Duration

	Logger log.Logger
}

// New creates an Orchestrator.
func New(mc ModelClient, hist History, ts ToolSource, opts Options) (*Orchestrator, error) {
	if mc == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if hist == nil {
		return nil, fmt.Errorf("history is required")
	}
	if ts == nil {
		return nil, fmt.Errorf("tool source is required")
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 1
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	return &Orchestrator{
		model:       mc,
		history:     hist,
		tools:       ts,
		maxRounds:   opts.MaxRounds,
		toolTimeout: opts.ToolTimeout,
		logger:      opts.Logger,
	}, nil
}

// Ask answers one question within a conversation. The returned Result
// always carries the full audit trail of tool calls made, including the
// failed ones. Only a model invocation failure returns an error.
func (o *Orchestrator) Ask(ctx context.Context, conversationID, question string, rc tools.RequestContext) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question must not be empty")
	}

	// The working sequence is owned by this request. Only explicit
	// persist calls touch the shared store.
	working := o.history.Load(ctx, conversationID)

	userMsg := ai.NewUserMessage(ai.NewTextPart(question))
	working = append(working, userMsg)

	// The question is recorded up front so it survives any later failure.
	o.persist(ctx, conversationID, userMsg)

	resp, err := o.model.Generate(ctx, working)
	if err != nil {
		return nil, fmt.Errorf("model invocation: %w", err)
	}

	var records []ToolCallRecord
	for round := 0; resp.HasToolRequests() && round < o.maxRounds; round++ {
		o.logger.Debug("dispatching tool requests",
			"conversation_id", conversationID,
			"round", round+1,
			"count", len(resp.Requests))

		if resp.Message != nil {
			working = append(working, resp.Message)
		}

		toolMsg, recs := o.dispatch(ctx, resp.Requests, rc)
		records = append(records, recs...)
		working = append(working, toolMsg)

		resp, err = o.model.Generate(ctx, working)
		if err != nil {
			return nil, fmt.Errorf("model invocation: %w", err)
		}
	}
	if resp.HasToolRequests() {
		// Round cap reached: remaining requests are discarded and the
		// response text, if any, stands as the answer.
		o.logger.Warn("discarding tool requests past round cap",
			"conversation_id", conversationID,
			"discarded", len(resp.Requests))
	}

	answer := resp.Text
	if strings.TrimSpace(answer) == "" {
		answer = FallbackAnswer
	}

	o.persist(ctx, conversationID, ai.NewModelMessage(ai.NewTextPart(answer)))

	return &Result{Answer: answer, ToolCalls: records}, nil
}

// dispatch runs every tool request from one model turn sequentially and
// builds the single tool-role message answering them. Each request
// yields exactly one response part carrying the request's correlation
// ref, success or not.
func (o *Orchestrator) dispatch(ctx context.Context, requests []model.ToolCallRequest, rc tools.RequestContext) (*ai.Message, []ToolCallRecord) {
	parts := make([]*ai.Part, 0, len(requests))
	records := make([]ToolCallRecord, 0, len(requests))

	for _, req := range requests {
		content, record := o.invokeOne(ctx, req, rc)
		records = append(records, record)
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: content,
		}))
	}

	return ai.NewMessage(ai.RoleTool, nil, parts...), records
}

// invokeOne resolves and runs a single tool request. The returned string
// is the in-band tool result for the model; the record is the audit
// entry for the caller.
func (o *Orchestrator) invokeOne(ctx context.Context, req model.ToolCallRequest, rc tools.RequestContext) (string, ToolCallRecord) {
	record := ToolCallRecord{ToolName: req.Name, Arguments: req.Args}

	tool, err := o.tools.Lookup(req.Name)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			o.logger.Warn("model requested unknown tool", "tool", req.Name)
			record.Error = "Tool not found"
			return fmt.Sprintf("Tool '%s' not found.", req.Name), record
		}
		record.Error = err.Error()
		return fmt.Sprintf("Error executing tool %s: %v", req.Name, err), record
	}

	output, err := o.invokeSafe(ctx, tool, req.Args, rc)
	if err != nil {
		o.logger.Warn("tool invocation failed",
			"tool", req.Name,
			"error", err)
		record.Error = err.Error()
		return fmt.Sprintf("Error executing tool %s: %v", req.Name, err), record
	}

	record.Output = output
	return output, record
}

// invokeSafe runs the tool under its own deadline and converts panics
// into errors so one misbehaving adapter cannot take down the request.
func (o *Orchestrator) invokeSafe(ctx context.Context, tool tools.Tool, args map[string]any, rc tools.RequestContext) (out string, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.toolTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &tools.ToolError{
				Kind:    tools.KindInternal,
				Message: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	return tool.Invoke(ctx, args, rc)
}

// persist appends messages to the store, logging failures instead of
// propagating them: history is best-effort context, not the source of
// truth for the current answer.
func (o *Orchestrator) persist(ctx context.Context, conversationID string, msgs ...*ai.Message) {
	if err := o.history.Append(ctx, conversationID, msgs...); err != nil {
		o.logger.Warn("failed to persist conversation message",
			"conversation_id", conversationID,
			"error", err)
	}
}
