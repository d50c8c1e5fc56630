package model

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/atlasdesk/atlas/internal/log"
)

// Client generates model turns with tool requests returned to the
// caller instead of being auto-executed, so the orchestrator controls
// dispatch, identity propagation, and the audit trail.
//
// Client is safe for concurrent use.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	tools       []ai.ToolRef
	system      string
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      log.Logger
}

// Options configures a Client.
type Options struct {
	// ModelName is the provider-qualified model, e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// Tools are advertised on every call so the model can request them.
	Tools []ai.ToolRef

	// System is the optional system prompt.
	System string

	// Retry overrides DefaultRetryConfig when non-zero.
	Retry RetryConfig

	// RateLimit caps outbound calls per second. Zero disables limiting.
	RateLimit rate.Limit

	Logger log.Logger
}

// NewClient creates a Client.
func NewClient(g *genkit.Genkit, opts Options) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if opts.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(opts.RateLimit, 1)
	}

	return &Client{
		g:           g,
		modelName:   opts.ModelName,
		tools:       opts.Tools,
		system:      opts.System,
		retryConfig: opts.Retry,
		rateLimiter: limiter,
		logger:      opts.Logger,
	}, nil
}

// Generate runs one model turn over the given messages. Tool requests in
// the response are returned for the caller to dispatch.
func (c *Client) Generate(ctx context.Context, messages []*ai.Message) (*Response, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithMessages(messages...),
		ai.WithReturnToolRequests(true),
	}
	if len(c.tools) > 0 {
		opts = append(opts, ai.WithTools(c.tools...))
	}
	if c.system != "" {
		opts = append(opts, ai.WithSystem(c.system))
	}

	resp, err := c.generateWithRetry(ctx, opts)
	if err != nil {
		return nil, err
	}

	out := &Response{
		Text:    resp.Text(),
		Message: resp.Message,
	}
	for _, req := range resp.ToolRequests() {
		args, _ := req.Input.(map[string]any)
		out.Requests = append(out.Requests, ToolCallRequest{
			Name: req.Name,
			Ref:  req.Ref,
			Args: args,
		})
	}

	c.logger.Debug("model turn completed",
		"model", c.modelName,
		"tool_requests", len(out.Requests),
		"answer_len", len(out.Text))
	return out, nil
}
