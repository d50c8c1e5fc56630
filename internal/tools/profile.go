package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/atlasdesk/atlas/internal/log"
)

// SeatProfileName is the tool name the model uses for seat-profile lookup.
const SeatProfileName = "get_seat_profile"

// maxProfileBodySize caps how much of a downstream response is read back.
const maxProfileBodySize = 1 << 20 // 1 MiB

// Downstream header names. They mirror the contract of the profile
// service, which keys sandbox scoping on the sandbox_uuid header.
const (
	headerAuthorization = "Authorization"
	headerOrgUUID       = "org_uuid"
	headerSandboxUUID   = "sandbox_uuid"
)

// ProfileInput is the model-facing argument schema for get_seat_profile.
type ProfileInput struct {
	DeptUUID string `json:"dept_uuid,omitempty" jsonschema_description:"Department UUID. Omit to list seat profiles of the whole company"`
}

// Profile looks up seat profiles from the downstream profile service. It
// forwards the caller's credential and scopes the request to the sandbox
// when the caller operates inside one.
//
// Downstream failures are reported as tool output text rather than
// errors: the model reads the failure, explains it, and can retry with
// different arguments. Only malformed model arguments surface as errors.
type Profile struct {
	baseURL string
	client  *http.Client
	logger  log.Logger
}

// NewProfile creates the get_seat_profile adapter. timeout bounds each
// downstream request.
func NewProfile(baseURL string, timeout time.Duration, logger log.Logger) (*Profile, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Profile{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func (p *Profile) Name() string { return SeatProfileName }

func (p *Profile) Description() string {
	return "Get the seat profile of a given department. If dept_uuid is not provided, " +
		"it returns all seat profiles of the current company."
}

func (p *Profile) define(g *genkit.Genkit) ai.Tool { return defineTool[ProfileInput](g, p) }

func (p *Profile) Invoke(ctx context.Context, args map[string]any, rc RequestContext) (string, error) {
	input, err := decodeArgs[ProfileInput](args)
	if err != nil {
		return "", &ToolError{Kind: KindInvalidArguments, Message: err.Error()}
	}

	headers := p.buildHeaders(rc)

	// Sandboxed callers read from the parent company's job catalog.
	basePath := "job"
	if headers.Get(headerSandboxUUID) != "" {
		basePath = "parent_job"
	}

	reqURL := p.baseURL + "/" + basePath + "/categories_description_overview/"
	if input.DeptUUID != "" {
		reqURL += url.PathEscape(input.DeptUUID)
	}

	p.logger.Debug("seat profile lookup",
		"url", reqURL,
		"dept_uuid", input.DeptUUID,
		"sandboxed", basePath == "parent_job")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &ToolError{Kind: KindInternal, Message: fmt.Sprintf("building request: %v", err)}
	}
	req.Header = headers

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			p.logger.Warn("seat profile request timed out", "url", reqURL)
			return fmt.Sprintf("Error: Request to %s timed out.", reqURL), nil
		}
		p.logger.Warn("seat profile request failed", "url", reqURL, "error", err)
		return fmt.Sprintf("Error: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBodySize))
	if err != nil {
		p.logger.Warn("seat profile response read failed", "url", reqURL, "error", err)
		return fmt.Sprintf("Error: %v", err), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("seat profile request rejected",
			"url", reqURL,
			"status", resp.StatusCode)
		return fmt.Sprintf("Error: HTTP %d - %s", resp.StatusCode, string(body)), nil
	}

	return string(body), nil
}

// buildHeaders assembles the downstream headers from the caller
// identity, dropping empty values so the profile service never sees
// blank scoping headers.
func (p *Profile) buildHeaders(rc RequestContext) http.Header {
	h := make(http.Header)
	for name, value := range map[string]string{
		headerAuthorization: rc.Authorization,
		headerOrgUUID:       rc.OrgID,
		headerSandboxUUID:   rc.SandboxID,
	} {
		if value != "" {
			h.Set(name, value)
		}
	}
	return h
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
