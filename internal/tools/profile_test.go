package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atlasdesk/atlas/internal/log"
)

func newTestProfile(t *testing.T, baseURL string, timeout time.Duration) *Profile {
	t.Helper()
	p, err := NewProfile(baseURL, timeout, log.NewNop())
	if err != nil {
		t.Fatalf("NewProfile() error = %v", err)
	}
	return p
}

func TestProfileCompanyLookup(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		w.Write([]byte(`[{"seat":"engineer"}]`))
	}))
	defer srv.Close()

	p := newTestProfile(t, srv.URL, time.Second)
	rc := RequestContext{
		Authorization: "Bearer token-123",
		OrgID:         "org-1",
	}

	out, err := p.Invoke(context.Background(), map[string]any{}, rc)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != `[{"seat":"engineer"}]` {
		t.Errorf("output = %q", out)
	}
	if gotPath != "/job/categories_description_overview/" {
		t.Errorf("path = %q, want /job/categories_description_overview/", gotPath)
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer token-123" {
		t.Errorf("Authorization header = %q", got)
	}
	if gotHeaders.Get("sandbox_uuid") != "" {
		t.Error("sandbox_uuid header sent for non-sandboxed caller")
	}
}

func TestProfileDepartmentLookup(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newTestProfile(t, srv.URL, time.Second)

	_, err := p.Invoke(context.Background(),
		map[string]any{"dept_uuid": "dept-42"}, RequestContext{})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if gotPath != "/job/categories_description_overview/dept-42" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestProfileSandboxedCallerUsesParentJob(t *testing.T) {
	var gotPath string
	var gotSandbox string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSandbox = r.Header.Get("sandbox_uuid")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := newTestProfile(t, srv.URL, time.Second)
	rc := RequestContext{SandboxID: "sbx-7"}

	if _, err := p.Invoke(context.Background(), map[string]any{}, rc); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if gotPath != "/parent_job/categories_description_overview/" {
		t.Errorf("path = %q, want parent_job prefix", gotPath)
	}
	if gotSandbox != "sbx-7" {
		t.Errorf("sandbox_uuid header = %q, want sbx-7", gotSandbox)
	}
}

func TestProfileHTTPErrorBecomesOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := newTestProfile(t, srv.URL, time.Second)

	out, err := p.Invoke(context.Background(), map[string]any{}, RequestContext{})
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil (failure goes to output)", err)
	}
	if !strings.HasPrefix(out, "Error: HTTP 403 - ") {
		t.Errorf("output = %q, want HTTP 403 error text", out)
	}
}

func TestProfileTimeoutBecomesOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := newTestProfile(t, srv.URL, 20*time.Millisecond)

	out, err := p.Invoke(context.Background(), map[string]any{}, RequestContext{})
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil (failure goes to output)", err)
	}
	if !strings.HasPrefix(out, "Error: Request to ") || !strings.HasSuffix(out, " timed out.") {
		t.Errorf("output = %q, want timeout error text", out)
	}
}

func TestProfileConnectionRefusedBecomesOutput(t *testing.T) {
	// Reserve a port and close it so the connection is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := newTestProfile(t, srv.URL, time.Second)

	out, err := p.Invoke(context.Background(), map[string]any{}, RequestContext{})
	if err != nil {
		t.Fatalf("Invoke() error = %v, want nil (failure goes to output)", err)
	}
	if !strings.HasPrefix(out, "Error: ") {
		t.Errorf("output = %q, want generic error text", out)
	}
}

func TestProfileRejectsBadArguments(t *testing.T) {
	p := newTestProfile(t, "http://localhost:1", time.Second)

	_, err := p.Invoke(context.Background(),
		map[string]any{"dept_uuid": []any{"not", "a", "string"}}, RequestContext{})
	if err == nil {
		t.Fatal("Invoke() = nil, want argument error")
	}
	var te *ToolError
	if !errors.As(err, &te) || te.Kind != KindInvalidArguments {
		t.Errorf("error = %v, want ToolError with kind %s", err, KindInvalidArguments)
	}
}

func TestNewProfileValidation(t *testing.T) {
	if _, err := NewProfile("", time.Second, nil); err == nil {
		t.Error("NewProfile(empty base URL) = nil, want error")
	}
}
