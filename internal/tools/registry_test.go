package tools

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

// stubTool is a minimal Tool for registry tests.
type stubTool struct {
	name string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) Invoke(context.Context, map[string]any, RequestContext) (string, error) {
	return "ok", nil
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(&stubTool{name: "alpha"}, &stubTool{name: "beta"})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	tool, err := reg.Lookup("alpha")
	if err != nil {
		t.Fatalf("Lookup(alpha) error = %v", err)
	}
	if tool.Name() != "alpha" {
		t.Errorf("Lookup(alpha).Name() = %q", tool.Name())
	}

	if _, err := reg.Lookup("gamma"); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Lookup(gamma) error = %v, want ErrToolNotFound", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg, err := NewRegistry(&stubTool{name: "zeta"}, &stubTool{name: "alpha"}, &stubTool{name: "mid"})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(&stubTool{name: "dup"}, &stubTool{name: "dup"}); err == nil {
		t.Error("NewRegistry(duplicate names) = nil, want error")
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	if _, err := NewRegistry(&stubTool{name: ""}); err == nil {
		t.Error("NewRegistry(empty name) = nil, want error")
	}
}
