package tools

import (
	"fmt"
	"sort"
)

// Registry is an immutable name-to-tool lookup table. Build it once at
// startup; it is then safe for concurrent use because nothing mutates it.
type Registry struct {
	byName map[string]Tool
	names  []string
}

// NewRegistry builds a registry from the given tools. Duplicate or empty
// tool names are configuration bugs and fail construction.
func NewRegistry(ts ...Tool) (*Registry, error) {
	byName := make(map[string]Tool, len(ts))
	for _, t := range ts {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool with empty name (%T)", t)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		byName[name] = t
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{byName: byName, names: names}, nil
}

// Lookup returns the tool registered under name, or ErrToolNotFound.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return t, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns the registered tools in name order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}
