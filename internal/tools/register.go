package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// definer is implemented by adapters that know their typed input struct.
// Registering through it makes genkit derive the declared parameter
// schema (names, types, required flags) from the struct tags, instead of
// advertising a bare object.
type definer interface {
	define(g *genkit.Genkit) ai.Tool
}

// Declare registers every tool in the registry with genkit and returns
// the refs to advertise on model calls.
//
// Generation runs with tool requests returned to the caller, so these
// handlers normally never fire: the dispatcher invokes tools directly
// with an explicit RequestContext. The handlers still delegate properly,
// recovering the caller identity from the context, so a framework-driven
// execution path behaves the same way.
func Declare(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	refs := make([]ai.ToolRef, 0, len(reg.Names()))
	for _, t := range reg.All() {
		if d, ok := t.(definer); ok {
			refs = append(refs, d.define(g))
			continue
		}
		refs = append(refs, defineTool[map[string]any](g, t))
	}
	return refs
}

// defineTool registers t under the typed input T. The handler converts
// the typed input back to the map shape Invoke takes.
func defineTool[T any](g *genkit.Genkit, t Tool) ai.Tool {
	return genkit.DefineTool(g, t.Name(), t.Description(),
		func(ctx *ai.ToolContext, in T) (string, error) {
			args, err := encodeArgs(in)
			if err != nil {
				return "", err
			}
			return t.Invoke(ctx, args, RequestContextFrom(ctx))
		})
}
