package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/postgresql"

	"github.com/atlasdesk/atlas/internal/log"
)

// SearchDocsName is the tool name the model uses for document retrieval.
const SearchDocsName = "search_docs"

// Retrieval bounds for search_docs.
const (
	DefaultDocsTopK = 3
	MaxDocsTopK     = 10
)

// docsFilter restricts retrieval to indexed product documentation. The
// filter string is a constant, never interpolated from input, so the
// retriever query path carries no user-influenced SQL.
const docsFilter = "source_type = 'file'"

// DocsInput is the model-facing argument schema for search_docs.
type DocsInput struct {
	Question string `json:"question" jsonschema_description:"The question about the product to look up in the documentation"`
	TopK     int    `json:"topK,omitempty" jsonschema_description:"Maximum passages to return (1-10)"`
}

// Docs answers product questions from the indexed documentation using
// semantic retrieval over the vector store.
type Docs struct {
	retriever ai.Retriever
	topK      int
	logger    log.Logger
}

// NewDocs creates the search_docs adapter. topK is the default passage
// count when the model does not specify one.
func NewDocs(retriever ai.Retriever, topK int, logger log.Logger) (*Docs, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if topK <= 0 {
		topK = DefaultDocsTopK
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Docs{retriever: retriever, topK: topK, logger: logger}, nil
}

func (d *Docs) Name() string { return SearchDocsName }

func (d *Docs) Description() string {
	return "Retrieve information about the product from the indexed product documentation. " +
		"Use this whenever the user asks about product features, functionality, usage, " +
		"definitions, or concepts (e.g. \"What is the Sandbox?\", " +
		"\"How do I create an envelope template?\"). " +
		"Returns the most relevant documentation passages for the question."
}

func (d *Docs) define(g *genkit.Genkit) ai.Tool { return defineTool[DocsInput](g, d) }

func (d *Docs) Invoke(ctx context.Context, args map[string]any, _ RequestContext) (string, error) {
	input, err := decodeArgs[DocsInput](args)
	if err != nil {
		return "", &ToolError{Kind: KindInvalidArguments, Message: err.Error()}
	}
	if strings.TrimSpace(input.Question) == "" {
		return "", &ToolError{Kind: KindInvalidArguments, Message: "question must not be empty"}
	}

	topK := input.TopK
	if topK <= 0 {
		topK = d.topK
	}
	if topK > MaxDocsTopK {
		topK = MaxDocsTopK
	}

	resp, err := d.retriever.Retrieve(ctx, &ai.RetrieverRequest{
		Query: ai.DocumentFromText(input.Question, nil),
		Options: &postgresql.RetrieverOptions{
			Filter: docsFilter,
			K:      topK,
		},
	})
	if err != nil {
		d.logger.Warn("document retrieval failed", "question", input.Question, "error", err)
		return "", &ToolError{Kind: KindUpstream, Message: fmt.Sprintf("retrieving documents: %v", err)}
	}

	if len(resp.Documents) == 0 {
		return "No relevant documentation found for this question.", nil
	}

	d.logger.Debug("document retrieval succeeded",
		"question", input.Question,
		"result_count", len(resp.Documents))
	return formatDocuments(resp.Documents), nil
}

// formatDocuments renders retrieved passages into a single text block
// the model can cite from.
func formatDocuments(docs []*ai.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Passage %d]\n", i+1)
		for _, part := range doc.Content {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
	}
	return b.String()
}
