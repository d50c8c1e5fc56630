// Package rag configures the vector document store and implements the
// local-file indexing pipeline that feeds it.
package rag

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/plugins/postgresql"
)

// Source type values stored in the documents table. The retrieval tool
// filters on SourceTypeFile.
const (
	// SourceTypeFile represents indexed documentation file content.
	SourceTypeFile = "file"

	// SourceTypeSystem represents operator-curated knowledge entries.
	SourceTypeSystem = "system"
)

// Table schema constants for the Genkit PostgreSQL plugin.
// These match the documents table in db/migrations.
const (
	DocumentsTableName    = "documents"
	DocumentsSchemaName   = "public"
	DocumentsIDColumn     = "id"
	DocumentsContentCol   = "content"
	DocumentsEmbeddingCol = "embedding"
	DocumentsMetadataCol  = "metadata"
)

// NewDocStoreConfig creates a postgresql.Config for the documents table.
// This factory ensures consistent configuration across production and tests.
func NewDocStoreConfig(embedder ai.Embedder) *postgresql.Config {
	return &postgresql.Config{
		TableName:          DocumentsTableName,
		SchemaName:         DocumentsSchemaName,
		IDColumn:           DocumentsIDColumn,
		ContentColumn:      DocumentsContentCol,
		EmbeddingColumn:    DocumentsEmbeddingCol,
		MetadataJSONColumn: DocumentsMetadataCol,
		MetadataColumns:    []string{"source_type"}, // For filtering by type
		Embedder:           embedder,
	}
}
