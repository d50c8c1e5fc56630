package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/atlasdesk/atlas/internal/log"
)

// DocumentIndexer is the slice of the vector store the Indexer needs.
// Interfaces are defined by the consumer, not the provider: this lets
// tests run the pipeline against a fake instead of a live embedder.
type DocumentIndexer interface {
	Index(ctx context.Context, docs []*ai.Document) error
}

// defaultSupportedExtensions are the default file types we can index.
var defaultSupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".rst":  true,
	".html": true,
	".json": true,
	".yaml": true,
	".yml":  true,
}

// MaxFileSize caps individual indexed files. Larger files are skipped
// rather than truncated silently.
const MaxFileSize = 2 << 20 // 2 MiB

// indexBatchSize bounds how many chunks are embedded per store call.
const indexBatchSize = 50

// IndexResult summarizes one indexing run.
type IndexResult struct {
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	Chunks       int
	Duration     time.Duration
}

// Indexer walks local documentation trees, chunks file content, and
// writes the chunks into the vector store.
type Indexer struct {
	store        DocumentIndexer
	extensions   map[string]bool
	chunkSize    int
	chunkOverlap int
	logger       log.Logger
}

// IndexerOptions configures an Indexer. Zero values select defaults.
type IndexerOptions struct {
	Extensions   []string // e.g. [".md", ".txt"]
	ChunkSize    int
	ChunkOverlap int
	Logger       log.Logger
}

// NewIndexer creates a file indexer writing into store.
func NewIndexer(store DocumentIndexer, opts IndexerOptions) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}

	extMap := make(map[string]bool, len(defaultSupportedExtensions))
	if len(opts.Extensions) > 0 {
		for _, ext := range opts.Extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultSupportedExtensions {
			extMap[k] = v
		}
	}

	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	return &Indexer{
		store:        store,
		extensions:   extMap,
		chunkSize:    opts.ChunkSize,
		chunkOverlap: opts.ChunkOverlap,
		logger:       opts.Logger,
	}, nil
}

// IndexPath indexes a file, or every supported file under a directory.
func (ix *Indexer) IndexPath(ctx context.Context, path string) (*IndexResult, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	result := &IndexResult{}
	if info.IsDir() {
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				// Skip hidden directories like .git.
				if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			ix.indexFile(ctx, p, result)
			return ctx.Err()
		})
		if err != nil {
			return result, fmt.Errorf("walking %s: %w", path, err)
		}
	} else {
		ix.indexFile(ctx, path, result)
	}

	result.Duration = time.Since(start)
	ix.logger.Info("indexing completed",
		"path", path,
		"indexed", result.FilesIndexed,
		"skipped", result.FilesSkipped,
		"failed", result.FilesFailed,
		"chunks", result.Chunks,
		"duration", result.Duration)
	return result, nil
}

// indexFile indexes a single file into the store, updating result
// counters. Per-file failures are logged, not fatal to the run.
func (ix *Indexer) indexFile(ctx context.Context, path string, result *IndexResult) {
	if !ix.extensions[strings.ToLower(filepath.Ext(path))] {
		result.FilesSkipped++
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		ix.logger.Warn("skipping unreadable file", "path", path, "error", err)
		result.FilesFailed++
		return
	}
	if info.Size() > MaxFileSize {
		ix.logger.Warn("skipping oversized file", "path", path, "size", info.Size())
		result.FilesSkipped++
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		ix.logger.Warn("failed to read file", "path", path, "error", err)
		result.FilesFailed++
		return
	}

	chunks := chunkText(string(content), ix.chunkSize, ix.chunkOverlap)
	if len(chunks) == 0 {
		result.FilesSkipped++
		return
	}

	docs := make([]*ai.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, ai.DocumentFromText(chunk, map[string]any{
			"id":          chunkID(path, i),
			"source_type": SourceTypeFile,
			"path":        path,
			"chunk":       i,
		}))
	}

	for batchStart := 0; batchStart < len(docs); batchStart += indexBatchSize {
		batchEnd := min(batchStart+indexBatchSize, len(docs))
		if err := ix.store.Index(ctx, docs[batchStart:batchEnd]); err != nil {
			ix.logger.Warn("failed to index file", "path", path, "error", err)
			result.FilesFailed++
			return
		}
	}

	result.FilesIndexed++
	result.Chunks += len(docs)
	ix.logger.Debug("indexed file", "path", path, "chunks", len(docs))
}

// chunkID derives a stable document id from the file path and chunk
// index, so re-indexing a file overwrites its previous chunks.
func chunkID(path string, chunk int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s#%d", path, chunk))
	return hex.EncodeToString(sum[:16])
}
