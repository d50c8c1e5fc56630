package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

// fakeStore collects indexed documents in memory.
type fakeStore struct {
	docs []*ai.Document
	err  error
}

func (f *fakeStore) Index(_ context.Context, docs []*ai.Document) error {
	if f.err != nil {
		return f.err
	}
	f.docs = append(f.docs, docs...)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestChunkText(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		got := chunkText("hello world", 100, 10)
		if len(got) != 1 || got[0] != "hello world" {
			t.Errorf("chunkText() = %v", got)
		}
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		if got := chunkText("   \n  ", 100, 10); got != nil {
			t.Errorf("chunkText(blank) = %v, want nil", got)
		}
	})

	t.Run("long text is split with full coverage", func(t *testing.T) {
		text := strings.Repeat("alpha beta gamma delta. ", 100)
		chunks := chunkText(text, 200, 20)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len(c) > 200 {
				t.Errorf("chunk %d has %d bytes, want <= 200", i, len(c))
			}
		}
		// The tail of the text must land in the final chunk.
		if !strings.HasSuffix(strings.TrimSpace(text), chunks[len(chunks)-1]) {
			t.Error("final chunk does not cover the end of the text")
		}
	})

	t.Run("prefers paragraph boundaries", func(t *testing.T) {
		text := strings.Repeat("x", 180) + "\n\n" + strings.Repeat("y", 180)
		chunks := chunkText(text, 200, 10)
		if !strings.HasSuffix(chunks[0], "x") || strings.Contains(chunks[0], "y") {
			t.Errorf("first chunk = %q, want split at paragraph break", chunks[0])
		}
	})
}

func TestIndexPathDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "guide.md", "# Guide\n\nThe sandbox is an isolated environment.")
	writeFile(t, dir, "notes.txt", "Seat profiles describe department roles.")
	writeFile(t, dir, "binary.png", "\x89PNG not text")

	store := &fakeStore{}
	ix, err := NewIndexer(store, IndexerOptions{})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	result, err := ix.IndexPath(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexPath() error = %v", err)
	}
	if result.FilesIndexed != 2 {
		t.Errorf("FilesIndexed = %d, want 2", result.FilesIndexed)
	}
	if result.FilesSkipped != 1 {
		t.Errorf("FilesSkipped = %d, want 1 (the png)", result.FilesSkipped)
	}
	if len(store.docs) != result.Chunks {
		t.Errorf("store has %d docs, result says %d chunks", len(store.docs), result.Chunks)
	}

	for _, doc := range store.docs {
		if doc.Metadata["source_type"] != SourceTypeFile {
			t.Errorf("doc metadata source_type = %v, want %q", doc.Metadata["source_type"], SourceTypeFile)
		}
	}
}

func TestIndexPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "single.md", "one small document")

	store := &fakeStore{}
	ix, err := NewIndexer(store, IndexerOptions{})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	result, err := ix.IndexPath(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexPath() error = %v", err)
	}
	if result.FilesIndexed != 1 || result.Chunks != 1 {
		t.Errorf("result = %+v, want one file one chunk", result)
	}
}

func TestIndexPathStoreFailureIsCounted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.md", "content that will fail to index")

	store := &fakeStore{err: errors.New("embedder down")}
	ix, err := NewIndexer(store, IndexerOptions{})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}

	result, err := ix.IndexPath(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexPath() error = %v (per-file failures are not fatal)", err)
	}
	if result.FilesFailed != 1 {
		t.Errorf("FilesFailed = %d, want 1", result.FilesFailed)
	}
}

func TestIndexPathMissing(t *testing.T) {
	ix, err := NewIndexer(&fakeStore{}, IndexerOptions{})
	if err != nil {
		t.Fatalf("NewIndexer() error = %v", err)
	}
	if _, err := ix.IndexPath(context.Background(), "/does/not/exist"); err == nil {
		t.Error("IndexPath(missing) = nil, want error")
	}
}

func TestChunkIDStable(t *testing.T) {
	a := chunkID("/docs/guide.md", 0)
	b := chunkID("/docs/guide.md", 0)
	c := chunkID("/docs/guide.md", 1)
	if a != b {
		t.Error("same path and chunk produced different ids")
	}
	if a == c {
		t.Error("different chunks produced the same id")
	}
}
