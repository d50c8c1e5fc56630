package rag

import "strings"

// Chunking defaults. Chunks overlap so sentences split at a boundary
// remain retrievable from at least one side.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 150
)

// chunkText splits text into overlapping chunks of at most size bytes,
// preferring to break on paragraph then line then space boundaries near
// the limit. Empty input yields no chunks.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunk := strings.TrimSpace(text[start:])
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}

		cut := breakPoint(text[start:end])
		chunk := strings.TrimSpace(text[start : start+cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := start + cut - overlap
		if next <= start {
			next = start + cut
		}
		start = next
	}
	return chunks
}

// breakPoint finds the best split offset within a window, scanning the
// last quarter for a paragraph break, then a newline, then a space.
func breakPoint(window string) int {
	floor := len(window) * 3 / 4

	if i := strings.LastIndex(window, "\n\n"); i > floor {
		return i
	}
	if i := strings.LastIndexByte(window, '\n'); i > floor {
		return i
	}
	if i := strings.LastIndexByte(window, ' '); i > floor {
		return i
	}
	return len(window)
}
