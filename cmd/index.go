package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlasdesk/atlas/internal/app"
	"github.com/atlasdesk/atlas/internal/config"
	"github.com/atlasdesk/atlas/internal/rag"
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index documentation into the vector store",
	Long: `Index walks a file or directory, chunks text content, embeds the
chunks, and writes them into the documentation vector store used by the
search_docs tool.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(args[0])
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexer, err := rag.NewIndexer(a.DocStore, rag.IndexerOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	result, err := indexer.IndexPath(ctx, path)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", path, err)
	}

	fmt.Printf("Indexed %d files (%d chunks) in %s\n",
		result.FilesIndexed, result.Chunks, result.Duration.Round(10*time.Millisecond))
	if result.FilesSkipped > 0 {
		fmt.Printf("Skipped %d files with unsupported extensions\n", result.FilesSkipped)
	}
	if result.FilesFailed > 0 {
		fmt.Printf("Failed to index %d files, see logs\n", result.FilesFailed)
	}
	return nil
}
