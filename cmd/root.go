// Package cmd provides the atlas CLI commands.
//
// Commands:
//   - serve: HTTP gateway exposing the ask endpoint
//   - index: index local documentation into the vector store
//   - version: build information
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlasdesk/atlas/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "atlas",
	Short: "Atlas - conversational assistant gateway",
	Long: `Atlas answers questions over HTTP by orchestrating an AI model with
a set of tools: documentation retrieval, seat profile lookup, and a demo
weather report. Conversations are persisted with an inactivity TTL.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if os.Getenv("DEBUG") != "" {
			level = slog.LevelDebug
		}
		slog.SetDefault(log.New(log.Config{
			Level: level,
			JSON:  os.Getenv("ATLAS_LOG_JSON") != "",
		}))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
