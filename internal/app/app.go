// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, storage, the Genkit
// runtime, tool adapters, the orchestrator, and the HTTP server together.
// Setup builds it; Close releases everything in reverse order.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/postgresql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasdesk/atlas/internal/api"
	"github.com/atlasdesk/atlas/internal/config"
	"github.com/atlasdesk/atlas/internal/history"
	"github.com/atlasdesk/atlas/internal/log"
	"github.com/atlasdesk/atlas/internal/model"
	"github.com/atlasdesk/atlas/internal/orchestrator"
	"github.com/atlasdesk/atlas/internal/tools"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	// Core services
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	DBPool    *pgxpool.Pool
	DocStore  *postgresql.DocStore
	Retriever ai.Retriever

	// Domain components
	History      *history.Store
	Registry     *tools.Registry
	Model        *model.Client
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
