//go:build wireinject
// +build wireinject

package di

import (
	"QuantGate/pkg/config"
	"QuantGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideDecisionPublisher,
		ProvideSummaryCache,

		// Repositories
		ProvideSnapshotLoader,
		ProvideEvidenceStore,

		// Use cases
		ProvideExperimentRunner,
		ProvideResultsReader,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
