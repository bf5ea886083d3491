//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Agentomics/pkg/config"
	"Agentomics/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,

		// Repositories
		ProvideExports,
		ProvideIndicatorSource,

		// Use cases
		ProvideState,
		ProvideDeciders,
		ProvideOrchestrator,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}
