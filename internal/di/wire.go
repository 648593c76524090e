//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/config"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvidePromRegistry,
		ProvideMetrics,
		ProvideDigest,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideBarStore,
		ProvideBarWriter,
		ProvideBarCache,
		ProvideArtifactStore,
		ProvideResultPublisher,
		ProvideResultStore,
		ProvideUniverse,

		// Use cases
		ProvideHistoryLoader,
		ProvideScorerRegistry,
		ProvideEngine,
		ProvideScanner,
		ProvideTraining,
		ProvideQueue,
		ProvideBarsUpdatedHandler,
		ProvideKafkaConsumer,
		ProvideScheduler,
		ProvideModelWatcher,

		// Transport
		ProvideAPIHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
