//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"CoinPulse/pkg/config"
	"CoinPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideRegisterer,
		ProvideMetrics,
		ProvideLogger,

		// Infrastructure clients
		ProvideRedis,
		ProvidePostgres,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,

		// Repositories
		ProvideSignalStore,
		ProvideRuleStore,
		ProvideNotificationStore,
		ProvideWatchlistStore,
		ProvideContactStore,
		ProvideWindowStore,
		ProvideEventPublisher,

		// Delivery
		ProvideHub,
		ProvideChannels,
		ProvideQueue,
		ProvideDeliverer,

		// Use cases
		ProvideResolver,
		ProvideThrottler,
		ProvideSink,
		ProvidePipeline,
		ProvideIngestGate,
		ProvideRuleService,
		ProvideWatchlistService,
		ProvideContactService,
		ProvideFeedPoller,
		ProvideObservationsHandler,

		// Transport
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
