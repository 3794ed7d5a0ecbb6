//go:build wireinject
// +build wireinject

package di

import (
	"QuantShield/pkg/config"
	"QuantShield/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,
		ProvideCacheService,

		// Repositories (with business logic)
		ProvideQuoteStorage,
		ProvideQuotePublisher,
		ProvideMarketStream,
		ProvidePriceStore,
		ProvidePanelStore,

		// Analytics services
		ProvideClassifier,
		ProvideExplainer,

		// Use cases
		ProvideQuoteProcessor,
		ProvideQuoteCollector,
		ProvideKafkaQuotesHandler,
		ProvidePredictor,
		ProvidePanelService,
		ProvideJobQueue,

		// HTTP surface
		ProvideRiskHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
