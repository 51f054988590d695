//go:build wireinject
// +build wireinject

package di

import (
	"github.com/Altav1sta/stocks-checker/pkg/config"
	"github.com/Altav1sta/stocks-checker/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Shared state
		ProvideQuoteStore,
		ProvideLevelDetector,

		// Infrastructure clients
		ProvideBytesCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvidePrimaryStream,
		ProvideSecondaryFeed,

		// Repositories
		ProvideChatRegistry,
		ProvideTelegramNotifier,
		ProvideNotifier,
		ProvideRelayHandler,

		// Use cases
		ProvideEligibilityPolicy,
		ProvideSignalPipeline,
		ProvideIngester,
		ProvideScheduler,
		ProvideQuotesTable,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
