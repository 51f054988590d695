package di

import (
	"fmt"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	"github.com/Altav1sta/stocks-checker/internal/domain/repository"
	"github.com/Altav1sta/stocks-checker/internal/handler/api"
	mid "github.com/Altav1sta/stocks-checker/internal/middleware"
	internalrepo "github.com/Altav1sta/stocks-checker/internal/repository"
	icache "github.com/Altav1sta/stocks-checker/internal/service/cache"
	"github.com/Altav1sta/stocks-checker/internal/service/notify"
	"github.com/Altav1sta/stocks-checker/internal/service/primary"
	"github.com/Altav1sta/stocks-checker/internal/service/secondary"
	"github.com/Altav1sta/stocks-checker/internal/usecase"
	"github.com/Altav1sta/stocks-checker/pkg/config"
	xhttp "github.com/Altav1sta/stocks-checker/pkg/http"
	pkgkafka "github.com/Altav1sta/stocks-checker/pkg/kafka"
	applogger "github.com/Altav1sta/stocks-checker/pkg/logger"
	"github.com/Altav1sta/stocks-checker/pkg/metrics"
	"github.com/Altav1sta/stocks-checker/pkg/server"
	"github.com/Altav1sta/stocks-checker/pkg/util"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideQuoteStore creates the shared quote store.
func ProvideQuoteStore() *usecase.QuoteStore {
	return usecase.NewQuoteStore()
}

// ProvideLevelDetector creates the level detector from config.
func ProvideLevelDetector(cfg *config.Config) *usecase.LevelDetector {
	lc := usecase.DefaultLevelConfig()
	if cfg.Signals.CapPercent > 0 {
		lc.CapPercent = cfg.Signals.CapPercent
	}
	if cfg.Signals.StepPercent > 0 {
		lc.StepPercent = cfg.Signals.StepPercent
	}
	if cfg.Signals.MinPrice > 0 {
		lc.MinPrice = cfg.Signals.MinPrice
	}
	if cfg.Signals.Cooldown > 0 {
		lc.Cooldown = cfg.Signals.Cooldown
	}
	return usecase.NewLevelDetector(lc)
}

// ProvideBytesCache creates the chat registry backing store: Redis when
// configured, in-process otherwise.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideChatRegistry creates the chat registry repository.
func ProvideChatRegistry(c icache.BytesCache) repository.ChatRegistry {
	return internalrepo.NewCachedChatRegistry(c)
}

// ProvideTelegramNotifier creates the Telegram notifier. Construction is
// lazy; no request is made until the first send.
func ProvideTelegramNotifier(
	cfg *config.Config,
	registry repository.ChatRegistry,
	m repository.Metrics,
	l *applogger.Logger,
) *notify.TelegramNotifier {
	return notify.NewTelegramNotifier(cfg.Telegram.APIURL, cfg.Telegram.Token, registry, m, l)
}

// ProvideKafkaProducer creates a Kafka producer when the kafka backend is
// selected; nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Notifier.Backend != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideNotifier picks the signal delivery backend.
func ProvideNotifier(
	cfg *config.Config,
	tg *notify.TelegramNotifier,
	producer *pkgkafka.Producer,
	m repository.Metrics,
) repository.Notifier {
	if cfg.Notifier.Backend == "kafka" {
		return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic, m)
	}
	return tg
}

// ProvideSignalPipeline creates the delivery pipeline.
func ProvideSignalPipeline(
	notifier repository.Notifier,
	m repository.Metrics,
	cfg *config.Config,
) *mid.SignalPipeline {
	opts := []mid.PipelineOption{}
	if cfg.Signals.GlobalInterval > 0 {
		opts = append(opts, mid.WithGlobalInterval(cfg.Signals.GlobalInterval))
	}
	if cfg.Signals.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Signals.BufferSize))
	}
	return mid.NewSignalPipeline(notifier, m, opts...)
}

// ProvidePrimaryStream creates the primary venue stream.
func ProvidePrimaryStream(cfg *config.Config) repository.PrimaryStream {
	return primary.New(primary.Config{
		Token:          cfg.Primary.Token,
		RestURL:        cfg.Primary.RestURL,
		WebsocketURL:   cfg.Primary.WebsocketURL,
		ReconnectDelay: cfg.Primary.ReconnectDelay,
		PingInterval:   cfg.Primary.PingInterval,
	})
}

// ProvideSecondaryFeed creates the secondary venue feed.
func ProvideSecondaryFeed(cfg *config.Config) repository.SecondaryFeed {
	return secondary.New(secondary.Config{
		KeyID:        cfg.Secondary.KeyID,
		SecretKey:    cfg.Secondary.SecretKey,
		RestURL:      cfg.Secondary.RestURL,
		WebsocketURL: cfg.Secondary.WebsocketURL,
		PingInterval: cfg.Secondary.PingInterval,
	})
}

// ProvideEligibilityPolicy builds the instrument filter from config.
func ProvideEligibilityPolicy(cfg *config.Config) repository.EligibilityPolicy {
	currency := cfg.Primary.Currency
	return func(ins models.Instrument) bool {
		return ins.Currency == currency && util.IsUpperAlpha(ins.Ticker)
	}
}

// ProvideIngester creates the primary feed ingester.
func ProvideIngester(
	stream repository.PrimaryStream,
	store *usecase.QuoteStore,
	detector *usecase.LevelDetector,
	pipeline *mid.SignalPipeline,
	m repository.Metrics,
	l *applogger.Logger,
	policy repository.EligibilityPolicy,
) *usecase.PrimaryFeedIngester {
	return usecase.NewPrimaryFeedIngester(stream, store, detector, pipeline, m, l,
		usecase.WithEligibility(policy),
	)
}

// ProvideScheduler creates the secondary subscription scheduler.
func ProvideScheduler(
	feed repository.SecondaryFeed,
	store *usecase.QuoteStore,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SecondarySubscriptionScheduler {
	sc := usecase.DefaultSchedulerConfig()
	if cfg.Secondary.MaxChannels > 0 {
		sc.MaxChannels = cfg.Secondary.MaxChannels
	}
	if cfg.Secondary.PollInterval > 0 {
		sc.PollInterval = cfg.Secondary.PollInterval
	}
	if len(cfg.Secondary.TapeCodes) > 0 {
		sc.TapeCodes = cfg.Secondary.TapeCodes
	}
	return usecase.NewSecondarySubscriptionScheduler(feed, store, m, l, sc)
}

// ProvideQuotesTable creates the HTTP quote table view.
func ProvideQuotesTable(store *usecase.QuoteStore) *usecase.QuotesTable {
	return usecase.NewQuotesTable(store)
}

// ProvideHTTPHandler creates the API handler.
func ProvideHTTPHandler(
	l *applogger.Logger,
	table *usecase.QuotesTable,
	store *usecase.QuoteStore,
	scheduler *usecase.SecondarySubscriptionScheduler,
) xhttp.Handler {
	return api.NewQuotesEchoHandler(l, table, store, scheduler)
}

// ProvideKafkaConsumer creates a Kafka consumer when the relay is enabled;
// nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Notifier.RelayEnabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRelayHandler fans consumed signal messages out to Telegram when the
// relay is enabled; nil otherwise.
func ProvideRelayHandler(
	cfg *config.Config,
	tg *notify.TelegramNotifier,
	m repository.Metrics,
) pkgkafka.MessageHandler {
	if !cfg.Notifier.RelayEnabled {
		return nil
	}
	return usecase.NewSignalRelayHandler(cfg.Kafka.Topic, tg, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	ingester *usecase.PrimaryFeedIngester,
	scheduler *usecase.SecondarySubscriptionScheduler,
	pipeline *mid.SignalPipeline,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	httpHandler xhttp.Handler,
	tg *notify.TelegramNotifier,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, ingester, scheduler, pipeline, consumer, kh)
	app.SetHTTPHandler(httpHandler)
	if cfg.Notifier.Backend == "telegram" || cfg.Notifier.RelayEnabled {
		app.SetBroadcaster(tg)
	}
	return app
}
