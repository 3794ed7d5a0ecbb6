package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"QuantShield/internal/domain/repository"
	domsvc "QuantShield/internal/domain/service"
	"QuantShield/internal/handler/api"
	mid "QuantShield/internal/middleware"
	internalrepo "QuantShield/internal/repository"
	icache "QuantShield/internal/service/cache"
	"QuantShield/internal/service/marketdata"
	"QuantShield/internal/services/analytics"
	"QuantShield/internal/usecase"
	pkgcache "QuantShield/pkg/cache"
	pkgch "QuantShield/pkg/clickhouse"
	"QuantShield/pkg/config"
	pkgkafka "QuantShield/pkg/kafka"
	"QuantShield/pkg/logger"
	"QuantShield/pkg/metrics"
	"QuantShield/pkg/queue"
	"QuantShield/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := &logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return logger.New(lc)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s
            (ts DateTime, symbol String, price Float64, volume Float64, source String, event_id String, seq UInt64)
            ENGINE=MergeTree ORDER BY (symbol, ts)`, cfg.ClickHouse.QuotesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s
            (day Date, symbol String, close Float64)
            ENGINE=ReplacingMergeTree ORDER BY (symbol, day)`, cfg.ClickHouse.BarsTable),
		fmt.Sprintf(`CREATE MATERIALIZED VIEW IF NOT EXISTS %s.mv_bars_daily TO %s AS
            SELECT toDate(ts) AS day, symbol, argMax(price, ts) AS close
            FROM %s GROUP BY day, symbol`, db, cfg.ClickHouse.BarsTable, cfg.ClickHouse.QuotesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s
            (built_at DateTime, portfolio_id String, window_start DateTime, window_end DateTime,
             vol Float64, var95 Float64, max_dd Float64, div_ratio Float64, label String)
            ENGINE=MergeTree ORDER BY (built_at, window_end)`, cfg.ClickHouse.PanelTable),
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer. When an error topic is
// configured, the logger's error collector publishes aggregated error
// batches through this producer.
func ProvideKafkaProducer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Producer, error) {
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

	if topic := cfg.Logging.ErrorTopic; topic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          topic,
			Publisher:      errorLogPublisher{producer},
		})
	}
	return producer, nil
}

// errorLogPublisher adapts the Kafka producer to the log collector's
// publisher interface.
type errorLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p errorLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideQuoteStorage creates ClickHouse storage repository.
func ProvideQuoteStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseStorage(chClient.DB(), cfg.ClickHouse.QuotesTable)
}

// ProvideQuotePublisher creates Kafka publisher repository.
func ProvideQuotePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaQuotesHandler registers handler for the quotes topic.
func ProvideKafkaQuotesHandler(store repository.Storage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaQuotesHandler {
	return usecase.NewKafkaQuotesHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideMarketStream creates the feed WebSocket stream.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	return marketdata.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		l,
	)
}

// ProvideQuoteProcessor creates quote processor use case.
func ProvideQuoteProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.QuoteProcessor {
	return usecase.NewQuoteProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideQuoteCollector creates quote collector use case.
func ProvideQuoteCollector(
	stream repository.MarketStream,
	processor *usecase.QuoteProcessor,
	metrics repository.Metrics,
) *usecase.QuoteCollector {
	// Build middleware pipeline between WebSocket and the backend
	pipe := mid.NewQuotePipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewQuoteCollector(stream, processor, metrics, pipe)
}

// ProvidePriceStore creates the daily-close price store.
func ProvidePriceStore(chClient *pkgch.Client, cfg *config.Config, l *logger.Logger) repository.PriceStore {
	s := internalrepo.NewCHPriceStore(chClient, cfg.ClickHouse.BarsTable)
	s.SetLogger(l)
	return s
}

// ProvidePanelStore creates the panel store.
func ProvidePanelStore(chClient *pkgch.Client, cfg *config.Config, l *logger.Logger) repository.PanelStore {
	s := internalrepo.NewCHPanelStore(chClient, cfg.ClickHouse.PanelTable)
	s.SetLogger(l)
	return s
}

// ProvideRedisCache creates the Redis cache client, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideCacheService builds the prediction cache: layered memory+Redis
// when Redis is enabled, plain in-process memory otherwise.
func ProvideCacheService(rc *pkgcache.RedisCache) pkgcache.Service {
	if rc == nil {
		return pkgcache.NewMemoryCache()
	}
	return pkgcache.NewLayeredCache(rc)
}

// ProvideClassifier creates the model-service classifier.
func ProvideClassifier(cfg *config.Config) domsvc.Classifier {
	return analytics.NewHTTPClassifier(cfg)
}

// ProvideExplainer creates the deterministic explainer.
func ProvideExplainer() domsvc.Explainer {
	return analytics.NewTemplateExplainer()
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(
	prices repository.PriceStore,
	classifier domsvc.Classifier,
	explainer domsvc.Explainer,
	cacheSvc pkgcache.Service,
	metrics repository.Metrics,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(
		prices,
		classifier,
		explainer,
		cacheSvc,
		cfg.Risk.PredictCacheTTL,
		cfg.Risk.LookbackDays,
		metrics,
		l,
	)
}

// ProvidePanelService creates the panel dataset use case.
func ProvidePanelService(
	prices repository.PriceStore,
	store repository.PanelStore,
	metrics repository.Metrics,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.PanelService {
	return usecase.NewPanelService(prices, store, metrics, cfg.Risk.Portfolios, cfg.Risk.HistoryDays, l)
}

// ProvideJobQueue creates the Redis-backed job queue with the panel
// rebuild job registered.
func ProvideJobQueue(rc *pkgcache.RedisCache, panels *usecase.PanelService, l *logger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    1,
		RetryLimit: 2,
		RetryDelay: 30 * time.Second,
	}, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewPanelRebuildJob(panels, l))
	return q
}

// ProvideRiskHandler creates the HTTP handler for the risk API. Response
// caching uses Redis when available so replicas share entries, otherwise
// an in-process TTL cache.
func ProvideRiskHandler(
	l *logger.Logger,
	predictor *usecase.Predictor,
	panels *usecase.PanelService,
	jobQueue *queue.RedisQueue,
	collector *usecase.QuoteCollector,
	rc *pkgcache.RedisCache,
	chClient *pkgch.Client,
) *api.RiskEchoHandler {
	var jobs queue.QueueService
	if jobQueue != nil {
		jobs = jobQueue
	}
	h := api.NewRiskEchoHandler(l, predictor, panels, jobs, collector)
	if chClient != nil {
		h.SetDBHealth(chClient.Health)
	}
	if rc != nil {
		h.SetCache(icache.NewRedisCache(rc.Client()))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaQuotesHandler,
	chClient *pkgch.Client,
	jobQueue *queue.RedisQueue,
	handler *api.RiskEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.TracingHook{})
	}
	app := server.New(cfg, l, collector, consumer, kh, chClient, jobQueue)
	app.SetHTTPHandler(handler)
	if collector != nil {
		app.SetProcessorCloser(collector.Processor())
	}
	return app
}
