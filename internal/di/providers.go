package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/domain/service"
	"CoinPulse/internal/handler/api"
	"CoinPulse/internal/middleware"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/service/delivery"
	"CoinPulse/internal/service/feeds"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/service/realtime"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
	"CoinPulse/pkg/postgres"
	"CoinPulse/pkg/queue"
	"CoinPulse/pkg/server"
)

const schemaTimeout = 10 * time.Second

// ProvideLogger builds the application logger. With Kafka up and the
// collector enabled, repeated error logs are aggregated onto the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.Collector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return l, nil
}

func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) domrepo.Metrics {
	return metrics.New(reg)
}

// ProvideRedis returns nil when no component needs Redis.
func ProvideRedis(cfg *config.Config) (redis.UniversalClient, error) {
	if !cfg.UsesBackend(config.BackendRedis) && cfg.Delivery.Mode != "queue" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvidePostgres connects and creates the notification, watchlist and
// contact tables when any of those stores is on Postgres.
func ProvidePostgres(cfg *config.Config) (*postgres.Client, error) {
	if !cfg.UsesBackend(config.BackendPostgres) {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	client, err := postgres.NewClient(ctx, cfg.Postgres.DSN,
		postgres.WithPoolSize(cfg.Postgres.MinConns, cfg.Postgres.MaxConns),
		postgres.WithMaxConnLifetime(cfg.Postgres.MaxConnLifetime),
		postgres.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	if err := client.InitSchema(ctx, repository.PostgresSchema); err != nil {
		client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client and the signal table.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Storage.Signals != config.BackendClickHouse {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, repository.ClickHouseSchema(client.Database())); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	p := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(p.Compression),
		pkgkafka.WithRequiredAcks(p.RequiredAcks),
		pkgkafka.WithMaxAttempts(p.MaxAttempts),
		pkgkafka.WithBatching(p.BatchSize, p.BatchBytes, p.Linger),
		pkgkafka.WithWriteTimeout(p.WriteTimeout),
		pkgkafka.WithAsync(p.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the observations consumer when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg prometheus.Registerer) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerFetch(c.MinBytes, c.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook()))
	return consumer, nil
}

// ProvideCache layers an in-process cache over Redis when Redis is up.
func ProvideCache(cfg *config.Config, rdb redis.UniversalClient) cache.Service {
	if rdb == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(
		cache.NewRedisCache(rdb, cache.WithRedisPrefix(cfg.Redis.KeyPrefix+":cache")),
		cache.WithLayeredL1TTL(cfg.Pipeline.RuleCacheTTL/2),
	)
}

func ProvideSignalStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) domrepo.SignalStore {
	if cfg.Storage.Signals == config.BackendClickHouse {
		return repository.NewClickHouseSignalStore(ch, l)
	}
	return repository.NewMemorySignalStore()
}

func ProvideRuleStore(cfg *config.Config, rdb redis.UniversalClient, c cache.Service) domrepo.RuleStore {
	if cfg.Storage.Rules == config.BackendRedis {
		return repository.NewCachedRuleStore(
			repository.NewRedisRuleStore(rdb, cfg.Redis.KeyPrefix+":rules"),
			c, cfg.Pipeline.RuleCacheTTL)
	}
	return repository.NewMemoryRuleStore()
}

func ProvideNotificationStore(cfg *config.Config, pg *postgres.Client) domrepo.NotificationStore {
	if cfg.Storage.Notifications == config.BackendPostgres {
		return repository.NewPostgresNotificationStore(pg.Pool)
	}
	return repository.NewMemoryNotificationStore()
}

func ProvideWatchlistStore(cfg *config.Config, pg *postgres.Client) domrepo.WatchlistStore {
	if cfg.Storage.Watchlists == config.BackendPostgres {
		return repository.NewPostgresWatchlistStore(pg.Pool)
	}
	return repository.NewMemoryWatchlistStore()
}

// ProvideContactStore follows the notification backend.
func ProvideContactStore(cfg *config.Config, pg *postgres.Client) domrepo.ContactStore {
	if cfg.Storage.Notifications == config.BackendPostgres {
		return repository.NewPostgresContactStore(pg.Pool)
	}
	return repository.NewMemoryContactStore()
}

func ProvideWindowStore(cfg *config.Config, rdb redis.UniversalClient) domrepo.WindowStore {
	if cfg.Storage.Windows == config.BackendRedis {
		return repository.NewRedisWindowStore(rdb, cfg.Redis.KeyPrefix+":windows")
	}
	return repository.NewMemoryWindowStore()
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.EventPublisher {
	if producer == nil {
		return repository.NopEventPublisher{}
	}
	return repository.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Signals, cfg.Kafka.Topics.Notifications)
}

func ProvideHub(cfg *config.Config, l *applogger.Logger) *realtime.Hub {
	return realtime.NewHub(l, cfg.Server.AllowedOrigins)
}

// ProvideChannels builds the configured push channel and, if enabled, email.
func ProvideChannels(cfg *config.Config, contacts domrepo.ContactStore) ([]service.Channel, error) {
	var channels []service.Channel

	switch cfg.Delivery.PushProvider {
	case "webhook":
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.Delivery.Timeout))
		channels = append(channels, delivery.NewWebhookPush(cfg.Delivery.Webhook.URL, client))
	case "telegram":
		b, err := delivery.NewTelegramBot(cfg.Delivery.Telegram.Token)
		if err != nil {
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		channels = append(channels, delivery.NewTelegramPush(b, contacts, cfg.Delivery.Telegram.RateLimit))
	}

	if cfg.Delivery.Email.Enabled {
		e := cfg.Delivery.Email
		channels = append(channels, delivery.NewSMTPEmail(delivery.SMTPConfig{
			Host:     e.Host,
			Port:     e.Port,
			Username: e.Username,
			Password: e.Password,
			From:     e.From,
		}, contacts))
	}
	return channels, nil
}

// ProvideQueue returns nil unless deliveries go through the Redis queue.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, rdb redis.UniversalClient) *queue.RedisQueue {
	if cfg.Delivery.Mode != "queue" {
		return nil
	}
	q := cfg.Delivery.Queue
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:        q.Workers,
		RetryLimit:     q.RetryLimit,
		RetryDelay:     q.RetryDelay,
		PollInterval:   q.PollInterval,
		ProcessTimeout: q.ProcessTimeout,
		EnableDLQ:      q.EnableDLQ,
	}, rdb, queue.WithKeyPrefix(cfg.Redis.KeyPrefix+":queue:"+q.Name))
}

// ProvideDeliverer sends inline, or enqueues one task per channel and
// registers the job that drains them.
func ProvideDeliverer(
	cfg *config.Config,
	q *queue.RedisQueue,
	channels []service.Channel,
	m domrepo.Metrics,
	l *applogger.Logger,
) service.Deliverer {
	if q == nil {
		return usecase.NewDirectDeliverer(channels, cfg.Delivery.Timeout, m)
	}
	q.RegisterJob(usecase.NewDeliveryJob(channels, cfg.Delivery.Timeout, m, l))
	return usecase.NewQueueDeliverer(q, channels, m)
}

func ProvideResolver(cfg *config.Config, rules domrepo.RuleStore, m domrepo.Metrics, l *applogger.Logger) *usecase.Resolver {
	return usecase.NewResolver(rules, cfg.Pipeline.ResolveTimeout, m, l)
}

func ProvideThrottler(cfg *config.Config, windows domrepo.WindowStore, m domrepo.Metrics, l *applogger.Logger) *usecase.Throttler {
	return usecase.NewThrottler(windows, cfg.Pipeline.StoreTimeout, m, l)
}

func ProvideSink(
	cfg *config.Config,
	store domrepo.NotificationStore,
	deliverer service.Deliverer,
	hub *realtime.Hub,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Sink {
	return usecase.NewSink(store, deliverer, m, l,
		usecase.WithBroadcaster(hub),
		usecase.WithEventPublisher(events),
		usecase.WithGroupWindow(cfg.Pipeline.GroupWindow),
		usecase.WithStoreTimeout(cfg.Pipeline.StoreTimeout),
	)
}

func ProvidePipeline(
	cfg *config.Config,
	resolver *usecase.Resolver,
	throttler *usecase.Throttler,
	sink *usecase.Sink,
	signals domrepo.SignalStore,
	watchlists domrepo.WatchlistStore,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Pipeline {
	return usecase.NewPipeline(usecase.NewScorer(), resolver, throttler, sink, signals, watchlists, events, m, l,
		usecase.PipelineConfig{
			FanoutWorkers: cfg.Pipeline.FanoutWorkers,
			StoreTimeout:  cfg.Pipeline.StoreTimeout,
		})
}

// ProvideIngestGate puts rate limiting and retry buffering between the
// intake paths and the pipeline.
func ProvideIngestGate(cfg *config.Config, p *usecase.Pipeline, m domrepo.Metrics, l *applogger.Logger) *middleware.IngestGate {
	return middleware.NewIngestGate(p, m, l,
		middleware.WithMaxRPS(cfg.Pipeline.GateMaxRPS),
		middleware.WithBufferSize(cfg.Pipeline.GateBuffer),
	)
}

func ProvideRuleService(cfg *config.Config, rules domrepo.RuleStore, resolver *usecase.Resolver) *usecase.RuleService {
	return usecase.NewRuleService(rules, resolver, cfg.Pipeline.StoreTimeout)
}

func ProvideWatchlistService(cfg *config.Config, store domrepo.WatchlistStore) *usecase.WatchlistService {
	return usecase.NewWatchlistService(store, cfg.Pipeline.StoreTimeout)
}

func ProvideContactService(cfg *config.Config, store domrepo.ContactStore) *usecase.ContactService {
	return usecase.NewContactService(store, cfg.Pipeline.StoreTimeout)
}

// ProvideFeedPoller returns nil when polling is disabled. The cache lock
// keeps replicas from polling the same tick.
func ProvideFeedPoller(cfg *config.Config, gate *middleware.IngestGate, c cache.Service, m domrepo.Metrics, l *applogger.Logger) *usecase.FeedPoller {
	if !cfg.Feeds.Enabled {
		return nil
	}
	client := feeds.NewClient(feeds.Config{
		PriceURL:     cfg.Feeds.PriceURL,
		SentimentURL: cfg.Feeds.SentimentURL,
		NarrativeURL: cfg.Feeds.NarrativeURL,
		APIKey:       cfg.Feeds.APIKey,
		Timeout:      cfg.Feeds.Timeout,
	})
	return usecase.NewFeedPoller(client, client, client, gate.Retrying(), c, m, l, usecase.FeedPollerConfig{
		Symbols:  cfg.Feeds.Symbols,
		Interval: cfg.Feeds.Interval,
		Timeout:  cfg.Feeds.Timeout,
	})
}

func ProvideObservationsHandler(cfg *config.Config, gate *middleware.IngestGate, m domrepo.Metrics, l *applogger.Logger) *usecase.ObservationsHandler {
	return usecase.NewObservationsHandler(cfg.Kafka.Topics.Observations, gate, m, l)
}

// ProvideHandlers collects every route group.
func ProvideHandlers(
	cfg *config.Config,
	pipeline *usecase.Pipeline,
	gate *middleware.IngestGate,
	rules *usecase.RuleService,
	sink *usecase.Sink,
	watchlists *usecase.WatchlistService,
	contacts *usecase.ContactService,
	hub *realtime.Hub,
	l *applogger.Logger,
) []xhttp.Handler {
	return []xhttp.Handler{
		api.NewSignalsHandler(pipeline, gate, ratelimit.New(cfg.Server.IngestRPS, cfg.Server.IngestBurst), l),
		api.NewRulesHandler(rules, l),
		api.NewNotificationsHandler(sink, l),
		api.NewUsersHandler(watchlists, contacts, l),
		api.NewRealtimeHandler(hub, l),
	}
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler, reg prometheus.Registerer) *xhttp.Server {
	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		xhttp.WithMetricsRegistry(reg, prometheus.DefaultGatherer),
	)
}

// ProvideApp assembles the lifecycle and registers every open client for
// shutdown. The log collector is flushed before the producer it writes to.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	gate *middleware.IngestGate,
	consumer *pkgkafka.Consumer,
	observations *usecase.ObservationsHandler,
	poller *usecase.FeedPoller,
	q *queue.RedisQueue,
	rdb redis.UniversalClient,
	pg *postgres.Client,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	comp := server.Components{
		HTTP:   srv,
		Gate:   gate,
		Poller: poller,
		Queue:  q,
	}
	if consumer != nil {
		comp.Consumer = consumer
		comp.Observations = observations
	}

	if ch != nil {
		comp.Closers = append(comp.Closers, server.Closer{Name: "clickhouse", Closer: ch})
	}
	if pg != nil {
		comp.Closers = append(comp.Closers, server.Closer{Name: "postgres", Closer: server.CloseFunc(func() error {
			pg.Close()
			return nil
		})})
	}
	if rdb != nil {
		comp.Closers = append(comp.Closers, server.Closer{Name: "redis", Closer: rdb})
	}
	if producer != nil {
		comp.Closers = append(comp.Closers, server.Closer{Name: "kafka producer", Closer: producer})
		if cfg.Log.Collector.Enabled {
			comp.Closers = append(comp.Closers, server.Closer{Name: "log collector", Closer: server.CloseFunc(func() error {
				l.CloseCollector()
				return nil
			})})
		}
	}

	return server.New(cfg, l, comp)
}
