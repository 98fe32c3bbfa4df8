package di

import (
	"context"
	"fmt"
	"time"

	"killrvideo/application/commands/bus"
	commands_handlers "killrvideo/application/commands/handlers"
	"killrvideo/application/counters"
	"killrvideo/application/fanout"
	"killrvideo/application/ports"
	"killrvideo/application/queries"
	querybus "killrvideo/application/queries/bus"
	queries_handlers "killrvideo/application/queries/handlers"
	domainconfig "killrvideo/domain/config"
	"killrvideo/infrastructure/config"
	"killrvideo/infrastructure/dedup"
	"killrvideo/infrastructure/messaging/eventbridge"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/cassandra"
	"killrvideo/infrastructure/persistence/dynamodb"
	"killrvideo/infrastructure/persistence/memory"
	"killrvideo/infrastructure/persistence/resilience"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/interfaces/http/rest"
	"killrvideo/pkg/auth"
	"killrvideo/pkg/errors"
	"killrvideo/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const (
	metricsNamespace = "killrvideo"
	slowQuery        = 500 * time.Millisecond
	readinessTimeout = 2 * time.Second
)

// ProvideLogger creates a new logger instance at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at a local
// endpoint when one is configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideRegistry loads the schema, renaming the keyspace when configured
func ProvideRegistry(cfg *config.Config) (*schema.Registry, error) {
	reg, err := schema.Load()
	if err != nil {
		return nil, err
	}
	return reg.WithKeyspace(cfg.CassandraKeyspace), nil
}

// ProvideSession opens the configured store and wraps it in a circuit
// breaker when enabled. The cleanup closes the store.
func ProvideSession(
	ctx context.Context,
	cfg *config.Config,
	reg *schema.Registry,
	client *awsdynamodb.Client,
	logger *zap.Logger,
) (abstractions.Session, func(), error) {
	var session abstractions.Session
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		session = dynamodb.NewSession(client, reg, dynamodb.Config{
			TableName: cfg.DynamoDBTable,
			MaxBatch:  cfg.MaxBatchStatements,
		}, logger)
	case config.StoreCassandra:
		cs, err := cassandra.Open(ctx, cassandra.Config{
			Hosts:       cfg.CassandraHosts,
			Consistency: cfg.CassandraConsistency,
			Timeout:     cfg.CassandraTimeout,
			MaxBatch:    cfg.MaxBatchStatements,
		}, reg, logger)
		if err != nil {
			return nil, nil, err
		}
		session = cs
	default:
		session = memory.NewBootstrappedSession(reg, logger)
	}

	if cfg.EnableBreaker && cfg.StoreBackend != config.StoreMemory {
		session = resilience.NewBreakerSession(session, resilience.DefaultBreakerConfig(), logger)
	}

	logger.Info("Store opened",
		zap.String("backend", cfg.StoreBackend),
		zap.String("keyspace", reg.Keyspace().Name),
		zap.Bool("breaker", cfg.EnableBreaker),
	)
	cleanup := func() {
		if err := session.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}
	return session, cleanup, nil
}

// ProvideDeduplicator creates the rating submission ledger. It returns nil
// when deduplication is turned off.
func ProvideDeduplicator(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	logger *zap.Logger,
) (ports.Deduplicator, func(), error) {
	switch cfg.DedupBackend {
	case config.DedupNone:
		logger.Warn("Rating submissions are not deduplicated")
		return nil, func() {}, nil
	case config.DedupRedis:
		ledger, err := dedup.NewRedisLedger(ctx, dedup.RedisConfig{
			URL:     cfg.RedisURL,
			Address: cfg.RedisAddr,
		})
		if err != nil {
			return nil, nil, err
		}
		return ledger, func() { _ = ledger.Close() }, nil
	case config.DedupDynamoDB:
		return dynamodb.NewSubmissionLedger(client, cfg.DynamoDBTable, logger), func() {}, nil
	default:
		return dedup.NewMemoryLedger(), func() {}, nil
	}
}

// ProvideEventPublisher publishes to EventBridge when events are enabled
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return ports.NoopPublisher{}
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(metricsNamespace, cfg.EnableTracing)
}

// ProvidePrometheusRegistry creates the registry the /metrics endpoint serves
func ProvidePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the collector, or nil when metrics are disabled
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector(metricsNamespace, reg)
}

// ProvideCloudWatchSink creates the sink that pushes the service metrics to
// CloudWatch, or nil when publishing is disabled
func ProvideCloudWatchSink(cfg *config.Config, client *awscloudwatch.Client, reg *prometheus.Registry, logger *zap.Logger) *observability.CloudWatchSink {
	if !cfg.EnableCloudWatch || !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCloudWatchSink(client, reg, observability.CloudWatchConfig{
		Namespace:   cfg.CloudWatchNamespace,
		Prefix:      metricsNamespace + "_",
		MinInterval: cfg.CloudWatchInterval,
	}, logger)
}

// ProvideDomainConfig returns the domain limits of the environment. DEDUP_TTL
// overrides the environment's submission TTL when set.
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	domain := domainconfig.LoadDomainConfig(cfg.Environment)
	if cfg.DedupTTL > 0 {
		domain.SubmissionTTL = cfg.DedupTTL
	}
	if err := domain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain config: %w", err)
	}
	return domain, nil
}

// ProvideAggregator creates the counter aggregator
func ProvideAggregator(session abstractions.Session, logger *zap.Logger) *counters.Aggregator {
	return counters.NewAggregator(session, logger)
}

// ProvideCoordinator creates the write fan-out coordinator
func ProvideCoordinator(
	cfg *config.Config,
	domain *domainconfig.DomainConfig,
	reg *schema.Registry,
	session abstractions.Session,
	aggregator *counters.Aggregator,
	ledger ports.Deduplicator,
	publisher ports.EventPublisher,
	tracer *observability.Tracer,
	metrics *observability.Collector,
	logger *zap.Logger,
) *fanout.Coordinator {
	fcfg := fanout.DefaultConfig()
	if cfg.WriteTimeout > 0 {
		fcfg.WriteTimeout = cfg.WriteTimeout
	}
	fcfg.SubmissionTTL = domain.SubmissionTTL
	return fanout.NewCoordinator(reg, session, aggregator, ledger, publisher, tracer, metrics, fcfg, logger)
}

// ProvideQueryRouter creates the query router
func ProvideQueryRouter(
	reg *schema.Registry,
	session abstractions.Session,
	domain *domainconfig.DomainConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *queries.Router {
	return queries.NewRouter(reg, session, domain, metrics, logger)
}

// ProvideCommandBus creates a command bus with every mutation registered
func ProvideCommandBus(
	coordinator *fanout.Coordinator,
	domain *domainconfig.DomainConfig,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.TracingMiddleware(tracer),
	)
	if err := commands_handlers.NewMutationHandlers(coordinator, domain, logger).Register(commandBus); err != nil {
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with every read registered
func ProvideQueryBus(router *queries.Router, logger *zap.Logger) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(querybus.LoggingMiddleware(logger, slowQuery))
	if err := queries_handlers.NewReadHandlers(router, logger).Register(queryBus); err != nil {
		return nil, fmt.Errorf("failed to register query handlers: %w", err)
	}
	return queryBus, nil
}

// ProvideTokenManager creates the session token manager. Without a secret
// sessions cannot be issued and write routes stay open.
func ProvideTokenManager(cfg *config.Config, logger *zap.Logger) (*auth.TokenManager, error) {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; authentication is disabled")
		return nil, nil
	}
	return auth.NewTokenManager(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideRateLimiter creates the per-caller rate limiter. The redis limiter
// is shared by every instance; the memory one is per process.
func ProvideRateLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.RateLimiter, func(), error) {
	switch cfg.RateLimitBackend {
	case config.RateLimitNone:
		logger.Warn("Request rate limiting is disabled")
		return nil, func() {}, nil
	case config.RateLimitRedis:
		client, err := dedup.DialRedis(ctx, dedup.RedisConfig{
			URL:     cfg.RedisURL,
			Address: cfg.RedisAddr,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("rate limiter: %w", err)
		}
		return auth.NewRedisWindowLimiter(client, cfg.RateLimit, cfg.RateWindow), func() { _ = client.Close() }, nil
	default:
		return auth.NewSlidingWindowLimiter(cfg.RateLimit, cfg.RateWindow), func() {}, nil
	}
}

// ProvideReadiness checks the store with a point read of a user that does
// not exist
func ProvideReadiness(router *queries.Router) rest.ReadinessCheck {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		_, err := router.User(ctx, uuid.New())
		if err != nil && !errors.IsNotFound(err) {
			return err
		}
		return nil
	}
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	cfg *config.Config,
	tokens *auth.TokenManager,
	limiter auth.RateLimiter,
	metrics *observability.Collector,
	gatherer *prometheus.Registry,
	ready rest.ReadinessCheck,
	logger *zap.Logger,
) *rest.Router {
	opts := rest.RouterOptions{
		Tokens:  tokens,
		Limiter: limiter,
		Metrics: metrics,
		Ready:   ready,
	}
	if metrics != nil {
		opts.Gatherer = gatherer
	}
	return rest.NewRouter(commandBus, queryBus, cfg, opts, logger)
}
