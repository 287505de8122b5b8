// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"upsell-workers/configs"
	"upsell-workers/internal/api"
	"upsell-workers/internal/common/auth"
	awsclient "upsell-workers/internal/common/aws"
	"upsell-workers/internal/common/camunda"
	"upsell-workers/internal/common/config"
	"upsell-workers/internal/common/database"
	"upsell-workers/internal/common/logger"
	"upsell-workers/internal/common/observability"
	"upsell-workers/internal/common/validation"
	"upsell-workers/internal/upsell"
	"upsell-workers/pkg/registry"

	gum "upsell-workers/internal/workers/upsell/get-upsell-metadata"
	lsh "upsell-workers/internal/workers/upsell/list-simulation-history"
	rcu "upsell-workers/internal/workers/upsell/resolve-cart-upsells"
	ssu "upsell-workers/internal/workers/upsell/simulate-shopper-upsells"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// intentHeuristics merges the configured overrides over the built-in intent
// scoring defaults.
func intentHeuristics(cfg config.UpsellConfig) (*upsell.IntentHeuristics, error) {
	ranges := make(map[string]upsell.PriceRange, len(cfg.IntentHeuristics.BudgetRanges))
	for budget, r := range cfg.IntentHeuristics.BudgetRanges {
		ranges[budget] = upsell.PriceRange{Min: r.Min, Max: r.Max}
	}
	h, err := upsell.DefaultIntentHeuristics().Merge(cfg.IntentHeuristics.Weights, ranges)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewForService(cfg.Logging.Level, cfg.Logging.Format, cfg.App.Name, cfg.App.Version)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting upsell worker manager...", zap.String("environment", cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obsOpts := []observability.Option{observability.WithSampleRatio(cfg.Tracing.SampleRatio)}
	if cfg.Tracing.Enabled {
		exporter, err := observability.NewTraceExporter(ctx, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
		if err != nil {
			zapLog.Fatal("trace exporter failed", zap.Error(err))
		}
		obsOpts = append(obsOpts, observability.WithSpanExporter(exporter))
		zapLog.Info("Tracing enabled", zap.String("endpoint", cfg.Tracing.Endpoint), zap.Float64("sampleRatio", cfg.Tracing.SampleRatio))
	}
	obs := observability.New(cfg.App.Name, obsOpts...)
	defer obs.Shutdown()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	checks := map[string]api.ReadinessCheck{"postgres": pg.Ping}

	history := upsell.NewPostgresHistoryStore(pg.DB)
	if err := history.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("simulation history schema failed", zap.Error(err))
	}

	// --- Signal source ---
	var source upsell.SignalSource
	switch cfg.Upsell.SignalSource.Type {
	case config.SignalSourceElasticsearch:
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")

		checks["elasticsearch"] = esClient.Ping
		source = upsell.NewElasticsearchSource(esClient.Client, cfg.Upsell.SignalSource.Index, cfg.Upsell.SignalSource.MaxDocs)
	default:
		source = upsell.NewPostgresSource(pg.DB)
	}

	if cfg.Upsell.Breaker.Enabled {
		source = upsell.NewBreakerSource(source, upsell.BreakerConfig{
			FailureThreshold: uint32(cfg.Upsell.Breaker.FailureThreshold),
			OpenTimeout:      config.GetDuration(cfg.Upsell.Breaker.OpenTimeout),
		}, log)
	}

	// --- Metadata cache ---
	var metadata upsell.MetadataBuilder = upsell.NewBuilder(source, log)
	policy := upsell.CachePolicy{
		TTL:          cfg.Upsell.CacheTTL(),
		Key:          cfg.Upsell.Cache.Key,
		BuildTimeout: config.GetDuration(cfg.Upsell.Cache.BuildTimeout),
	}

	switch cfg.Upsell.Cache.Store {
	case config.CacheStoreMemory:
		metadata = upsell.NewCachingBuilder(metadata, upsell.NewMemoryCache(), policy, log)
	case config.CacheStoreRedis:
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")

		checks["redis"] = redis.Ping
		metadata = upsell.NewCachingBuilder(metadata, upsell.NewRedisCache(redis.Client, policy.Key), policy, log)
	}

	// --- Service ---
	opts := []upsell.ServiceOption{upsell.WithTracer(obs.Tracer())}
	if cfg.Upsell.Events.Enabled && cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := awsclient.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		opts = append(opts, upsell.WithEventPublisher(upsell.NewSNSEventPublisher(snsClient, cfg.Upsell.Events.TopicARN)))
		zapLog.Info("Simulation events enabled", zap.String("topic", cfg.Upsell.Events.TopicARN))
	}

	heuristics, err := intentHeuristics(cfg.Upsell)
	if err != nil {
		zapLog.Fatal("invalid upsell.intent_heuristics", zap.Error(err))
	}

	service := upsell.NewService(metadata, history, upsell.ServiceConfig{
		Limits:            upsell.Limits{Default: cfg.Upsell.DefaultLimit, Max: cfg.Upsell.MaxLimit},
		SyntheticCartSize: cfg.Upsell.SyntheticCartSize,
		DefaultCategories: cfg.Upsell.DefaultCategories,
		IntentHeuristics:  heuristics,
	}, log, opts...)

	// --- Input schemas ---
	reg, err := registry.LoadOrDefault(cfg.Registry.Path, configs.ActivityRegistry)
	if err != nil {
		zapLog.Fatal("activity registry load failed", zap.Error(err))
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		zapLog.Fatal("activity schema compile failed", zap.Error(err))
	}

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			RetryConfig: &camunda.RetryConfig{
				MaxRetries: 10,
				BaseDelay:  2 * time.Second,
				MaxDelay:   30 * time.Second,
			},
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")

		checks["zeebe"] = zeebe.HealthCheck
		client := zeebe.GetClient()

		start := func(taskType string, handler camunda.JobHandler) {
			w := camunda.StartWorker(client, taskType, config.GetWorkerConfig(cfg, taskType), camunda.Instrument(handler, obs), zapLog)
			if w != nil {
				workers = append(workers, w)
			}
		}

		start(rcu.TaskType, rcu.NewHandler(rcu.LoadConfig(config.GetWorkerConfig(cfg, rcu.TaskType)), service, validator, log))
		start(ssu.TaskType, ssu.NewHandler(ssu.LoadConfig(config.GetWorkerConfig(cfg, ssu.TaskType)), service, validator, log))
		start(lsh.TaskType, lsh.NewHandler(lsh.LoadConfig(config.GetWorkerConfig(cfg, lsh.TaskType)), service, validator, log))
		start(gum.TaskType, gum.NewHandler(gum.LoadConfig(config.GetWorkerConfig(cfg, gum.TaskType)), service, log))

		zapLog.Info("Upsell workers registered", zap.Int("count", len(workers)))
	} else {
		zapLog.Warn("Camunda disabled, serving HTTP only")
	}

	// --- HTTP API ---
	apiErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		var tokens auth.TokenValidator
		if cfg.Auth.Keycloak.Enabled {
			tokens = auth.NewKeycloakClient(
				cfg.Auth.Keycloak.URL,
				cfg.Auth.Keycloak.Realm,
				cfg.Auth.Keycloak.ClientID,
				cfg.Auth.Keycloak.ClientSecret,
			)
		} else {
			zapLog.Warn("Keycloak disabled, admin routes are unauthenticated")
		}

		server := api.NewServer(service, validator, tokens, api.Options{
			RequestTimeout:    config.GetDuration(cfg.HTTP.RequestTimeout),
			RateLimitRequests: cfg.HTTP.RateLimit.Requests,
			RateLimitWindow:   config.GetDuration(cfg.HTTP.RateLimit.Window),
			AdminRole:         cfg.Auth.Keycloak.AdminRole,
			Checks:            checks,
		}, log)

		go func() {
			apiErr <- server.ListenAndServe(ctx, cfg.HTTP.Address, 15*time.Second)
		}()
	}

	// --- Graceful Shutdown ---
	apiStopped := !cfg.HTTP.Enabled
	select {
	case <-ctx.Done():
		zapLog.Info("Shutdown signal received, stopping workers...")
	case err := <-apiErr:
		apiStopped = true
		if err != nil {
			zapLog.Error("HTTP API failed, stopping workers...", zap.Error(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if !apiStopped {
		select {
		case err := <-apiErr:
			if err != nil {
				zapLog.Warn("HTTP API shutdown incomplete", zap.Error(err))
			}
		case <-shutdownCtx.Done():
		}
	}

	zapLog.Info("Worker manager stopped")
}
