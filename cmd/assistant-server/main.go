// cmd/assistant-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentic-assistant/internal/common/archive"
	"agentic-assistant/internal/common/camunda"
	"agentic-assistant/internal/common/config"
	"agentic-assistant/internal/common/database"
	"agentic-assistant/internal/common/extraction"
	"agentic-assistant/internal/common/genai"
	"agentic-assistant/internal/common/ledger"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/common/observability"
	"agentic-assistant/internal/common/session"
	"agentic-assistant/internal/pipeline"
	"agentic-assistant/internal/server"
	buildresponse "agentic-assistant/internal/workers/assistant/build-response"
	estimatecost "agentic-assistant/internal/workers/assistant/estimate-cost"
	executetask "agentic-assistant/internal/workers/assistant/execute-task"
	planintent "agentic-assistant/internal/workers/assistant/plan-intent"
	processrequest "agentic-assistant/internal/workers/assistant/process-request"
	"agentic-assistant/pkg/registry"

	"go.uber.org/zap"
)

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
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, logger.Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assistant server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]server.HealthCheck{}

	// --- Redis, when a store lives there ---
	var redis *database.RedisClient
	if cfg.Session.Backend == config.BackendRedis || cfg.Ledger.Backend == config.BackendRedis {
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
		checks["redis"] = redis.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- PostgreSQL, when the ledger lives there ---
	var pg *database.PostgresClient
	if cfg.Ledger.Backend == config.BackendPostgres {
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
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Elasticsearch, when archiving is on ---
	var esClient *database.ElasticsearchClient
	if cfg.Archive.Enabled {
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
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	sessions, err := newSessionStore(cfg, redis, log)
	if err != nil {
		zapLog.Fatal("session store init failed", zap.Error(err))
	}
	costs, err := newLedger(ctx, cfg, redis, pg)
	if err != nil {
		zapLog.Fatal("ledger init failed", zap.Error(err))
	}
	var archiver archive.Archiver
	if esClient != nil {
		archiver = archive.NewElasticsearchArchiver(esClient.Client, cfg.Archive.Index)
	}

	// --- Task registry ---
	reg, err := loadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("task registry load failed", zap.Error(err))
	}
	if errs := reg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			zapLog.Error("task registry invalid", zap.Error(e))
		}
		os.Exit(1)
	}

	// --- External service clients ---
	model := genai.NewClient(&genai.Config{
		BaseURL:    cfg.APIs.GenAI.BaseURL,
		APIKey:     cfg.APIs.GenAI.APIKey,
		Timeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries: cfg.APIs.GenAI.MaxRetries,
	}, log)

	gateway := extraction.NewGateway(&extraction.Config{
		BaseURL:      cfg.APIs.Extraction.BaseURL,
		APIKey:       cfg.APIs.Extraction.APIKey,
		Timeout:      config.GetDuration(cfg.APIs.Extraction.Timeout),
		MaxFileBytes: int64(cfg.APIs.Extraction.MaxFileMB) << 20,
	}, log)

	zapLog.Info("All external service clients initialized")

	// --- Stage handlers ---
	planner := planintent.NewHandler(planintent.LoadConfig(), reg, log)
	estimator := estimatecost.NewHandler(estimatecost.LoadConfig(cfg.Cost), reg, log)
	executorCfg := executetask.LoadConfig(cfg.Cost)
	if cfg.APIs.GenAI.Timeout > 0 {
		executorCfg.Timeout = config.GetDuration(cfg.APIs.GenAI.Timeout)
	}
	executor, err := executetask.NewHandler(executorCfg, reg, model, log)
	if err != nil {
		zapLog.Fatal("executor init failed", zap.Error(err))
	}
	assembler := buildresponse.NewHandler(buildresponse.LoadConfig(), log)

	p, err := pipeline.New(pipeline.Options{
		Extractor:     gateway,
		Planner:       planner,
		Estimator:     estimator,
		Executor:      executor,
		Assembler:     assembler,
		Sessions:      sessions,
		Ledger:        costs,
		Archiver:      archiver,
		Observability: obs,
		Logger:        log,
	})
	if err != nil {
		zapLog.Fatal("pipeline init failed", zap.Error(err))
	}

	// --- Zeebe workers, optional ---
	var workers *camunda.Manager
	if cfg.Camunda.Enabled {
		zb, err := camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			RetryConfig: &camunda.RetryConfig{
				MaxRetries: 10,
				BaseDelay:  2 * time.Second,
				MaxDelay:   30 * time.Second,
			},
		}, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zb.Close()
		checks["zeebe"] = zb.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewManager(zb.Zeebe(), cfg.Camunda, log)
		processCfg := config.GetWorkerConfig(cfg, processrequest.TaskType)
		processor := processrequest.NewHandler(processrequest.LoadConfig(config.GetDuration(processCfg.Timeout)), p, log)

		workers.Register(processrequest.TaskType, processCfg, processor.Handle)
		workers.Register(planintent.TaskType, config.GetWorkerConfig(cfg, planintent.TaskType), planner.Handle)
		workers.Register(estimatecost.TaskType, config.GetWorkerConfig(cfg, estimatecost.TaskType), estimator.Handle)
		workers.Register(executetask.TaskType, config.GetWorkerConfig(cfg, executetask.TaskType), executor.Handle)
		workers.Register(buildresponse.TaskType, config.GetWorkerConfig(cfg, buildresponse.TaskType), assembler.Handle)
	}

	// --- HTTP server ---
	srv := server.New(&server.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.GetDuration(cfg.Server.WriteTimeout),
		RequestTimeout:  config.GetDuration(cfg.Server.RequestTimeout),
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
		Version:         cfg.App.Version,
	}, p, checks, log)

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zapLog.Info("Shutting down assistant server...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if workers != nil {
		workers.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}

	zapLog.Info("Assistant server stopped")
}

func newSessionStore(cfg *config.Config, redis *database.RedisClient, log logger.Logger) (session.Store, error) {
	ttl := config.GetDuration(cfg.Session.TTL)
	switch cfg.Session.Backend {
	case config.BackendRedis:
		if redis == nil {
			return nil, fmt.Errorf("redis session backend selected without a redis client")
		}
		return session.NewRedisStore(redis.Client, cfg.Session.Prefix, ttl, log), nil
	default:
		return session.NewMemoryStore(ttl), nil
	}
}

func newLedger(ctx context.Context, cfg *config.Config, redis *database.RedisClient, pg *database.PostgresClient) (ledger.Ledger, error) {
	switch cfg.Ledger.Backend {
	case config.BackendRedis:
		if redis == nil {
			return nil, fmt.Errorf("redis ledger backend selected without a redis client")
		}
		return ledger.NewRedisLedger(redis.Client, cfg.Ledger.Prefix, config.GetDuration(cfg.Ledger.TTL)), nil
	case config.BackendPostgres:
		if pg == nil {
			return nil, fmt.Errorf("postgres ledger backend selected without a database")
		}
		l := ledger.NewPostgresLedger(pg.DB)
		if err := l.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("apply ledger schema: %w", err)
		}
		return l, nil
	default:
		return ledger.NewMemoryLedger(), nil
	}
}

func loadRegistry(path string) (*registry.TaskRegistry, error) {
	if path == "" {
		return registry.Default()
	}
	return registry.LoadRegistry(path)
}
