package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/broker"
	"gatekeeper/internal/config"
	"gatekeeper/internal/config_handler"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/engine"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/moderation"
	"gatekeeper/internal/rules"
	"gatekeeper/pkg/bootstrap"
	"gatekeeper/pkg/health"
	"gatekeeper/pkg/logging"
	"gatekeeper/pkg/metrics"
	"gatekeeper/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	ruleStore      *rules.CachedStore
	ruleCounter    config_handler.RuleCounter
	orchestrator   *moderation.Orchestrator
	configHandler  *config_handler.Handler
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("moderation-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker("moderation-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initPipeline()

	tp, err := tracing.Init(a.Config.Tracing, "moderation-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterModerationMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis unavailable, lists fall back to static configuration",
			"error", err,
		)
	} else {
		a.redisClient = rdb
	}

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "MongoDB unavailable, decisions will not be recorded",
			"error", err,
		)
	} else {
		a.mongoClient = mongoClient
	}

	return nil
}

// initPipeline assembles the evaluation chain: list source with fallback,
// cached rule store, condition evaluator and the orchestrator on top.
func (a *App) initPipeline() {
	static := lists.NewStaticSource(a.Config.Moderation.Whitelist, a.Config.Moderation.NameWhitelist)

	var listSource lists.Source = static
	if a.redisClient != nil {
		var primary lists.Source = lists.NewRedisSource(a.redisClient)
		if a.Config.CircuitBreaker.Enabled {
			primary = lists.WrapWithBreaker(primary, a.Config.CircuitBreaker)
		}
		listSource = lists.NewFallbackSource(primary, static, a.Logger)
	}

	var ruleStore rules.Store = rules.DisabledStore{}
	var groupStore config.GroupStore = config.DisabledGroupStore{}
	if a.db != nil && a.Config.Database.Enabled {
		pgStore := rules.NewPostgresStore(a.db)
		a.ruleStore = rules.NewCachedStore(pgStore, rules.DefaultCacheTTL)
		a.ruleCounter = pgStore
		ruleStore = a.ruleStore
		groupStore = config.NewPostgresGroupStore(a.db)
	}

	custom, err := engine.NewCustomEvaluator()
	if err != nil {
		a.Logger.Warnw("Failed to build expression evaluator, custom conditions disabled",
			"error", err,
		)
	}

	eng := engine.New(ruleStore, engine.NewEvaluator(listSource, custom), listSource, a.Logger)

	actionTopic := a.Config.Broker.Kafka.ActionTopic
	if actionTopic == "" {
		actionTopic = constants.DefaultActionTopic
	}
	adapter := moderation.NewActionPublisher(a.Producer, actionTopic, "moderation-service")

	opts := []moderation.Option{}
	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		opts = append(opts, moderation.WithRecorder(audit.NewMongoRecorder(a.mongoClient.Database(dbName))))
	}

	a.orchestrator = moderation.NewOrchestrator(
		a.Config.Moderation, groupStore, eng, adapter, a.Logger, opts...,
	)

	if a.ruleStore != nil {
		a.configHandler = config_handler.NewHandler(a.ruleStore, a.Logger).
			WithRuleCounter(a.ruleCounter, metrics.SetActiveRules)
	}
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.redisClient != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redisClient))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	if a.ruleCounter != nil {
		if count, err := a.ruleCounter.CountEnabled(ctx); err == nil {
			metrics.SetActiveRules(count)
		}
	}

	if a.server != nil {
		g.Go(func() error {
			a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
			if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	if a.configHandler != nil && a.Config.Broker.Kafka.ConfigUpdateTopic != "" {
		configConsumer, err := broker.NewConsumer(a.Config.Broker, a.Logger)
		if err != nil {
			configCtx := logging.WithServiceName(ctx, "moderation-service")
			a.Logger.WarnwCtx(configCtx, "Failed to create config event consumer, cache invalidation disabled",
				"error", err,
			)
		} else {
			configConsumer.SetServiceName("moderation-service")
			defer configConsumer.Close()

			g.Go(func() error {
				configCtx := logging.WithServiceName(gCtx, "moderation-service")
				a.Logger.InfowCtx(configCtx, "Starting config update event consumer",
					"topic", a.Config.Broker.Kafka.ConfigUpdateTopic,
				)
				return configConsumer.Consume(gCtx, a.Config.Broker.Kafka.ConfigUpdateTopic, a.configHandler.HandleConfigUpdateEvent)
			})
		}
	}

	inputTopic := a.Config.Broker.Kafka.InputTopic
	if inputTopic == "" {
		inputTopic = constants.DefaultJoinRequestTopic
	}
	g.Go(func() error {
		return a.Consumer.Consume(gCtx, inputTopic, a.orchestrator.Handle)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "moderation-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down moderation service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient, a.db, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
