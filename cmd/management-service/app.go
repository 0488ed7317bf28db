package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"gatekeeper/internal/audit"
	"gatekeeper/internal/config"
	"gatekeeper/internal/constants"
	"gatekeeper/internal/engine"
	"gatekeeper/internal/lists"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/management"
	"gatekeeper/internal/rules"
	"gatekeeper/pkg/bootstrap"
	"gatekeeper/pkg/health"
	"gatekeeper/pkg/logging"
	"gatekeeper/pkg/metrics"
	"gatekeeper/pkg/middleware"
	"gatekeeper/pkg/ratelimit"
	"gatekeeper/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redisClient    *redis.Client
	mongoClient    *mongo.Client
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("management-service")
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

	if a.Config.Broker.Kafka.ConfigUpdateTopic != "" {
		if err := a.InitProducerOnly("management-service"); err != nil {
			a.Logger.WarnwCtx(ctx, "Failed to create config event producer, config events disabled",
				"error", err,
			)
		}
	}

	tp, err := tracing.Init(a.Config.Tracing, "management-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initRouter(); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Redis unavailable, list management endpoints will be degraded",
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
		a.Logger.WarnwCtx(ctx, "MongoDB unavailable, decision log endpoints will be degraded",
			"error", err,
		)
	} else {
		a.mongoClient = mongoClient
	}

	return nil
}

func (a *App) initRouter() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("management-service"))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())

	if a.Config.Management.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromSettings(a.Config.Management.RateLimit)
		router.Use(ratelimit.Middleware(rateLimitConfig))
		a.Logger.Infow("Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	handler := management.NewHandler(a.buildService(), a.Logger)
	handler.RegisterRoutes(router)

	metrics.RegisterManagementMetrics()

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

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.router = router
	return nil
}

// buildService assembles the management service from whatever backends came
// up. Missing backends degrade to disabled stores so the API surface stays
// consistent and reports storage as unavailable instead of 404ing.
func (a *App) buildService() management.Service {
	var ruleStore rules.Store = rules.DisabledStore{}
	var groupStore config.GroupStore = config.DisabledGroupStore{}
	if a.db != nil && a.Config.Database.Enabled {
		ruleStore = rules.NewPostgresStore(a.db)
		groupStore = config.NewPostgresGroupStore(a.db)
	}

	var listSource lists.Source = lists.NewStaticSource(
		a.Config.Moderation.Whitelist, a.Config.Moderation.NameWhitelist,
	)
	if a.redisClient != nil {
		listSource = lists.NewRedisSource(a.redisClient)
	}

	opts := []management.ServiceOption{}

	if a.db != nil && a.Config.Database.Enabled {
		opts = append(opts, management.WithVersioning(management.NewVersioningRepository(a.db)))
	}

	if a.Producer != nil {
		producer := management.NewConfigEventProducer(a.Producer, a.Config.Broker.Kafka.ConfigUpdateTopic)
		opts = append(opts, management.WithConfigEvents(producer))
		a.Logger.Infow("Config event producer initialized",
			"topic", a.Config.Broker.Kafka.ConfigUpdateTopic,
		)
	}

	if custom, err := engine.NewCustomEvaluator(); err == nil {
		opts = append(opts, management.WithExpressionValidator(custom.ValidateExpression))
	} else {
		a.Logger.Warnw("Failed to build expression validator, custom conditions will be rejected",
			"error", err,
		)
	}

	if a.mongoClient != nil {
		dbName := a.Config.Database.MongoDB.Database
		if dbName == "" {
			dbName = constants.DefaultMongoDBName
		}
		opts = append(opts, management.WithDecisionLog(audit.NewMongoRecorder(a.mongoClient.Database(dbName))))
	}

	return management.NewService(ruleStore, listSource, groupStore, a.Config.Moderation, opts...)
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "management-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down management service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			serverCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(serverCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
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
