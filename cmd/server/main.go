package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gold-rush/internal/bot"
	"gold-rush/internal/cache"
	"gold-rush/internal/config"
	"gold-rush/internal/db"
	"gold-rush/internal/handler"
	"gold-rush/internal/job"
	"gold-rush/internal/normalizer"
	"gold-rush/internal/observability"
	"gold-rush/internal/provider"
	"gold-rush/internal/repository"
	"gold-rush/internal/service"
	"gold-rush/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	_ "gold-rush/docs"
)

const (
	serviceName           = "gold-rush"
	tracerShutdownTimeout = 5 * time.Second
)

type snapshotStore interface {
	service.SnapshotReader
	service.SnapshotWriter
}

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newSnapshotStoreFunc   = newSnapshotStore
	newQuoteClientFunc     = newQuoteClient
	newIngestionPollerFunc = job.NewIngestionPoller
	startPollerFunc        = func(p *job.IngestionPoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc   = func(query bot.MetalQuerier) { bot.StartTelegramBot(query) }
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	shutdownTracerFunc     = func(tp *sdktrace.TracerProvider, ctx context.Context) error { return tp.Shutdown(ctx) }
)

// newSnapshotStore picks Postgres when a pool is available and falls back to
// the in-process store otherwise.
func newSnapshotStore(ctx context.Context, tracer trace.Tracer) (snapshotStore, error) {
	if db.Pool == nil {
		log.Println("Using in-memory snapshot store")
		return repository.NewMemorySnapshotRepository(), nil
	}
	repo := repository.NewSnapshotRepository(db.Pool, tracer)
	if err := repo.RunMigrations(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func newQuoteClient(tracer trace.Tracer, metrics *observability.Metrics, cfg *config.Config) service.QuoteClient {
	return provider.NewAlphaVantageClient(tracer, metrics, cfg.AlphaVantageBaseURL, cfg.AlphaVantageRatePerMin)
}

// redisClient keeps a nil *redis.Client from becoming a non-nil interface.
func redisClient() service.RedisClient {
	if cache.Client == nil {
		return nil
	}
	return cache.Client
}

// @title           Gold Rush API
// @version         1.0
// @description     Precious metals spot price ingestion and query service.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)
	defer db.Close()

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracerFunc(tp, shutdownCtx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// Create store and run migrations
	store, err := newSnapshotStoreFunc(ctx, tracer)
	if err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	queryService := service.NewMetalQueryService(tracer, store, redisClient())

	quoteClient := newQuoteClientFunc(tracer, metrics, cfg)
	ingestion := service.NewIngestionService(tracer, quoteClient, normalizer.New(), store, queryService, metrics)

	// Scheduled ingestion (stopped by ctx cancel)
	if cfg.IngestEnabled {
		poller := newIngestionPollerFunc(tracer, ingestion, cfg.Symbols, cfg.AlphaVantageAPIKey, cfg.IngestPollSecs)
		startPollerFunc(poller, ctx)
	} else {
		log.Println("Scheduled ingestion disabled (set INGEST_ENABLED=true to enable)")
	}

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(queryService)

	// Create handlers and routes
	h := handler.New(tracer, queryService)
	h.SetIngestion(ingestion, cfg.Symbols, cfg.AlphaVantageAPIKey)
	h.SetAdminAPIKey(cfg.AdminAPIKey)
	h.SetMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r := newRouterFunc()
	r.Use(otelgin.Middleware(serviceName))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
