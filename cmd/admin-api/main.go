// Package main provides the practice admin API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/api/handlers"
	"github.com/praxisdesk/go-praxis/internal/api/middleware"
	"github.com/praxisdesk/go-praxis/internal/infrastructure/postgres"
	"github.com/praxisdesk/go-praxis/internal/infrastructure/redpanda"
	"github.com/praxisdesk/go-praxis/internal/observability/metrics"
	"github.com/praxisdesk/go-praxis/internal/observability/tracing"
	"github.com/praxisdesk/go-praxis/internal/records"
	"github.com/praxisdesk/go-praxis/internal/settlement"
	"github.com/praxisdesk/go-praxis/internal/status"
)

// Config holds application configuration
type Config struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers []string
	APIKeys      map[string]string
	OTLPEndpoint string
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := loadConfig()
	m := metrics.New()

	ctx := context.Background()

	// Tracing is best-effort; the API serves without a collector.
	tracingCfg := tracing.DefaultConfig("admin-api")
	if cfg.OTLPEndpoint != "" {
		tracingCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	provider, err := tracing.Init(ctx, tracingCfg)
	if err != nil {
		logger.Warn("tracing init failed, continuing without", zap.Error(err))
	} else {
		defer provider.Shutdown(context.Background())
	}

	// Without DATABASE_URL the API runs in prototype mode: in-memory
	// overrides, no outbox.
	var (
		store        status.Store = status.NewMemoryStore()
		engineSink   status.EventSink
		composerSink settlement.EventSink
		pool         *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("database ping failed", zap.Error(err))
		}
		logger.Info("connected to database")

		pgStore := postgres.NewStatusStore(pool, logger)
		if err := pgStore.Load(ctx); err != nil {
			logger.Fatal("failed to load status overrides", zap.Error(err))
		}
		store = pgStore

		sink := postgres.NewOutboxSink(pool, logger)
		engineSink = sink
		composerSink = sink
	} else {
		logger.Info("running without database, status overrides are in-memory")
	}

	source := records.NewMockSource()
	engine := status.NewEngine(store, engineSink, m, logger)
	composer := settlement.NewComposer(composerSink, m, logger)
	composer.Restore(source.LoadCopaymentInfos())

	// Letter jobs are only enqueued when brokers are configured.
	var letters handlers.LetterPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producerCfg := redpanda.DefaultProducerConfig()
		producerCfg.Brokers = cfg.KafkaBrokers

		producer, err := redpanda.NewProducer(producerCfg, logger)
		if err != nil {
			logger.Fatal("producer creation failed", zap.Error(err))
		}
		defer producer.Close()
		letters = producer
		logger.Info("connected to brokers", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	voHandler := handlers.NewVOHandler(source, engine, composer, logger)
	settlementHandler := handlers.NewSettlementHandler(source, engine, composer, letters, redpanda.TopicLetters, logger)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("admin-api"))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))
		r.Mount("/prescriptions", voHandler.Routes())
		r.Mount("/settlement", settlementHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting admin API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		brokers = strings.Split(b, ",")
	}

	apiKeys := map[string]string{
		"demo-api-key-12345": "demo-client",
	}
	if key := os.Getenv("API_KEY"); key != "" {
		apiKeys[key] = "env-client"
	}

	return Config{
		Port:         port,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: brokers,
		APIKeys:      apiKeys,
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"admin-api","version":"0.3.0"}`)
}
