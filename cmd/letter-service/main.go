// Package main provides the letter service entry point. Consumes
// settlement letter jobs and renders them through the external letter
// renderer.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/praxisdesk/go-praxis/internal/infrastructure/redpanda"
	"github.com/praxisdesk/go-praxis/internal/observability/metrics"
	"github.com/praxisdesk/go-praxis/internal/render"
	"github.com/praxisdesk/go-praxis/pkg/circuitbreaker"
	"github.com/praxisdesk/go-praxis/pkg/workerpool"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	brokers := []string{"localhost:9092"}
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		brokers = strings.Split(b, ",")
	}

	rendererURL := os.Getenv("RENDERER_URL")
	if rendererURL == "" {
		rendererURL = "http://localhost:8090"
	}

	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9092"
	}

	m := metrics.New()
	renderer := render.NewClient(rendererURL, logger)

	// One breaker guards the renderer; a dead renderer should shed load
	// fast instead of tying up every worker in timeouts.
	breaker := circuitbreaker.New(
		circuitbreaker.DefaultConfig("letter-renderer"),
		m.CircuitBreakerState,
		logger,
	)

	poolCfg := workerpool.DefaultConfig()
	pool, err := workerpool.New(poolCfg, func(ctx context.Context, task *workerpool.Task) error {
		return renderTask(ctx, task, renderer, breaker, m, logger)
	}, logger)
	if err != nil {
		logger.Fatal("worker pool creation failed", zap.Error(err))
	}

	pool.Start()
	defer pool.Stop()

	consumerCfg := redpanda.DefaultConsumerConfig()
	consumerCfg.Brokers = brokers
	consumerCfg.GroupID = "letter-service"
	consumerCfg.Topics = []string{redpanda.TopicLetters}

	consumer, err := redpanda.NewConsumer(consumerCfg, func(ctx context.Context, msg *redpanda.ConsumedMessage) error {
		return pool.Submit(&workerpool.Task{
			ID:      string(msg.Key),
			Payload: msg.Value,
		})
	}, logger)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}

	consumer.Start()
	logger.Info("letter service started",
		zap.Strings("brokers", brokers),
		zap.String("renderer", rendererURL))

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if !pool.IsHealthy() || breaker.IsOpen() {
				http.Error(w, "degraded", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("healthy"))
		})
		if err := http.ListenAndServe(":"+metricsPort, mux); err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	consumer.Stop()
	logger.Info("letter service stopped")
}

func renderTask(ctx context.Context, task *workerpool.Task, renderer *render.Client, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics, logger *zap.Logger) error {
	payload, ok := task.Payload.([]byte)
	if !ok {
		logger.Error("unexpected task payload", zap.String("task_id", task.ID))
		return nil
	}

	var job render.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		// A malformed job will never parse; dropping beats retrying.
		logger.Error("malformed letter job", zap.String("task_id", task.ID), zap.Error(err))
		m.LettersFailed.Inc()
		return nil
	}

	err := breaker.Execute(ctx, func() error {
		return renderer.Render(ctx, &job)
	})
	if err != nil {
		m.LettersFailed.Inc()
		logger.Error("letter render failed",
			zap.String("vo", job.VONumber),
			zap.String("kind", string(job.Kind)),
			zap.Error(err))
		return err
	}

	m.LettersRendered.Inc()
	logger.Info("letter rendered",
		zap.String("vo", job.VONumber),
		zap.String("kind", string(job.Kind)),
		zap.String("invoice", job.InvoiceNumber))
	return nil
}
