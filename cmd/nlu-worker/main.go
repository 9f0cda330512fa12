// cmd/nlu-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"viora-nlu/internal/common/aws"
	"viora-nlu/internal/common/camunda"
	"viora-nlu/internal/common/config"
	"viora-nlu/internal/common/genai"
	"viora-nlu/internal/common/logger"
	"viora-nlu/internal/common/observability"
	"viora-nlu/internal/common/stream"
	"viora-nlu/internal/dispatch"
	"viora-nlu/internal/nlu/pipeline"
	"viora-nlu/internal/nlu/recovery"
	ru "viora-nlu/internal/workers/nlu/route-utterance"
	"viora-nlu/pkg/registry"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting NLU worker",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("envFile", cfg.EnvFile),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	tracing, err := observability.NewTracing(observability.TracingConfig{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
		SampleRatio:    cfg.Observability.SampleRatio,
	})
	if err != nil {
		zapLog.Fatal("tracing setup failed", zap.Error(err))
	}
	defer tracing.Shutdown()

	ctx := context.Background()

	// --- Intent catalog ---
	var contracts *registry.Registry
	if cfg.Catalog.Path != "" {
		contracts, err = registry.LoadFile(cfg.Catalog.Path)
	} else {
		contracts, err = registry.Default()
	}
	if err != nil {
		zapLog.Fatal("intent catalog rejected", zap.Error(err))
	}
	zapLog.Info("Intent catalog loaded",
		zap.String("catalogVersion", contracts.Version()),
		zap.Int("intents", contracts.Len()),
	)

	core := pipeline.New(contracts, pipeline.Options{
		Recovery: recovery.Options{AcceptTruncatedStrings: cfg.Recovery.AcceptTruncatedStrings},
	}, log)

	// --- Model client ---
	var generator pipeline.Generator
	if cfg.Model.BaseURL != "" {
		prompt, err := genai.LoadSystemPrompt(cfg.Model.SystemPromptPath)
		if err != nil {
			zapLog.Fatal("system prompt load failed", zap.Error(err))
		}
		generator = genai.NewClient(genai.Config{
			BaseURL:      cfg.Model.BaseURL,
			APIKey:       cfg.Model.APIKey,
			Timeout:      config.GetDuration(cfg.Model.Timeout),
			MaxRetries:   cfg.Model.MaxRetries,
			MaxNewTokens: cfg.Model.MaxNewTokens,
			SystemPrompt: prompt,
		}, log)
	} else {
		zapLog.Warn("model.base_url not set; only rawText jobs can be routed")
	}

	// --- Dispatch targets ---
	var targets dispatch.Multi

	if cfg.Dispatch.Stream.Enabled {
		var redisClient *stream.RedisClient
		err = retryWithBackoff(func() error {
			redisClient = stream.NewRedis(cfg.Redis)
			if err := redisClient.Ping(ctx); err != nil {
				redisClient.Close()
				return err
			}
			return nil
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redisClient.Close()
		targets = append(targets, dispatch.NewStreamDispatcher(redisClient, cfg.Dispatch.Stream.Key, cfg.Dispatch.Stream.MaxLen, log))
		zapLog.Info("Redis stream dispatch enabled", zap.String("stream", cfg.Dispatch.Stream.Key))
	}

	if cfg.Dispatch.Topic.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Dispatch.Topic.Region, cfg.Dispatch.Topic.TopicARN)
		if err != nil {
			zapLog.Fatal("sns client setup failed", zap.Error(err))
		}
		targets = append(targets, dispatch.NewTopicDispatcher(snsClient, log))
		zapLog.Info("SNS topic dispatch enabled", zap.String("topicArn", snsClient.TopicARN()))
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: cfg.Camunda.UsePlaintext,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	var workers []*camunda.Worker
	if config.IsWorkerEnabled(cfg, ru.TaskType) {
		handler, err := ru.NewHandler(ru.HandlerOptions{
			Config:        ru.LoadConfig(cfg),
			Core:          core,
			Generator:     generator,
			Dispatcher:    targets,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create route-utterance handler", zap.Error(err))
		}
		wcfg := config.GetWorkerConfig(cfg, ru.TaskType)
		workers = append(workers, camunda.StartWorker(zeebe.Zeebe(), camunda.WorkerOptions{
			TaskType:      ru.TaskType,
			MaxJobsActive: wcfg.MaxJobsActive,
			Concurrency:   wcfg.MaxJobsActive,
			Timeout:       config.GetDuration(wcfg.Timeout),
		}, handler, log))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", ru.TaskType))
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         status,
			"catalogVersion": contracts.Version(),
			"time":           time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Observability.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping metrics server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("NLU worker stopped gracefully")
}
