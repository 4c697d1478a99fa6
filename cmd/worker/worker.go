package main

import (
	"context"
	"log"

	"github.com/korrelate/ingestcore/internal/collab"
	"github.com/korrelate/ingestcore/internal/config"
	"github.com/korrelate/ingestcore/internal/logger"
	"github.com/korrelate/ingestcore/internal/queue"

	"github.com/hibiken/asynq"
)

// worker is the standalone process for the heavy lane: it pulls
// document:convert tasks off the "heavy" queue, runs them through a
// Converter, and reports the outcome back over HeavyWorkerProtocol.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)
	logger.Info("heavy worker starting")

	if cfg.ConverterCallbackURL == "" {
		log.Fatal("CONVERTER_CALLBACK_URL must point at the API server's /internal/callback")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	converter := collab.NewLocalConverter()
	heavyWorker := queue.NewHeavyWorker(converter, cfg.ConverterCallbackURL, logger.Logger)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.MaxConcurrentJobs,
			Queues: map[string]int{
				"heavy": 1,
			},
			RetryDelayFunc: queue.RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("heavy lane task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskHeavyLaneConvert, heavyWorker.ProcessTask)

	logger.Info("heavy worker ready", "concurrency", cfg.MaxConcurrentJobs, "redis", cfg.RedisURL)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
