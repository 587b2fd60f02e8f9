// Package main is the outbox relay worker: it drains the transactional
// outbox and publishes events to redis pub/sub channels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"stockpilot/internal/infrastructure/notify"
	"stockpilot/internal/infrastructure/storage/postgres"
	"stockpilot/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting stockpilot outbox worker")

	// --- Database ---
	dsn := mustEnv("DATABASE_URL")
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	// --- Redis ---
	redisClient, err := notify.NewClient(notify.RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	})
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()
	log.Info("redis connection established")

	notifier := notify.NewRedisNotifier(redisClient, getEnv("EVENT_CHANNEL_PREFIX", ""))

	batchSize := getEnvInt("OUTBOX_BATCH_SIZE", 100)
	relay := postgres.NewOutboxRelay(pool.Unwrap(), batchSize, notifier)

	pollInterval := getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second)
	dlqInterval := getEnvDuration("OUTBOX_DLQ_INTERVAL", 5*time.Minute)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	dlqTicker := time.NewTicker(dlqInterval)
	defer dlqTicker.Stop()

	log.Infow("worker running",
		"batch_size", batchSize,
		"poll_interval", pollInterval,
		"dlq_interval", dlqInterval,
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return

		case <-ticker.C:
			processed, err := relay.ProcessBatch(ctx)
			if err != nil {
				log.Errorw("outbox batch failed", "error", err)
				continue
			}
			if processed > 0 {
				log.Infow("outbox batch processed", "count", processed)
			}

		case <-dlqTicker.C:
			moved, err := relay.MoveToDLQ(ctx)
			if err != nil {
				log.Errorw("dlq sweep failed", "error", err)
				continue
			}
			if moved > 0 {
				log.Warnw("messages moved to dlq", "count", moved)
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
