package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/kadkongta/crowd-insight/internal/aggregation"
	"github.com/kadkongta/crowd-insight/internal/alert"
	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/httpapi"
	"github.com/kadkongta/crowd-insight/internal/ingest"
	"github.com/kadkongta/crowd-insight/internal/notify"
	"github.com/kadkongta/crowd-insight/internal/queue"
	"github.com/kadkongta/crowd-insight/internal/tracker"
	"github.com/kadkongta/crowd-insight/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Crowd Insight Server...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create the sample topic
	if err := queue.CreateTopic(
		cfg.Kafka.Brokers,
		cfg.Kafka.TopicSamples,
		cfg.Kafka.NumPartitions,
		1, // replication factor
	); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	// Connect to Redis for alert state
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Current-state tracker, seeded from the latest stored sample so a
	// restart is not blind until the next ingest
	trk := tracker.New(cfg.Tracker.StaleAfter)
	if latest, err := db.LatestSample(); err != nil {
		fmt.Printf("Note: Could not seed tracker: %v\n", err)
	} else if latest != nil {
		trk.Update(latest.Count, latest.RecordedAt, tracker.Source(latest.Source))
		fmt.Printf("Tracker seeded from sample at %s\n", latest.RecordedAt.Format("2006-01-02 15:04:05"))
	}

	// Alert engine
	lineClient := notify.NewLineClient(&cfg.Line)
	engine := alert.NewEngine(
		alert.NewRedisStateStore(redisClient),
		lineClient,
		alert.Thresholds{
			AdvisoryAt: cfg.Alert.AdvisoryAt,
			WarningAt:  cfg.Alert.WarningAt,
			CriticalAt: cfg.Alert.CriticalAt,
		},
	)
	engine.SetNotifyDeescalation(cfg.Alert.NotifyDeescalation)
	engine.SetRetryPolicy(cfg.Alert.NotifyMaxAttempts, cfg.Alert.NotifyInitialBackoff)
	engine.Start()
	defer engine.Stop()
	fmt.Println("Alert engine started")

	// Ingestion gateway with the Kafka store handoff
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSamples)
	defer producer.Close()

	gateway := ingest.NewGateway(trk, engine, producer)
	gateway.Start()
	defer gateway.Stop()
	fmt.Println("Ingestion gateway started")

	// Pull fallback or synthetic source
	switch {
	case cfg.Ingest.SourceURL != "":
		poller := ingest.NewPoller(gateway, cfg.Ingest.SourceURL, cfg.Ingest.PollInterval, cfg.Ingest.PollTimeout)
		poller.Start()
		defer poller.Stop()
		fmt.Printf("Polling counting source every %s\n", cfg.Ingest.PollInterval)
	case cfg.Ingest.Synthetic:
		synthetic := ingest.NewSynthetic(gateway, cfg.Ingest.Capacity, cfg.Ingest.PollInterval)
		synthetic.Start()
		defer synthetic.Stop()
		fmt.Println("Synthetic source enabled (no real feed configured)")
	default:
		fmt.Println("Push-only ingestion (no poll source configured)")
	}

	// HTTP API
	api := httpapi.NewServer(gateway, trk, aggregation.NewEngine(db), db)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: api.Router(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	fmt.Println("\n✓ Crowd Insight Server is running")
	fmt.Printf("✓ HTTP API listening on port %d\n", cfg.HTTP.Port)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
	_ = httpServer.Shutdown(ctx)
}
