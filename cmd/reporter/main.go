package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadkongta/crowd-insight/internal/aggregation"
	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/notify"
	"github.com/kadkongta/crowd-insight/internal/report"
	"github.com/kadkongta/crowd-insight/internal/timer"
	"github.com/kadkongta/crowd-insight/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Reporter Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Create timer manager
	timerManager := timer.NewTimerManager()
	timerManager.Start()
	defer timerManager.Stop()
	fmt.Println("Timer manager started")

	// Create dispatcher
	dispatcher := report.NewDispatcher(
		db,
		aggregation.NewEngine(db),
		notify.NewWeatherClient(&cfg.Weather),
		notify.NewLineClient(&cfg.Line),
		cfg.Report.WeekendOnly,
	)

	// Schedule the recurring jobs
	scheduleDaily(timerManager, "daily-report", cfg.Report.DailyTime, func() {
		fmt.Println("\n--- Dispatching Daily Report ---")
		if err := dispatcher.Dispatch(context.Background(), time.Now()); err != nil {
			log.Printf("Daily report dispatch failed: %v\n", err)
		}
		fmt.Println("--- Daily Report Complete ---")
	})

	scheduleDaily(timerManager, "early-warning", cfg.Report.WarningTime, func() {
		fmt.Println("\n--- Checking Early Warning ---")
		if err := dispatcher.DispatchEarlyWarning(context.Background()); err != nil {
			log.Printf("Early warning failed: %v\n", err)
		}
		fmt.Println("--- Early Warning Complete ---")
	})

	scheduleDaily(timerManager, "retention-prune", "03:30", func() {
		pruned, err := db.PruneSamples(cfg.Report.RetentionDays)
		if err != nil {
			log.Printf("Retention prune failed: %v\n", err)
			return
		}
		fmt.Printf("Retention prune removed %d samples\n", pruned)
	})

	fmt.Println("\n✓ Reporter Service is running")
	fmt.Printf("✓ Daily report at %s | Early warning at %s | Weekend only: %v\n",
		cfg.Report.DailyTime, cfg.Report.WarningTime, cfg.Report.WeekendOnly)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}

func scheduleDaily(tm *timer.TimerManager, taskID, timeOfDay string, job func()) {
	var scheduleNext func()
	scheduleNext = func() {
		nextRun, err := report.NextRunAt(time.Now(), timeOfDay)
		if err != nil {
			log.Fatalf("Failed to schedule %s: %v", taskID, err)
		}
		fmt.Printf("Next %s scheduled for: %s\n", taskID, nextRun.Format("2006-01-02 15:04:05"))

		callback := func() {
			job()

			// Schedule next run
			scheduleNext()
		}

		tm.Schedule(taskID, nextRun, callback)
	}

	scheduleNext()
}
