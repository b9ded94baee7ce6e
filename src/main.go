package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/joho/godotenv"

	"github.com/ryansname/drivectl/src/maintenance"
	"github.com/ryansname/drivectl/src/params"
	"github.com/ryansname/drivectl/src/planner"
	"github.com/ryansname/drivectl/src/tasks"
)

// SensorMessage is one inbound bus message
type SensorMessage struct {
	Topic   string
	Payload []byte
}

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// Returned normally: cancelled, or the worker gave up on its own
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			log.Printf("Panic in %s (attempt %d/%d): %v\n", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				log.Printf("%s failed after %d retries, shutting down\n", name, maxRetries)
				cancel()
				return
			}

			log.Printf("%s will retry in %v\n", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func main() {
	log.Println("Starting drivectl...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persistent, err := params.NewRedisStore(cfg.RedisURL, "drivectl:")
	if err != nil {
		log.Fatalf("Failed to open params store: %v", err)
	}
	defer func() { _ = persistent.Close() }()

	backup, err := params.NewRedisStore(cfg.BackupRedisURL, "drivectl:backup:")
	if err != nil {
		log.Fatalf("Failed to open backup store: %v", err)
	}
	defer func() { _ = backup.Close() }()

	memory := params.NewMemoryStore()

	msgChan := make(chan SensorMessage, 100)
	frameChan := make(chan Frame, 1)
	mqttOutgoingChan := make(chan MQTTMessage, 100) // Larger buffer for queuing
	mqttClientChan := make(chan mqtt.Client, 1)     // Buffered to prevent blocking onConnect

	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
	})
	mqttSender := NewMQTTSender(mqttOutgoingChan)

	flags := newRetainedFlags(memory, mqttSender)

	registry := tasks.NewRegistry()
	reboot := maintenance.NewRebootSequencer(
		maintenance.ExecSignaler{Pattern: cfg.UpdaterPattern},
		maintenance.CommandRebooter{Command: cfg.RebootCommand},
	)
	maint := maintenance.New(maintenance.Deps{
		Tasks:        registry,
		Params:       persistent,
		Memory:       flags,
		Assets:       newMQTTAssetManager(mqttSender),
		Reachability: maintenance.NewReachability(cfg.ReachabilityURL),
		Reboot:       reboot,
		Maps: &maintenance.MapUpdater{
			Params:         persistent,
			Memory:         flags,
			MapsDownloaded: maintenance.DirExists(cfg.MapsDir),
		},
		Clock:      maintenance.DefaultMinDate,
		Diagnostic: cfg.Diagnostic(),
	})

	var planChan chan planner.Plan
	if cfg.Debug {
		planChan = make(chan planner.Plan, 10)
	}

	driver := newCycleDriver(cycleDeps{
		Solver:      planner.StockSolver{},
		LongControl: cfg.LongitudinalControl,
		Tasks:       registry,
		Maintenance: maint,
		Params:      persistent,
		Memory:      flags,
		Backup:      backup,
		Sender:      mqttSender,
		PlanOut:     planChan,
	})

	// Subscribers get the current toggles before the first cycle
	if err := driver.publishToggles(ctx); err != nil {
		log.Printf("Failed to publish initial toggles: %v\n", err)
	}

	SafeGo(ctx, cancel, "metrics-server", func(ctx context.Context) {
		if err := metricsServer(ctx, cfg.MetricsAddr); err != nil {
			log.Printf("%v\n", err)
		}
	})

	SafeGo(ctx, cancel, "telemetry-worker", func(ctx context.Context) {
		telemetryWorker(ctx, msgChan, frameChan, memory, cfg.PollTimeout)
	})

	SafeGo(ctx, cancel, "control-cycle-worker", func(ctx context.Context) {
		controlCycleWorker(ctx, frameChan, driver)
	})

	if cfg.Debug {
		statsChan := make(chan DisplayData, 10)
		SafeGo(ctx, cancel, "plan-stats-worker", func(ctx context.Context) {
			planStatsWorker(ctx, planChan, statsChan)
		})
		SafeGo(ctx, cancel, "debug-worker", func(ctx context.Context) {
			debugWorker(ctx, cancel, statsChan, newDebugSession(registry, memory, persistent))
		})
	}

	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, mqttOptions(cfg), msgChan, mqttClientChan)
	})
	log.Println("Workers started")

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Println("\nShutting down...")
	case <-ctx.Done():
		log.Println("\nShutting down due to error...")
	}
	cancel()

	persistent.Flush()
}
