package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/scheduler"
	"fintrack/internal/shared/config"
	"fintrack/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()

	// Telemetry (optional)
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	deps, err := NewDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()
	log.Println("Connected to database")

	if err := deps.DB.Migrate(ctx); err != nil {
		return err
	}

	// Scheduler (optional)
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = newSyncScheduler(deps, cfg)
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		log.Println("Scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg))

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, redirectSrv, sched, 30*time.Second)
	return nil
}

// newSyncScheduler builds the scheduler whose batches contain one MISA sync
// job per user with a configured provider profile.
func newSyncScheduler(deps *Dependencies, cfg *config.Config) (*scheduler.Scheduler, error) {
	jobProvider := func(ctx context.Context) ([]scheduler.Job, error) {
		userIDs, err := deps.ProviderConfigRepo.ListConfiguredUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users for sync: %w", err)
		}

		jobs := make([]scheduler.Job, 0, len(userIDs))
		for _, userID := range userIDs {
			jobs = append(jobs, scheduler.NewMisaSyncJob(
				userID,
				cfg.Misa.SyncWindowDays,
				deps.ProviderStore,
				scheduler.ClientFactory(deps.NewMisaClient),
				deps.IncomeSyncService,
				deps.ExpenseSyncService,
			))
		}
		return jobs, nil
	}

	return scheduler.NewScheduler(scheduler.SchedulerConfig{
		ScheduleTimes: cfg.Scheduler.ScheduleTimes,
		WorkerCount:   cfg.Scheduler.WorkerCount,
		JobDelay:      cfg.Scheduler.JobDelay,
		QueueSize:     cfg.Scheduler.QueueSize,
		RunOnStartup:  cfg.Scheduler.RunOnStartup,
		JobProvider:   jobProvider,
	})
}
