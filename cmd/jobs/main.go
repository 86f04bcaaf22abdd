package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"volunteer-scheduling-be/internal/bootstrap"
	"volunteer-scheduling-be/internal/config"
	"volunteer-scheduling-be/internal/service"
	"volunteer-scheduling-be/pkg/database"

	"github.com/fatih/color"
	"github.com/robfig/cron/v3"
)

// The jobs binary runs the scheduled maintenance sweeps and the gateway
// drift poller. It shares the container with the REST binary but never
// starts the HTTP server. Run with --once to execute a single maintenance
// pass and exit (useful for ops runbooks and local testing).
func main() {
	cfg := config.Load()

	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	if len(os.Args) > 1 && os.Args[1] == "--once" {
		printReports(container.JobsService.RunDailyMaintenance(context.Background()))
		return
	}

	scheduler := cron.New(cron.WithSeconds())

	_, err = scheduler.AddFunc(cfg.Jobs.MaintenanceSpec, func() {
		color.Cyan("Running daily maintenance sweeps...")
		printReports(container.JobsService.RunDailyMaintenance(context.Background()))
	})
	if err != nil {
		log.Fatalf("Invalid maintenance cron spec %q: %v", cfg.Jobs.MaintenanceSpec, err)
	}

	_, err = scheduler.AddFunc(cfg.Jobs.DriftPollSpec, func() {
		color.Cyan("Polling gateway for drift...")
		corrected, err := container.ReconcilerService.PollGatewayDrift(context.Background())
		if err != nil {
			color.Red("Drift poll failed: %v", err)
			return
		}
		if corrected > 0 {
			color.Yellow("Drift poll corrected %d subscription(s)", corrected)
		} else {
			color.Green("Drift poll found no divergence")
		}
	})
	if err != nil {
		log.Fatalf("Invalid drift poll cron spec %q: %v", cfg.Jobs.DriftPollSpec, err)
	}

	log.Printf("Jobs scheduler started (maintenance=%q drift=%q)", cfg.Jobs.MaintenanceSpec, cfg.Jobs.DriftPollSpec)
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down jobs scheduler...")
	<-scheduler.Stop().Done()
}

func printReports(reports []service.JobReport) {
	for _, r := range reports {
		if r.Failed > 0 {
			color.Red("[%s] processed=%d failed=%d took=%s", r.Job, r.Processed, r.Failed, r.Duration)
		} else {
			color.Green("[%s] processed=%d failed=%d took=%s", r.Job, r.Processed, r.Failed, r.Duration)
		}
	}
}
