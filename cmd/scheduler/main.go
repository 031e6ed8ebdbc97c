package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"farm-advisory/internal/config"
	"farm-advisory/internal/models"
	"farm-advisory/internal/scheduler"
	"farm-advisory/internal/services"
	"farm-advisory/shared/utils"
)

func main() {
	cfg := config.New()

	logFile, err := utils.SetupLogging(cfg.LogDir, "scheduler")
	if err != nil {
		log.Printf("Logging to stderr: %v", err)
	}
	defer logFile.Close()

	token := cfg.SchedulerCfg.ServiceToken
	if token == "" && cfg.AuthCfg.JWTSecret != "" {
		token, err = services.NewJWTService(cfg.AuthCfg.JWTSecret).GenerateNewToken("scheduler", []string{models.RoleService}, 0)
		if err != nil {
			log.Fatalf("Failed to issue scheduler token: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trigger := scheduler.NewTrigger(cfg.SchedulerCfg.APIBaseURL, token, cfg.SchedulerCfg.FarmIDs)
	c, err := trigger.Schedule(ctx, cfg.SchedulerCfg.CronSchedule)
	if err != nil {
		log.Fatalf("Failed to schedule: %v", err)
	}
	c.Start()
	slog.Info("Scheduler started",
		"schedule", cfg.SchedulerCfg.CronSchedule,
		"api", cfg.SchedulerCfg.APIBaseURL,
		"farms", len(cfg.SchedulerCfg.FarmIDs),
	)

	<-ctx.Done()
	slog.Info("Shutting down scheduler")
	<-c.Stop().Done()
}
