package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"gttdash/internal/api"
	"gttdash/internal/app"
	"gttdash/internal/scheduler"
	"gttdash/internal/util"
)

func main() {
	// Load config.
	cfg, err := app.LoadConfig(app.ConfigPath())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Setup logging.
	logger, logFile, err := app.NewLogger(cfg.Logging, "gttdash-server")
	if err != nil {
		log.Fatalf("setting up logging: %v", err)
	}
	defer logFile.Close()
	util.SetDefault(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("initializing engine: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := api.NewHub(logger)
	a.Engine.SetPublisher(hub)

	sched := scheduler.New(ctx, a.Engine, logger)
	if err := sched.Register(cfg.Schedule.SweepCron, cfg.Schedule.PrewarmCron); err != nil {
		log.Fatalf("scheduling jobs: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Clear anything left over from earlier days before serving.
	go sched.RunSweep()

	srv := api.NewServer(cfg.Server, a.Engine, hub, logger)
	logger.Info("gttdash-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"grpc_port", cfg.Server.GRPCPort,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
	}
	logger.Info("gttdash-server stopped")
}
