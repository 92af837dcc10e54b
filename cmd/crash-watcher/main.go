package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"crash_watcher/internal/app"
	"crash_watcher/internal/config"
	"crash_watcher/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	boot := logging.NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
	cfg, err := config.Load(boot)
	if err != nil {
		logging.Critical(boot, "configuration invalid, exiting", "err", err)
		return 1
	}

	logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		boot.Warn("log file unavailable, logging to stdout only", "path", cfg.LogFile, "err", err)
		logger = boot
	} else {
		defer closer.Close()
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logging.Critical(logger, "init failed", "err", err)
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := application.Run(ctx); err != nil {
		logger.Error("run failed", "err", err)
		return 1
	}
	return 0
}
