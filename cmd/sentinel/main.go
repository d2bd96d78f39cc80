// cmd/sentinel/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/solwatch/dlmm-sentinel/internal/app"
	"github.com/solwatch/dlmm-sentinel/internal/config"
	"github.com/solwatch/dlmm-sentinel/internal/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting DLMM sentinel")

	runner, err := app.NewRunner(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}

	if err := runner.Run(context.Background()); err != nil {
		log.Fatal("Sentinel exited with error", zap.Error(err))
	}
}
