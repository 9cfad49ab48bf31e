// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/raydium-sniper/internal/bot"
	"github.com/rovshanmuradov/raydium-sniper/internal/config"
	"github.com/rovshanmuradov/raydium-sniper/internal/export"
	"github.com/rovshanmuradov/raydium-sniper/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	exportDir := flag.String("export", "", "write the position ledger to this directory and exit")
	exportFormat := flag.String("format", "csv", "export format: csv or json")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Debug = cfg.Logging.Debug
	logCfg.File = cfg.Logging.File
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if *exportDir != "" {
		if err := exportPositions(cfg, log, *exportDir, export.Format(*exportFormat)); err != nil {
			log.Error("Export failed", zap.Error(err))
			_ = logger.Sync(log)
			os.Exit(1)
		}
		return
	}

	log.Info("Starting Raydium sniper", zap.String("config", *configPath))

	if err := bot.NewRunner(cfg, log).Run(context.Background()); err != nil {
		log.Error("Bot execution error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

func exportPositions(cfg *config.Config, log *zap.Logger, dir string, format export.Format) error {
	ctx := context.Background()
	store, err := bot.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	positions, err := store.ListAll(ctx, 0)
	if err != nil {
		return err
	}
	path, err := export.NewPositionExporter(log).Export(positions, export.Options{Format: format, OutputDir: dir})
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
