package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"opschat/internal/app"
	"opschat/pkg/banner"
	"opschat/pkg/config"
	"opschat/pkg/logger"
	"opschat/pkg/shutdown"
)

// version is set via ldflags during release builds.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")
	backendVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, _, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// flags win over env and config file
	if setFlags["backend"] {
		cfg.Backend.BaseURL = backendVal
	}

	logger.InitWithOptions(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	banner.Print(cfg, version)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("daemon exited: %v", err)
	}
	logger.Info("daemon_stopped")
}
