package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"CoinPulse/internal/di"
	"CoinPulse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate the config and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *checkOnly {
		fmt.Printf("%s: ok (env=%s)\n", *configPath, cfg.Environment)
		return
	}

	log.Printf("env=%s stores: signals=%s rules=%s notifications=%s watchlists=%s windows=%s; delivery=%s push=%s",
		cfg.Environment,
		cfg.Storage.Signals, cfg.Storage.Rules, cfg.Storage.Notifications, cfg.Storage.Watchlists, cfg.Storage.Windows,
		cfg.Delivery.Mode, cfg.Delivery.PushProvider)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Blocks until SIGINT or SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
