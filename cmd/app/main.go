package main

import (
	"flag"
	"log"
	"os"

	"QuantGate/internal/di"
	"QuantGate/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	experimentPath := flag.String("experiment", "", "experiment config to run (optional; results API only when empty)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s evidence_dir=%s workers=%d", cfg.Environment, cfg.Evidence.Dir, cfg.Workers)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(*experimentPath); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
