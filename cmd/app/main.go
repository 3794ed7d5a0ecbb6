package main

import (
	"flag"
	"log"
	"os"

	"QuantShield/internal/di"
	"QuantShield/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", *configPath, err)
	}
	log.Printf("starting env=%s backend=%s http_port=%d", cfg.Environment, cfg.Backend.Type, cfg.Server.Port)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}
	log.Printf("clickhouse schema ready db=%s", cfg.ClickHouse.Database)
	log.Printf("kafka brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("run: %v", err)
		os.Exit(1)
	}
}
