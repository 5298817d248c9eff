package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockcast/internal/di"
	"stockcast/pkg/config"
	"stockcast/pkg/util"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	dateStr := flag.String("date", "", "trading day to ingest (YYYY-MM-DD, default: previous trading day)")
	flag.Parse()

	var date time.Time
	if *dateStr != "" {
		d, ok := util.ParseDate(*dateStr)
		if !ok {
			log.Fatalf("invalid -date %q, want YYYY-MM-DD", *dateStr)
		}
		date = d
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeIngest(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := app.Service.Run(ctx, date)
	app.Close()
	if err != nil {
		log.Printf("ingest failed: %v", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("marshal result: %v", err)
	}
	os.Stdout.Write(out)
	os.Stdout.Write([]byte("\n"))
}
