package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"camserver/internal/app"
	"camserver/internal/config"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	application, err := app.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		log.Printf("Server error: %v", err)
		application.Close()
		os.Exit(1)
	}
}
