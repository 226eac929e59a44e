package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Neerajsainii/suitcase/internal/config"
	"github.com/Neerajsainii/suitcase/internal/database"
	"github.com/Neerajsainii/suitcase/internal/handler"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	r, queue, err := handler.SetupRouter(cfg, db)
	if err != nil {
		log.Fatalf("Failed to set up router: %v", err)
	}

	// Drain in-flight processing on shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		queue.Stop()
		os.Exit(0)
	}()

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("Suitcase service starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
