package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"engagement-service/internal/config"
	"engagement-service/internal/server"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Engagement: No .env file found, relying on system env vars")
	}

	cfg := config.Load()
	srv := server.NewServer(cfg)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Engagement service starting on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("Engagement service shutting down gracefully...")
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Engagement service shutdown error: %v", err)
		}
	case err := <-errCh:
		log.Fatalf("Engagement service failed: %v", err)
	}
}
