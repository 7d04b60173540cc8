package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shelfspace/inventory-be/internal/challenge"
	"github.com/shelfspace/inventory-be/internal/config"
	"github.com/shelfspace/inventory-be/internal/server"
	"github.com/shelfspace/inventory-be/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	defer store.Close()

	var cache challenge.Cache
	if cfg.RedisAddr != "" {
		cache = challenge.NewRedis(cfg.RedisAddr, cfg.RedisPass)
	} else {
		mem := challenge.NewMemory(time.Minute)
		defer mem.Close()
		cache = mem
	}

	srv := server.New(cfg, server.Stores{
		Users:     store,
		Items:     store,
		Audits:    store,
		Challenge: cache,
	})

	go func() {
		log.Printf("inventory backend listening on %s", cfg.HTTPAddress())
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
