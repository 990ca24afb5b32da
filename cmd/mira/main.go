package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/services"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug logging for all components")
	Version    = "dev"
)

func main() {
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] Failed to load config: %v", err)
	}
	if *debug {
		cfg.Debug = true
		log.Printf("[MAIN] Mira %s", Version)
		log.Printf("[MAIN] - API base URL: %s", cfg.API.BaseURL)
		log.Printf("[MAIN] - Database path: %s", cfg.Storage.DatabasePath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := services.New(cfg)
	if err != nil {
		log.Fatalf("[MAIN] Failed to initialize services: %v", err)
	}

	if cfg.API.Token != "" {
		user, err := svc.Login(ctx, cfg.API.Token)
		if err != nil {
			log.Printf("[MAIN] Login with persisted token failed: %v", err)
		} else if *debug {
			log.Printf("[MAIN] Session restored for %s", user.Username)
		}
	}

	waitForShutdown(cancel, svc)
}

func waitForShutdown(cancel context.CancelFunc, svc *services.Services) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	sig := <-c
	log.Printf("[MAIN] Received signal: %v, shutting down", sig)

	cancel()
	svc.Logout()
	svc.Close()
}
