// Package main is the entry point for the repo gateway service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oremus-labs/ol-repo-gateway/config"
	"github.com/oremus-labs/ol-repo-gateway/internal/api"
	"github.com/oremus-labs/ol-repo-gateway/internal/events"
	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/graphqlapi"
	"github.com/oremus-labs/ol-repo-gateway/internal/handlers"
	"github.com/oremus-labs/ol-repo-gateway/internal/proxy"
	"github.com/oremus-labs/ol-repo-gateway/internal/redisx"
	"github.com/oremus-labs/ol-repo-gateway/internal/store"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 5 * time.Second
)

func main() {
	// Initialize logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting Repo Gateway v%s", version)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// Load configuration
	config.LoadDotEnv()
	cfg := config.Load()
	log.Printf("Configuration loaded - Backend: %s, Probe timeout: %s, Datastore: %s",
		cfg.BackendBaseURL, cfg.GerritProbeTimeout, cfg.DataStoreDriver)

	var history *store.Store
	stateStore, err := store.Open(cfg.DataStoreDSN, cfg.DataStoreDriver)
	if err != nil {
		log.Printf("Verification history disabled: %v", err)
	} else {
		history = stateStore
		defer stateStore.Close()
		startAutomation(rootCtx, automationOptions{
			Store:      stateStore,
			Interval:   cfg.SweepInterval,
			HistoryTTL: cfg.HistoryRetention,
		})
	}

	redisClient, err := redisx.NewClient(rootCtx, redisx.Config{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	})
	if err != nil {
		log.Printf("Redis unavailable, events stay local: %v", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		log.Printf("Event fan-out via redis %s channel %s", cfg.RedisAddr, cfg.EventsChannel)
	}

	bus := events.NewBus(events.Options{
		Client:  redisClient,
		Channel: cfg.EventsChannel,
	})
	defer bus.Close()

	backend := proxy.New(cfg.BackendBaseURL, cfg.ProxyTimeout)
	prober := gerrit.NewProber(gerrit.WithTimeout(cfg.GerritProbeTimeout))

	h := handlers.New(backend, prober, history, bus, handlers.Options{
		HistoryLimit: cfg.HistoryLimit,
	})

	gqlCfg := graphqlapi.Config{Prober: prober, OnVerify: h.RecordVerification}
	if history != nil {
		gqlCfg.History = history
	}
	gqlHandler, err := graphqlapi.NewHandler(gqlCfg)
	if err != nil {
		log.Fatalf("Failed to build GraphQL schema: %v", err)
	}

	// Setup HTTP server
	server := api.NewServer(h, api.Options{APIToken: cfg.APIToken, GraphQLHandler: gqlHandler})
	srv := server.Start(":" + cfg.ServerPort)
	log.Printf("Server listening on :%s", cfg.ServerPort)

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	rootCancel()
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
