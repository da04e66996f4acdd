package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/lostfound/backend/config"
	"github.com/lostfound/backend/internal/bootstrap"
	httpDelivery "github.com/lostfound/backend/internal/delivery/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "err", err)
	}

	if err := bootstrap.ConfigureLogging(cfg.Log.Level); err != nil {
		log.Fatal("Failed to configure logging", "err", err)
	}

	log.Info("Starting LostFound Backend v1.0.0")
	log.Info("Server", "environment", cfg.Server.Environment, "port", cfg.Server.Port)
	log.Info("Cache", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL)

	// Initialize infrastructure and usecase layers
	engine, err := bootstrap.NewEngine(cfg)
	if err != nil {
		log.Fatal("Failed to initialize matching engine", "err", err)
	}
	defer engine.Close()

	log.Info("Embedding provider configured",
		"provider", cfg.Embedding.Provider,
		"url", cfg.Embedding.BaseURL,
		"models", cfg.Embedding.Models,
		"api_key_set", cfg.Embedding.APIKey != "")
	if !engine.Client.Available(context.Background()) {
		log.Warn("Embedding provider not reachable; text fields will score 0 until it is")
	}

	weights := engine.Matcher.Weights()
	log.Info("Matching",
		"weights", weights.Map(),
		"name_floor", cfg.Matching.NameFloor,
		"result_cap", cfg.Matching.ResultCap,
		"max_concurrency", cfg.Matching.MaxConcurrency,
		"debug", cfg.Matching.EnableDebugLogging)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(engine.Matcher, engine.Client)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, engine.Registry)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info("Server listening", "addr", addr)

	if err := router.Run(addr); err != nil {
		log.Error("Failed to start server", "err", err)
		engine.Close()
		os.Exit(1)
	}
}
