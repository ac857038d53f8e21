/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the store engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Initialize tracing (no-op when disabled)
  3. Initialize SQLite store (offers + balances + inventory)
  4. Connect the optional Redis offer cache
  5. Wire the catalog service and purchase engine
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a JSON config file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush pending trace spans
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  AUTH_SECRET=dev ./server -db="./data/store.db"

  # Run with in-memory database
  AUTH_SECRET=dev ./server -db=":memory:"

ENVIRONMENT:
  SERVER_PORT, DATABASE_PATH, AUTH_SECRET, AUTH_TOKEN_TTL,
  CACHE_ENABLED, CACHE_ADDR, TRACING_ENABLED, TRACING_ENDPOINT.
  See config/config.go for the full list.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - storage/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playforge/store-engine/api"
	"github.com/playforge/store-engine/auth"
	"github.com/playforge/store-engine/cache"
	"github.com/playforge/store-engine/catalog"
	"github.com/playforge/store-engine/config"
	"github.com/playforge/store-engine/purchase"
	"github.com/playforge/store-engine/storage/sqlite"
	"github.com/playforge/store-engine/tracing"
)

func main() {
	// Flags
	configFile := flag.String("config", "", "Path to JSON config file")
	port := flag.String("port", "", "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Tracing
	if err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Catalog service, optionally cached
	guard := auth.NewAdminGuard()
	var catalogOpts []catalog.Option
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedis(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			log.Fatalf("Failed to connect to cache: %v", err)
		}
		defer redisCache.Close()
		catalogOpts = append(catalogOpts, catalog.WithCache(redisCache))
		log.Printf("Offer cache enabled at %s", cfg.Cache.Addr)
	}
	catalogService := catalog.NewService(store, guard, catalogOpts...)

	// Purchase engine over the same storage
	engine := purchase.NewEngine(catalogService, store)

	// HTTP wiring
	verifier, err := auth.NewTokenVerifier(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token verifier: %v", err)
	}
	handler := api.NewHandler(catalogService, engine, store, guard)

	traceService := ""
	if cfg.Tracing.Enabled {
		traceService = cfg.Tracing.ServiceName
	}
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Verifier:       verifier,
		TraceService:   traceService,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Server.Port)
		log.Printf("API available at http://localhost:%s/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if err := tracing.Shutdown(ctx); err != nil {
		log.Printf("Warning: tracing shutdown: %v", err)
	}

	log.Println("Server stopped")
}
