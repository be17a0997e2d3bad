/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the bulk entitlement server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store (app config, event dedup, warning log)
  3. Build the platform client (GraphQL, or in-memory for local dev)
  4. Wire the processor with the selected settings mode
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: bulk.db, ":memory:" ok)
  -settings-mode  Eligibility sourcing: "product" or "app" (default:
                  product). Selected once per deployment; the two modes
                  are never merged.
  -platform-url   Host platform GraphQL endpoint. Empty runs against the
                  in-memory platform fake (local development only).
  -platform-token App auth token for the platform.
  -base-url       Externally visible base URL, used in the manifest.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait for in-flight
  requests (30s timeout), close the store, exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/entitlement-engine/api"
	"github.com/warp/entitlement-engine/commerce"
	"github.com/warp/entitlement-engine/processor"
	"github.com/warp/entitlement-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "bulk.db", "SQLite database path")
	settingsMode := flag.String("settings-mode", "product", `eligibility sourcing: "product" or "app"`)
	platformURL := flag.String("platform-url", "", "host platform GraphQL endpoint")
	platformToken := flag.String("platform-token", "", "app auth token for the platform")
	baseURL := flag.String("base-url", "http://localhost:8080", "externally visible base URL")
	flag.Parse()

	mode := processor.SettingsMode(*settingsMode)
	if mode != processor.SettingsProduct && mode != processor.SettingsApp {
		log.Fatalf("Invalid -settings-mode %q: want \"product\" or \"app\"", *settingsMode)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Platform client
	var client commerce.Client
	if *platformURL != "" {
		client, err = commerce.NewGraphQLClient(commerce.GraphQLConfig{
			Endpoint: *platformURL,
			Token:    *platformToken,
		})
		if err != nil {
			log.Fatalf("Failed to create platform client: %v", err)
		}
	} else {
		log.Println("No -platform-url given; using in-memory platform fake (local development only)")
		client = commerce.NewMemory()
	}

	// Processor
	proc := processor.New(client, store, mode)
	proc.Events = store
	proc.Warnings = store

	// Router
	handler := api.NewHandler(proc, store, *baseURL)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (settings mode: %s)", *port, mode)
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

	log.Println("Server stopped")
}
