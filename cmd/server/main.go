/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Lease Audit Engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load the audit profile (file or built-in defaults)
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: audit.db)
            Use ":memory:" for an in-memory database
  -profile  Path to a JSON audit profile (optional; built-in defaults
            apply when omitted)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/audit.db"

  # Run with in-memory database and a custom profile
  ./server -db=":memory:" -profile=./profiles/strict.json

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  No environment variables currently. All config via flags.
  Future: DATABASE_URL, PORT, LOG_LEVEL

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/warp/lease-audit/api"
	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/factory"
	"github.com/warp/lease-audit/findings"
	"github.com/warp/lease-audit/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "audit.db", "SQLite database path")
	profilePath := flag.String("profile", "", "JSON audit profile path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Resolve the audit profile
	cfg := audit.DefaultConfig()
	var registry *findings.Registry
	if *profilePath != "" {
		raw, err := os.ReadFile(*profilePath)
		if err != nil {
			log.Fatalf("Failed to read audit profile: %v", err)
		}
		cfg, registry, err = factory.NewConfigFactory().ParseConfig(string(raw))
		if err != nil {
			log.Fatalf("Failed to parse audit profile: %v", err)
		}
		log.Printf("Loaded audit profile from %s", *profilePath)
	}

	// Initialize handler and router
	handler := api.NewHandler(store, cfg, registry)
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
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
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
