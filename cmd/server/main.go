/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Assemble engine components (lifecycle, sub-ledger, computation)
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, or PORT env var)
  -db      SQLite database path (default: payroll.db, or DATABASE_PATH)
           Use ":memory:" for in-memory database
  -rates   Optional JSON file with per-employee rate configs

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database and seed rates
  ./server -db=":memory:" -rates="./rates.json"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	// .env is optional; flags override environment values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DATABASE_PATH", "payroll.db"), "SQLite database path")
	ratesPath := flag.String("rates", os.Getenv("RATES_PATH"), "JSON file with employee rate configs")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err, "path", *dbPath)
		os.Exit(1)
	}
	defer store.Close()

	// Rate registry. Loaded from file when provided, otherwise empty and
	// populated by the demo scenario loaders.
	rates := &payroll.StaticRateProvider{Rates: make(map[payroll.EmployeeID]payroll.RateConfig)}
	if *ratesPath != "" {
		if err := loadRates(*ratesPath, rates); err != nil {
			logger.Error("failed to load rate configs", "error", err, "path", *ratesPath)
			os.Exit(1)
		}
		logger.Info("loaded rate configs", "path", *ratesPath, "employees", len(rates.Rates))
	}

	// Assemble engine components
	clock := payroll.SystemClock{}
	guard := payroll.NewAttachmentGuard()
	lifecycle := payroll.NewPeriodLifecycle(store, clock, store)
	subledger := payroll.NewSubLedgerService(store, guard, clock, store)
	engine := payroll.NewComputationEngine(store, guard, rates, nil, nil, clock, store)

	// Initialize handler and router
	handler := api.NewHandler(lifecycle, engine, subledger, store)
	handler.Rates = rates
	router := api.NewRouter(handler, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", *dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// loadRates reads a JSON object mapping employee IDs to rate configs.
// Decimal fields are strings, e.g. {"emp-1": {"daily_rate": "500"}}.
func loadRates(path string, provider *payroll.StaticRateProvider) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[payroll.EmployeeID]struct {
		DailyRate          string `json:"daily_rate"`
		HourlyRate         string `json:"hourly_rate"`
		OvertimeMultiplier string `json:"overtime_multiplier"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for emp, cfg := range raw {
		rc := payroll.RateConfig{}
		if cfg.DailyRate != "" {
			rc.DailyRate = payroll.MustParseDecimal(cfg.DailyRate)
		}
		if cfg.HourlyRate != "" {
			rc.HourlyRate = payroll.MustParseDecimal(cfg.HourlyRate)
		}
		if cfg.OvertimeMultiplier != "" {
			rc.OvertimeMultiplier = payroll.MustParseDecimal(cfg.OvertimeMultiplier)
		}
		provider.Rates[emp] = rc
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
