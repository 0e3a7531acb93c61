// Package main implements the storeWatch report server: an asynchronous
// job API over the uptime engine. Trigger a report, poll for completion,
// fetch the CSV path.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/codeGROOVE-dev/storeWatch/pkg/store"
	"github.com/codeGROOVE-dev/storeWatch/pkg/uptime"
)

var (
	port       = flag.String("port", "8080", "Port for web server")
	dbPath     = flag.String("db", "store_monitoring.db", "SQLite database path (or set DATABASE_PATH)")
	reportDir  = flag.String("report-dir", "data/reports", "Directory for generated CSVs (or set REPORT_DIR)")
	maxWorkers = flag.Int("max-workers", 0, "Concurrent store aggregations (0 = min(4, CPUs))")
	defaultTZ  = flag.String("default-tz", uptime.DefaultTimezone, "Timezone for stores without a timezone row")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

type rateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]time.Time),
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-time.Minute)

	var valid []time.Time
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	// Rate limit: 15 requests per minute per IP
	if len(valid) >= 15 {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

func main() {
	flag.Parse()

	if *version {
		fmt.Println("storeWatch Server v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if env := os.Getenv("PORT"); env != "" && *port == "8080" {
		*port = env
	}
	if env := os.Getenv("DATABASE_PATH"); env != "" && *dbPath == "store_monitoring.db" {
		*dbPath = env
	}
	if env := os.Getenv("REPORT_DIR"); env != "" && *reportDir == "data/reports" {
		*reportDir = env
	}

	logger.Info("Server configuration",
		"port", *port,
		"db", *dbPath,
		"report_dir", *reportDir,
		"max_workers", *maxWorkers,
		"default_tz", *defaultTZ,
		"verbose", *verbose)

	// Reports started before shutdown observe this context and abandon
	// their queries when the server stops.
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	db, err := store.OpenAndPing(serverCtx, *dbPath, logger)
	if err != nil {
		logger.Error("Database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	engine := uptime.NewWithLogger(serverCtx, logger,
		uptime.WithMaxWorkers(*maxWorkers),
		uptime.WithDefaultTimezone(*defaultTZ),
	)

	srv := &server{
		engine:    engine,
		db:        db,
		reportDir: *reportDir,
		runCtx:    serverCtx,
		limiter:   newRateLimiter(),
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /trigger_report", srv.handleTriggerReport)
	mux.HandleFunc("GET /get_report", srv.handleGetReport)

	httpSrv := &http.Server{
		Addr:              ":" + *port,
		Handler:           srv.wrap(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", *port)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	serverCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	srv.reports.Wait()
	logger.Info("Server stopped")
}

type server struct {
	engine    *uptime.Engine
	db        *store.DB
	limiter   *rateLimiter
	logger    *slog.Logger
	runCtx    context.Context
	reportDir string
	reports   sync.WaitGroup
}

func (s *server) wrap(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
		w.Header().Set("X-Request-ID", requestID)

		defer func() {
			if err := recover(); err != nil {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]

				clientIP := strings.Split(r.RemoteAddr, ":")[0]
				s.logger.Error("PANIC: Request handler crashed",
					"error", err,
					"path", r.URL.Path,
					"method", r.Method,
					"request_id", requestID,
					"client_ip", clientIP,
					"stack", string(buf))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		handler.ServeHTTP(w, r)
	})
}

func (s *server) handleTriggerReport(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")
	clientIP := strings.Split(r.RemoteAddr, ":")[0]

	if !s.limiter.allow(clientIP) {
		s.logger.Warn("Rate limit exceeded", "request_id", requestID, "client_ip", clientIP)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	reportID := uuid.NewString()
	if err := s.db.CreateReport(r.Context(), reportID); err != nil {
		s.logger.Error("Failed to create report job", "request_id", requestID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	csvPath := filepath.Join(s.reportDir, reportID+".csv")
	s.reports.Add(1)
	go s.runReport(reportID, csvPath)

	s.logger.Info("Report triggered",
		"request_id", requestID, "report_id", reportID, "client_ip", clientIP)
	writeJSON(w, s.logger, map[string]string{"report_id": reportID})
}

// runReport executes one report in the background and records the final
// job state. The HTTP request that triggered it is long gone by the time
// this finishes; everything flows through the job table.
func (s *server) runReport(reportID, csvPath string) {
	defer s.reports.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Report crashed", "report_id", reportID, "panic", fmt.Sprint(r))
			if err := s.db.FailReport(context.Background(), reportID); err != nil {
				s.logger.Error("Failed to mark report failed", "report_id", reportID, "error", err)
			}
		}
	}()

	if err := s.engine.GenerateReport(s.runCtx, s.db, csvPath, reportID); err != nil {
		s.logger.Error("Report failed", "report_id", reportID, "error", err)
		// The job row outlives the run context; use a fresh one.
		if err := s.db.FailReport(context.Background(), reportID); err != nil {
			s.logger.Error("Failed to mark report failed", "report_id", reportID, "error", err)
		}
		return
	}
	if err := s.db.CompleteReport(context.Background(), reportID, csvPath); err != nil {
		s.logger.Error("Failed to mark report complete", "report_id", reportID, "error", err)
	}
}

func (s *server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get("X-Request-ID")

	reportID := r.URL.Query().Get("report_id")
	if reportID == "" {
		http.Error(w, "report_id is required", http.StatusBadRequest)
		return
	}

	job, err := s.db.Report(r.Context(), reportID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, s.logger, map[string]any{"status": "NotFound"})
		return
	}
	if err != nil {
		s.logger.Error("Failed to read report job", "request_id", requestID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	switch job.Status {
	case store.StatusComplete:
		writeJSON(w, s.logger, map[string]any{"status": "Complete", "csv_path": job.CSVPath})
	case store.StatusRunning:
		writeJSON(w, s.logger, map[string]any{"status": "Running", "percent_complete": job.PercentComplete})
	default:
		writeJSON(w, s.logger, map[string]any{"status": string(job.Status)})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}
