package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/services"
	"kakeibo/internal/storage"
)

// Server exposes the ledger over a JSON API.
type Server struct {
	http.Server
	ledger      *services.LedgerService
	export      *services.ExportService
	importer    *services.ImportService
	repo        *storage.SQLiteRepository
	backupDir   string
	rateLimiter *writeLimiter

	// Monthly aggregates are cached and purged on every ledger write.
	summaryCache *cache.LRUCache[core.MonthlySummary]
	statsCache   *cache.LRUCache[core.MonthlyStatistics]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
// writeLimit is the number of mutating requests allowed per client per minute.
func NewServer(addr string, ledger *services.LedgerService, export *services.ExportService, importer *services.ImportService, repo *storage.SQLiteRepository, backupDir string, writeLimit int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:           ledger,
		export:           export,
		importer:         importer,
		repo:             repo,
		backupDir:        backupDir,
		rateLimiter:      newWriteLimiter(writeLimit, time.Minute),
		summaryCache:     cache.NewLRUCache[core.MonthlySummary](100, 5*time.Minute),
		statsCache:       cache.NewLRUCache[core.MonthlyStatistics](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/entries", s.withMiddleware(s.handleEntries))
	mux.HandleFunc("/entries/", s.withMiddleware(s.handleEntryByID))
	mux.HandleFunc("/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("/stats", s.withMiddleware(s.handleStats))
	mux.HandleFunc("/months", s.withMiddleware(s.handleMonths))
	mux.HandleFunc("/export/csv", s.withMiddleware(s.handleExportCSV))
	mux.HandleFunc("/export/xlsx", s.withMiddleware(s.handleExportXLSX))
	mux.HandleFunc("/export/report", s.withMiddleware(s.handleExportReport))
	mux.HandleFunc("/export/compare", s.withMiddleware(s.handleExportCompare))
	mux.HandleFunc("/import/csv", s.withMiddleware(s.handleImportCSV))
	mux.HandleFunc("/backups", s.withMiddleware(s.handleBackups))

	return s
}

// startCacheCleanup periodically drops expired aggregate cache entries.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summaryCleaned := s.summaryCache.CleanExpired()
			statsCleaned := s.statsCache.CleanExpired()
			if summaryCleaned > 0 || statsCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"summary_entries_removed", summaryCleaned,
					"stats_entries_removed", statsCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateAggregates purges cached summaries after a write.
func (s *Server) invalidateAggregates() {
	s.summaryCache.Purge()
	s.statsCache.Purge()
}

// withMiddleware adds security headers, rate limiting on writes, and
// request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.Months(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
