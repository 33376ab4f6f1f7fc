package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/archive/badger"
	"github.com/nicktill/metricring/pkg/httpx"
	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/promexport"
	"github.com/nicktill/metricring/pkg/server/monitor"
	"github.com/nicktill/metricring/pkg/store"
)

// Version is reported by /v1/health
const Version = "1.0.0"

const archiveTimeout = 10 * time.Second

var startTime = time.Now()

// Deps is everything SetupRoutes wires into the router. Archive,
// StorageMonitor and DumpMonitor are nil when the archive is disabled.
type Deps struct {
	Store          *store.Store
	Handlers       Handlers
	Registry       *prometheus.Registry
	Archive        *badger.Archive
	StorageMonitor *monitor.StorageMonitor
	DumpMonitor    *monitor.DumpMonitor
	Logger         *zap.Logger
	Port           string
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string              `json:"status"`
	Uptime string              `json:"uptime"`
	Dump   *monitor.DumpStatus `json:"dump,omitempty"`
}

// StatsResponse is the body of GET /v1/stats
type StatsResponse struct {
	Store                store.Stats   `json:"store"`
	WebSocketConnections int64         `json:"websocket_connections"`
	Archive              *badger.Stats `json:"archive,omitempty"`
	ArchiveDiskBytes     int64         `json:"archive_disk_bytes,omitempty"`
}

// ArchiveResponse is the body of GET /v1/archive
type ArchiveResponse struct {
	Name    string            `json:"name"`
	Type    metrics.ValueType `json:"type"`
	Count   int               `json:"count"`
	Samples []metrics.Sample  `json:"samples"`
}

// handleHealth returns service health status.
func handleHealth(dumpMonitor *monitor.DumpMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status: "healthy",
			Uptime: time.Since(startTime).Round(time.Second).String(),
		}
		statusCode := http.StatusOK

		if dumpMonitor != nil {
			status := dumpMonitor.Status()
			response.Dump = &status
			if !status.Healthy {
				response.Status = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.RespondJSON(w, statusCode, response)
	}
}

// handleStats reports store counters, websocket clients and archive usage.
func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := StatsResponse{
			Store:                deps.Store.Stats(),
			WebSocketConnections: deps.Handlers.Query.Connections(),
		}

		if deps.Archive != nil {
			ctx, cancel := context.WithTimeout(r.Context(), archiveTimeout)
			defer cancel()
			stats, err := deps.Archive.Stats(ctx)
			if err != nil {
				httpx.RespondError(w, http.StatusInternalServerError, fmt.Errorf("archive stats: %w", err))
				return
			}
			response.Archive = &stats
		}
		if deps.StorageMonitor != nil {
			used, err := deps.StorageMonitor.Usage()
			if err != nil {
				deps.Logger.Warn("failed to measure archive directory", zap.Error(err))
			} else {
				response.ArchiveDiskBytes = used
			}
		}

		httpx.RespondJSON(w, http.StatusOK, response)
	}
}

// handleArchive returns every archived sample of one channel, oldest first.
func handleArchive(archive *badger.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			httpx.RespondErrorString(w, http.StatusBadRequest, "name parameter is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), archiveTimeout)
		defer cancel()
		typ, samples, err := archive.Read(ctx, name)
		if errors.Is(err, metrics.ErrTypeMismatch) {
			httpx.RespondError(w, http.StatusConflict, err)
			return
		}
		if err != nil {
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}
		if len(samples) == 0 {
			httpx.RespondError(w, http.StatusNotFound, fmt.Errorf("channel %q: %w", name, metrics.ErrUnknownChannel))
			return
		}

		httpx.RespondJSON(w, http.StatusOK, ArchiveResponse{
			Name:    name,
			Type:    typ,
			Count:   len(samples),
			Samples: samples,
		})
	}
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	// CORS middleware for API access
	router.Use(corsMiddleware(deps.Port))

	api := router.PathPrefix("/v1").Subrouter()

	// Writes
	api.HandleFunc("/record", deps.Handlers.Ingest.HandleRecord).Methods("POST")

	// JSON reads
	api.HandleFunc("/channels", deps.Handlers.Query.HandleChannels).Methods("GET")
	api.HandleFunc("/snapshot", deps.Handlers.Query.HandleSnapshot).Methods("GET")
	api.HandleFunc("/history", deps.Handlers.Query.HandleHistory).Methods("GET")

	// Raw wire reads
	api.HandleFunc("/wire/channels", deps.Handlers.Query.HandleWireChannels).Methods("GET")
	api.HandleFunc("/wire/snapshot", deps.Handlers.Query.HandleWireSnapshot).Methods("GET")
	api.HandleFunc("/wire/history", deps.Handlers.Query.HandleWireHistory).Methods("GET")

	// Pull queries over a websocket
	api.HandleFunc("/ws", deps.Handlers.Query.HandleWebSocket).Methods("GET")

	api.HandleFunc("/export", deps.Handlers.Export.HandleExport).Methods("GET")
	api.HandleFunc("/stats", handleStats(deps)).Methods("GET")
	api.HandleFunc("/health", handleHealth(deps.DumpMonitor)).Methods("GET")

	if deps.Archive != nil {
		api.HandleFunc("/archive", handleArchive(deps.Archive)).Methods("GET")
	}

	if deps.Registry != nil {
		router.Handle("/metrics", promexport.Handler(deps.Registry)).Methods("GET")
	}
}

// corsMiddleware creates CORS middleware that restricts to localhost origins only.
func corsMiddleware(port string) func(http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:" + port: true,
		"http://127.0.0.1:" + port: true,
		"http://localhost:3000":    true,
		"http://127.0.0.1:3000":    true,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
