package export

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/httpx"
	"github.com/nicktill/metricring/pkg/store"
)

// Handler serves the history export endpoint
type Handler struct {
	exporter *Exporter
	logger   *zap.Logger
}

// NewHandler creates a new export handler
func NewHandler(s *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		exporter: NewExporter(s),
		logger:   logger,
	}
}

// HandleExport handles GET /v1/export
// Query params:
//   - format: "json" or "csv" (default: json)
//   - channel: channel name filter, repeatable (optional)
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		httpx.RespondErrorString(w, http.StatusBadRequest, "invalid format, must be 'json' or 'csv'")
		return
	}

	opts := ExportOptions{Format: format}
	if names := query["channel"]; len(names) > 0 {
		opts.Channels = names
		// resolve before writing headers so an unknown channel is still a 404
		for _, name := range names {
			if _, ok := h.exporter.store.Channel(name); !ok {
				httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("unknown channel %q", name))
				return
			}
		}
	}

	timestamp := time.Now().Format("20060102-150405")
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=metricring-export-%s.json", timestamp))
	} else {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=metricring-export-%s.csv", timestamp))
	}

	ctx := r.Context()
	var result *ExportResult
	var err error

	if format == "json" {
		result, err = h.exporter.ExportToJSON(ctx, w, opts)
	} else {
		result, err = h.exporter.ExportToCSV(ctx, w, opts)
	}

	if err != nil {
		// headers are already out; the body is truncated
		h.logger.Error("export failed", zap.String("format", format), zap.Error(err))
		return
	}

	h.logger.Info("exported history",
		zap.String("format", format),
		zap.Int("channels", result.ChannelsExported),
		zap.Int("samples", result.SamplesExported))
}
