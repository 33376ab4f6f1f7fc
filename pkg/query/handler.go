package query

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/export"
	"github.com/nicktill/metricring/pkg/httpx"
	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/store"
)

// Handler serves read queries over a store as JSON, raw wire bytes or
// websocket messages.
type Handler struct {
	store   *store.Store
	surface *export.Surface
	logger  *zap.Logger
	conns   connCounter
}

// NewHandler creates a new query handler
func NewHandler(s *store.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:   s,
		surface: export.NewSurface(s, logger),
		logger:  logger,
	}
}

// ChannelsResponse is the body of GET /v1/channels
type ChannelsResponse struct {
	Channels []metrics.ChannelInfo `json:"channels"`
	Count    int                   `json:"count"`
}

// SnapshotResponse is the body of GET /v1/snapshot
type SnapshotResponse struct {
	Results []store.ChannelValues `json:"results"`
}

// HistoryResponse is the body of GET /v1/history
type HistoryResponse struct {
	Results []store.ChannelHistory `json:"results"`
}

// parseRequests pairs repeated name parameters with count parameters.
// No count applies defaultCount to every name, a single count applies to
// every name, otherwise counts must align with names.
func parseRequests(r *http.Request, defaultCount int) ([]store.Request, error) {
	q := r.URL.Query()
	names := q["name"]
	if len(names) == 0 {
		return nil, fmt.Errorf("name parameter is required")
	}
	if len(names) > config.QueryMaxNames {
		return nil, fmt.Errorf("too many names (max %d)", config.QueryMaxNames)
	}

	rawCounts := q["count"]
	if len(rawCounts) > 1 && len(rawCounts) != len(names) {
		return nil, fmt.Errorf("got %d counts for %d names", len(rawCounts), len(names))
	}
	counts := make([]int, len(rawCounts))
	for i, raw := range rawCounts {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid count %q", raw)
		}
		counts[i] = n
	}

	reqs := make([]store.Request, len(names))
	for i, name := range names {
		count := defaultCount
		switch len(counts) {
		case 0:
		case 1:
			count = counts[0]
		default:
			count = counts[i]
		}
		reqs[i] = store.Request{Name: name, Count: count}
	}
	return reqs, nil
}

// HandleChannels handles GET /v1/channels
func (h *Handler) HandleChannels(w http.ResponseWriter, r *http.Request) {
	infos := h.store.ListChannels()
	httpx.RespondJSON(w, http.StatusOK, ChannelsResponse{Channels: infos, Count: len(infos)})
}

// HandleSnapshot handles GET /v1/snapshot?name=a&name=b[&count=N].
// Samples are newest first.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	reqs, err := parseRequests(r, config.QueryDefaultCount)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	vals, err := h.store.LastValues(reqs)
	if err != nil {
		httpx.RespondStoreError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, SnapshotResponse{Results: vals})
}

// HandleHistory handles GET /v1/history?name=a&count=10&name=b&count=5.
// Without a count the full retained window is returned. Samples are oldest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	reqs, err := parseRequests(r, math.MaxInt32)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	hist, err := h.store.History(reqs)
	if err != nil {
		httpx.RespondStoreError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, HistoryResponse{Results: hist})
}

// respondBuffer writes buf and frees it, or replies 404 when the export
// surface produced nothing.
func respondBuffer(w http.ResponseWriter, buf *export.Buffer, what string) {
	if buf == nil {
		httpx.RespondErrorString(w, http.StatusNotFound, fmt.Sprintf("no %s available for the requested channels", what))
		return
	}
	defer buf.Free()
	httpx.RespondBinary(w, buf.Bytes())
}

// HandleWireChannels handles GET /v1/wire/channels
func (h *Handler) HandleWireChannels(w http.ResponseWriter, r *http.Request) {
	respondBuffer(w, h.surface.ListChannels(), "channels")
}

// HandleWireSnapshot handles GET /v1/wire/snapshot?name=a&name=b
func (h *Handler) HandleWireSnapshot(w http.ResponseWriter, r *http.Request) {
	names := r.URL.Query()["name"]
	if len(names) == 0 {
		httpx.RespondErrorString(w, http.StatusBadRequest, "name parameter is required")
		return
	}
	respondBuffer(w, h.surface.Snapshot(names), "snapshot")
}

// HandleWireHistory handles GET /v1/wire/history?name=a&count=10
func (h *Handler) HandleWireHistory(w http.ResponseWriter, r *http.Request) {
	reqs, err := parseRequests(r, math.MaxInt32)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	names := make([]string, len(reqs))
	counts := make([]int64, len(reqs))
	for i, req := range reqs {
		names[i] = req.Name
		counts[i] = int64(req.Count)
	}
	respondBuffer(w, h.surface.History(names, counts), "history")
}
