package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/httpx"
	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/store"
)

// Handler records samples posted over HTTP into a store. Batches posted
// through one Handler apply all or nothing relative to each other; a writer
// calling the store directly can still claim a channel mid-batch.
type Handler struct {
	// serializes validate and write so batches cannot interleave
	mu sync.Mutex

	store       *store.Store
	logger      *zap.Logger
	maxRecords  int
	maxChannels int
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the handler logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMaxRecords bounds the records accepted per request
func WithMaxRecords(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxRecords = n
		}
	}
}

// WithMaxChannels bounds how many channels ingestion may create in total.
// Zero means unlimited.
func WithMaxChannels(n int) Option {
	return func(h *Handler) {
		if n >= 0 {
			h.maxChannels = n
		}
	}
}

// NewHandler creates a new ingest handler
func NewHandler(s *store.Store, opts ...Option) *Handler {
	h := &Handler{
		store:       s,
		logger:      zap.NewNop(),
		maxRecords:  config.DefaultMaxRecordsPerRequest,
		maxChannels: config.DefaultMaxChannels,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RecordRequest represents the request payload
type RecordRequest struct {
	Records []Record `json:"records"`
}

// RecordResponse represents the response payload
type RecordResponse struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

type parsed struct {
	name  string
	value metrics.Value
}

// HandleRecord handles POST /v1/record
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.RespondErrorString(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondErrorString(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if len(req.Records) > h.maxRecords {
		httpx.RespondError(w, http.StatusBadRequest,
			fmt.Errorf("%w: %d records (max %d)", ErrTooManyRecords, len(req.Records), h.maxRecords))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	batch, err := h.validate(req.Records)
	if err != nil {
		status := httpx.StatusFor(err)
		if errors.Is(err, ErrChannelLimit) {
			status = http.StatusTooManyRequests
		} else if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		httpx.RespondError(w, status, fmt.Errorf("invalid record: %w", err))
		return
	}

	for i, p := range batch {
		if err := h.store.Record(p.name, p.value); err != nil {
			// an in-process writer created the channel with another type
			h.logger.Warn("record rejected", zap.String("name", p.name), zap.Error(err))
			httpx.RespondError(w, httpx.StatusFor(err),
				fmt.Errorf("recorded %d of %d: %w", i, len(batch), err))
			return
		}
	}

	h.logger.Debug("records ingested", zap.Int("count", len(batch)))
	httpx.RespondJSON(w, http.StatusOK, RecordResponse{
		Status: "success",
		Count:  len(batch),
	})
}

// validate parses every record and checks it against existing channels
// before anything is written.
func (h *Handler) validate(records []Record) ([]parsed, error) {
	batch := make([]parsed, 0, len(records))
	created := make(map[string]metrics.ValueType)
	existing := h.store.ChannelCount()

	for _, rec := range records {
		v, err := ParseRecord(rec)
		if err != nil {
			return nil, err
		}

		if ch, ok := h.store.Channel(rec.Name); ok {
			if ch.Type() != v.Type() {
				return nil, fmt.Errorf("channel %q holds %s, got %s: %w",
					rec.Name, ch.Type(), v.Type(), metrics.ErrTypeMismatch)
			}
		} else if typ, ok := created[rec.Name]; ok {
			if typ != v.Type() {
				return nil, fmt.Errorf("channel %q given as both %s and %s: %w",
					rec.Name, typ, v.Type(), metrics.ErrTypeMismatch)
			}
		} else {
			if h.maxChannels > 0 && existing+len(created) >= h.maxChannels {
				return nil, fmt.Errorf("%w: %d channels (max %d)", ErrChannelLimit, existing+len(created), h.maxChannels)
			}
			created[rec.Name] = v.Type()
		}

		batch = append(batch, parsed{name: rec.Name, value: v})
	}
	return batch, nil
}
