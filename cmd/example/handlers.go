package main

import (
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	sdkhttpx "github.com/nicktill/metricring/pkg/sdk/httpx"
)

// Channels written by the example endpoints
const (
	activeRequestsChannel = "example_active_requests"
	apiErrorsChannel      = "example_api_errors_total"
	orderTotalChannel     = "example_order_total"
)

type app struct {
	rec    sdkhttpx.Recorder
	daemon string
	client *http.Client
	logger *zap.Logger

	active atomic.Int64
	failed atomic.Int64

	// latency is scaled down in tests
	latency func(base, spread int) time.Duration
}

func newApp(rec sdkhttpx.Recorder, daemon string, logger *zap.Logger) *app {
	return &app{
		rec:     rec,
		daemon:  strings.TrimSuffix(daemon, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
		latency: simulatedLatency,
	}
}

func simulatedLatency(base, spread int) time.Duration {
	return time.Duration(base+rand.Intn(spread)) * time.Millisecond
}

// routes registers the example endpoints.
// Every response is mock data, the samples they record are real.
func (a *app) routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/users", a.handleUsers)
	mux.HandleFunc("/api/orders", a.handleOrders)
	mux.HandleFunc("/api/products", a.handleProducts)
	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/api/stats", a.handleStats)
}

// track records the in-flight request count on entry and exit
func (a *app) track() func() {
	a.record(activeRequestsChannel, a.active.Add(1))
	return func() {
		a.record(activeRequestsChannel, a.active.Add(-1))
	}
}

func (a *app) record(name string, v int64) {
	if err := a.rec.RecordInt64(name, v); err != nil {
		a.logger.Warn("record failed", zap.String("channel", name), zap.Error(err))
	}
}

func (a *app) handleUsers(w http.ResponseWriter, r *http.Request) {
	defer a.track()()
	time.Sleep(a.latency(50, 50))

	// rare failures so the status channels show some 500s
	if rand.Float32() < 0.02 {
		a.record(apiErrorsChannel, a.failed.Add(1))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"users": [{"id": 1, "name": "Alice"}, {"id": 2, "name": "Bob"}]}`))
}

func (a *app) handleOrders(w http.ResponseWriter, r *http.Request) {
	defer a.track()()
	time.Sleep(a.latency(80, 40))

	total := 20 + rand.Float64()*180
	if err := a.rec.RecordFloat64(orderTotalChannel, total); err != nil {
		a.logger.Warn("record failed", zap.String("channel", orderTotalChannel), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"orders": [{"id": 1, "total": 99.99}, {"id": 2, "total": 149.99}]}`))
}

func (a *app) handleProducts(w http.ResponseWriter, r *http.Request) {
	defer a.track()()
	time.Sleep(a.latency(30, 30))

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"products": [{"id": 1, "name": "Widget"}, {"id": 2, "name": "Gadget"}]}`))
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status": "healthy", "uptime": "` + time.Since(startTime).Round(time.Second).String() + `"}`))
}
