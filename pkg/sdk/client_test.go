package sdk

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nicktill/metricring/pkg/ingest"
	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/sdk/runtime"
	"github.com/nicktill/metricring/pkg/store"
)

func newDaemon(t *testing.T) (*store.Store, string) {
	t.Helper()
	s, err := store.New(8)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(ingest.NewHandler(s).HandleRecord))
	t.Cleanup(srv.Close)
	return s, srv.URL + "/v1/record"
}

func TestClientCreation(t *testing.T) {
	client, err := New(ClientConfig{})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if client.config.Endpoint != "http://localhost:8080/v1/record" {
		t.Errorf("Expected default endpoint, got %s", client.config.Endpoint)
	}
	if client.config.FlushEvery != 5*time.Second {
		t.Errorf("Expected default flush interval 5s, got %v", client.config.FlushEvery)
	}
	if client.config.MaxBatchSize != 1000 {
		t.Errorf("Expected default batch size 1000, got %d", client.config.MaxBatchSize)
	}

	if _, err := New(ClientConfig{FlushEvery: -time.Second}); err == nil {
		t.Error("Expected error for negative flush interval")
	}
}

func TestClientStartStop(t *testing.T) {
	client, err := New(ClientConfig{FlushEvery: time.Second})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if err := client.RecordInt64("early", 1); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted before Start, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Start(ctx); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}
	if err := client.Start(ctx); err == nil {
		t.Error("Expected error starting twice")
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("Failed to stop client: %v", err)
	}
	// second stop is a no-op
	if err := client.Stop(); err != nil {
		t.Errorf("Second stop failed: %v", err)
	}
	if err := client.RecordInt64("late", 1); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted after Stop, got %v", err)
	}
}

func TestClientDeliversEveryType(t *testing.T) {
	s, endpoint := newDaemon(t)

	client, err := New(ClientConfig{Endpoint: endpoint, FlushEvery: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}

	records := []error{
		client.RecordInt64("requests", 42),
		client.RecordFloat32("ratio", 0.25),
		client.RecordFloat64("load", math.Inf(1)),
		client.RecordFloat64("nan", math.NaN()),
		client.RecordBytes("blob", []byte{0, 1, 2, 255}),
		client.RecordString("state", "ready"),
	}
	for i, err := range records {
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
	}
	if client.Pending() != 6 {
		t.Errorf("Expected 6 pending records, got %d", client.Pending())
	}

	if err := client.Stop(); err != nil {
		t.Fatalf("Failed to stop client: %v", err)
	}

	expected := map[string]metrics.Value{
		"requests": metrics.Int64(42),
		"ratio":    metrics.Float32(0.25),
		"load":     metrics.Float64(math.Inf(1)),
		"nan":      metrics.Float64(math.NaN()),
		"blob":     metrics.Bytes([]byte{0, 1, 2, 255}),
		"state":    metrics.String("ready"),
	}
	for name, want := range expected {
		values, err := s.LastValues([]store.Request{{Name: name, Count: 1}})
		if err != nil {
			t.Fatalf("LastValues(%s) failed: %v", name, err)
		}
		got := values[0].Samples[0].Value
		if !got.Equal(want) {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}
}

func TestClientRejectsBadNames(t *testing.T) {
	client, err := New(ClientConfig{})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}
	defer client.Stop()

	if err := client.RecordInt64("", 1); !errors.Is(err, metrics.ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}
	if err := client.RecordInt64("a\x00b", 1); !errors.Is(err, ingest.ErrChannelNameNUL) {
		t.Errorf("Expected ErrChannelNameNUL, got %v", err)
	}
	if err := client.RecordInt64(strings.Repeat("x", ingest.MaxChannelNameLength+1), 1); !errors.Is(err, ingest.ErrChannelNameTooLong) {
		t.Errorf("Expected ErrChannelNameTooLong, got %v", err)
	}
	if client.Pending() != 0 {
		t.Errorf("Rejected records were queued: %d pending", client.Pending())
	}
}

func TestClientAsRuntimeRecorder(t *testing.T) {
	s, endpoint := newDaemon(t)

	client, err := New(ClientConfig{Endpoint: endpoint, FlushEvery: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}

	collector := runtime.NewCollector(client, time.Second, nil)
	if err := collector.Collect(); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if err := client.Stop(); err != nil {
		t.Fatalf("Failed to stop client: %v", err)
	}

	values, err := s.LastValues([]store.Request{{Name: runtime.Goroutines, Count: 1}})
	if err != nil {
		t.Fatalf("Goroutine channel missing: %v", err)
	}
	if n, _ := values[0].Samples[0].Value.Int64(); n <= 0 {
		t.Errorf("Expected positive goroutine count, got %d", n)
	}
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("blob", metrics.String("hi"))
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	if rec.Encoding != "base64" || string(rec.Value) != `"aGk="` {
		t.Errorf("Unexpected bytes record: %+v (%s)", rec, rec.Value)
	}

	rec, err = NewRecord("n", metrics.Int64(-7))
	if err != nil {
		t.Fatalf("NewRecord failed: %v", err)
	}
	if rec.Encoding != "" || string(rec.Value) != "-7" || rec.Type != metrics.Int64Type {
		t.Errorf("Unexpected int64 record: %+v (%s)", rec, rec.Value)
	}

	back, err := ingest.ParseRecord(rec)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if !back.Equal(metrics.Int64(-7)) {
		t.Errorf("Round trip mismatch: %v", back)
	}
}
