package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/nicktill/metricring/pkg/store"
)

// decodedDocument mirrors Document with raw sample values
type decodedDocument struct {
	Metadata Metadata `json:"metadata"`
	Channels []struct {
		Name          string `json:"name"`
		Type          string `json:"type"`
		FirstSequence uint64 `json:"first_sequence"`
		Samples       []struct {
			Value    json.RawMessage `json:"value"`
			Sequence uint64          `json:"sequence"`
		} `json:"samples"`
	} `json:"channels"`
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(3, store.WithClock(func() time.Time {
		return time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func TestExportToJSON(t *testing.T) {
	s := newTestStore(t)
	for i := int64(1); i <= 4; i++ {
		if err := s.RecordInt64("jobs.done", i); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}
	if err := s.RecordString("state", "ok"); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	exporter := NewExporter(s)
	buf := &bytes.Buffer{}
	result, err := exporter.ExportToJSON(context.Background(), buf, ExportOptions{Format: "json"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.ChannelsExported != 2 {
		t.Errorf("Expected 2 channels exported, got %d", result.ChannelsExported)
	}
	if result.SamplesExported != 4 {
		t.Errorf("Expected 4 samples exported, got %d", result.SamplesExported)
	}

	var doc decodedDocument
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to parse exported JSON: %v", err)
	}

	if doc.Metadata.Format != "json" || doc.Metadata.Version != FormatVersion {
		t.Errorf("Unexpected metadata: %+v", doc.Metadata)
	}
	if len(doc.Channels) != 2 {
		t.Fatalf("Expected 2 channels in output, got %d", len(doc.Channels))
	}

	jobs := doc.Channels[0]
	if jobs.Name != "jobs.done" || jobs.Type != "int64" || jobs.FirstSequence != 1 {
		t.Errorf("Unexpected channel header: %s %s %d", jobs.Name, jobs.Type, jobs.FirstSequence)
	}
	if len(jobs.Samples) != 3 || string(jobs.Samples[0].Value) != "2" || jobs.Samples[2].Sequence != 3 {
		t.Errorf("Unexpected jobs.done samples: %+v", jobs.Samples)
	}

	state := doc.Channels[1]
	if len(state.Samples) != 1 || string(state.Samples[0].Value) != `"b2s="` {
		t.Errorf("Expected base64 payload for state, got %+v", state.Samples)
	}
}

func TestExportToCSV(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordFloat64("load", 0.75); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}
	if err := s.RecordString("state", "running"); err != nil {
		t.Fatalf("Failed to record: %v", err)
	}

	exporter := NewExporter(s)
	buf := &bytes.Buffer{}
	result, err := exporter.ExportToCSV(context.Background(), buf, ExportOptions{Format: "csv"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.SamplesExported != 2 {
		t.Errorf("Expected 2 samples exported, got %d", result.SamplesExported)
	}

	records, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 CSV records (header + 2 rows), got %d", len(records))
	}

	for i, col := range CSVHeader {
		if records[0][i] != col {
			t.Errorf("Expected column %d to be %s, got %s", i, col, records[0][i])
		}
	}

	want := [][]string{
		{"load", "float64", "0", "2025-11-19T12:00:00Z", "0.75"},
		{"state", "bytes", "0", "2025-11-19T12:00:00Z", "running"},
	}
	for i, row := range want {
		for j, cell := range row {
			if records[i+1][j] != cell {
				t.Errorf("Row %d column %d: expected %q, got %q", i+1, j, cell, records[i+1][j])
			}
		}
	}
}

func TestExportSelectedChannels(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"a", "b", "c"} {
		if err := s.RecordInt64(name, 1); err != nil {
			t.Fatalf("Failed to record: %v", err)
		}
	}

	exporter := NewExporter(s)
	buf := &bytes.Buffer{}
	result, err := exporter.ExportToJSON(context.Background(), buf, ExportOptions{Channels: []string{"c", "a"}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.ChannelsExported != 2 {
		t.Errorf("Expected 2 channels exported, got %d", result.ChannelsExported)
	}

	_, err = exporter.ExportToJSON(context.Background(), &bytes.Buffer{}, ExportOptions{Channels: []string{"a", "nope"}})
	if err == nil {
		t.Error("Expected error for unknown channel")
	}
}

func TestExportEmptyStore(t *testing.T) {
	s := newTestStore(t)

	exporter := NewExporter(s)
	buf := &bytes.Buffer{}
	result, err := exporter.ExportToJSON(context.Background(), buf, ExportOptions{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.SamplesExported != 0 {
		t.Errorf("Expected 0 samples exported from empty store, got %d", result.SamplesExported)
	}
}

func TestExportCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewExporter(s).ExportToCSV(ctx, &bytes.Buffer{}, ExportOptions{}); err == nil {
		t.Error("Expected error for canceled context")
	}
}
