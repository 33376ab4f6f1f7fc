package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/metricring/pkg/store"
)

// FormatVersion is written into every JSON export
const FormatVersion = "1.0"

// Exporter writes channel history in human-readable formats
type Exporter struct {
	store *store.Store
	now   func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(s *store.Store) *Exporter {
	return &Exporter{store: s, now: time.Now}
}

// ExportOptions configures the export operation
type ExportOptions struct {
	// Channels to export (nil = all channels)
	Channels []string

	// Format: "json" or "csv"
	Format string
}

// ExportResult contains stats about the export
type ExportResult struct {
	ChannelsExported int       `json:"channels_exported"`
	SamplesExported  int       `json:"samples_exported"`
	Format           string    `json:"format"`
	ExportedAt       time.Time `json:"exported_at"`
}

// Metadata heads a JSON export
type Metadata struct {
	ExportedAt   time.Time `json:"exported_at"`
	ChannelCount int       `json:"channel_count"`
	SampleCount  int       `json:"sample_count"`
	Format       string    `json:"format"`
	Version      string    `json:"version"`
}

// Document is the JSON export layout
type Document struct {
	Metadata Metadata               `json:"metadata"`
	Channels []store.ChannelHistory `json:"channels"`
}

func (e *Exporter) collect(ctx context.Context, opts ExportOptions) ([]store.ChannelHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Channels == nil {
		return e.store.AllHistory(), nil
	}

	reqs := make([]store.Request, len(opts.Channels))
	for i, name := range opts.Channels {
		ch, ok := e.store.Channel(name)
		count := 0
		if ok {
			count = int(ch.Capacity())
		}
		reqs[i] = store.Request{Name: name, Count: count}
	}
	hist, err := e.store.History(reqs)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return hist, nil
}

func sampleCount(hist []store.ChannelHistory) int {
	n := 0
	for _, h := range hist {
		n += h.Count()
	}
	return n
}

// ExportToJSON writes the retained history as one JSON document
func (e *Exporter) ExportToJSON(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	hist, err := e.collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	doc := Document{
		Metadata: Metadata{
			ExportedAt:   e.now(),
			ChannelCount: len(hist),
			SampleCount:  sampleCount(hist),
			Format:       "json",
			Version:      FormatVersion,
		},
		Channels: hist,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	return &ExportResult{
		ChannelsExported: doc.Metadata.ChannelCount,
		SamplesExported:  doc.Metadata.SampleCount,
		Format:           "json",
		ExportedAt:       doc.Metadata.ExportedAt,
	}, nil
}

// CSVHeader is the first row of a CSV export
var CSVHeader = []string{"channel", "type", "sequence", "timestamp", "value"}

// ExportToCSV writes one row per retained sample. Byte payloads are written
// as text.
func (e *Exporter) ExportToCSV(ctx context.Context, w io.Writer, opts ExportOptions) (*ExportResult, error) {
	hist, err := e.collect(ctx, opts)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, h := range hist {
		for _, s := range h.Samples {
			row := []string{
				h.Name,
				h.Type.String(),
				strconv.FormatUint(s.Sequence, 10),
				s.Time().UTC().Format(time.RFC3339Nano),
				s.Value.String(),
			}
			if err := writer.Write(row); err != nil {
				return nil, fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	return &ExportResult{
		ChannelsExported: len(hist),
		SamplesExported:  sampleCount(hist),
		Format:           "csv",
		ExportedAt:       e.now(),
	}, nil
}
