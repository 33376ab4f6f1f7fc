package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nicktill/metricring/pkg/ingest"
)

// Transport defines the interface for sending records
type Transport interface {
	Send(ctx context.Context, records []ingest.Record) error
}

// HTTPTransport posts records to a metricring /v1/record endpoint
type HTTPTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTP creates a new HTTP transport
func NewHTTP(endpoint, apiKey string) *HTTPTransport {
	return &HTTPTransport{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts one record request. A non-2xx response is an error carrying
// the server's message.
func (t *HTTPTransport) Send(ctx context.Context, records []ingest.Record) error {
	if len(records) == 0 {
		return nil
	}

	jsonData, err := json.Marshal(ingest.RecordRequest{Records: records})
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &body) == nil && body.Message != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, body.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return nil
}
