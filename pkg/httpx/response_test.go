package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{metrics.ErrInvalidName, http.StatusBadRequest},
		{fmt.Errorf("channel %q: %w", "x", metrics.ErrTypeMismatch), http.StatusBadRequest},
		{metrics.ErrInvalidCapacity, http.StatusBadRequest},
		{fmt.Errorf("decode: %w", wire.ErrProtocol), http.StatusBadRequest},
		{fmt.Errorf("channel %q: %w", "x", metrics.ErrUnknownChannel), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondStoreError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondStoreError(rec, fmt.Errorf("channel %q: %w", "gone", metrics.ErrUnknownChannel))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Error)
	assert.Contains(t, body.Message, "gone")
}

func TestRespondBinary(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondBinary(rec, []byte{1, 2, 3})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "3", rec.Header().Get("Content-Length"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}
