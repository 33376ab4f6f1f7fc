package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/wire"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode JSON response", zap.Error(err))
	}
}

// RespondBinary writes raw wire bytes
func RespondBinary(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zap.L().Warn("failed to write binary response", zap.Error(err))
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes an error response with the given status code and error message.
func RespondError(w http.ResponseWriter, status int, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	}
	RespondJSON(w, status, response)
}

// RespondErrorString writes an error response with the given status code and error message string.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	RespondJSON(w, status, response)
}

// StatusFor maps store and codec errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, metrics.ErrInvalidName),
		errors.Is(err, metrics.ErrTypeMismatch),
		errors.Is(err, metrics.ErrInvalidCapacity),
		errors.Is(err, wire.ErrProtocol):
		return http.StatusBadRequest
	case errors.Is(err, metrics.ErrUnknownChannel):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// RespondStoreError writes err with the status StatusFor picks
func RespondStoreError(w http.ResponseWriter, err error) {
	RespondError(w, StatusFor(err), err)
}
