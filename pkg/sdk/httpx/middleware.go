package httpx

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// Recorder is the subset of *store.Store the middleware writes through.
type Recorder interface {
	RecordInt64(name string, v int64) error
	RecordFloat64(name string, v float64) error
}

// Channel name prefixes; the method and normalized path are appended.
const (
	DurationPrefix = "http_request_duration_seconds:"
	StatusPrefix   = "http_response_status:"
)

var (
	numericSegment = regexp.MustCompile(`/\d+`)
	uuidSegment    = regexp.MustCompile(`/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// ChannelSuffix is the per-route part of the channel names, e.g.
// "GET /api/users/{id}".
func ChannelSuffix(method, path string) string {
	return method + " " + normalizePath(path)
}

// Middleware returns HTTP middleware that records, per method and path,
// the request duration (float64 seconds) and the response status (int64)
// into rec. Each request adds one sample to both channels, so a channel's
// sequence counts requests.
//
// Usage:
//
//	s, _ := store.New(100)
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", handler)
//	http.ListenAndServe(":8080", httpx.Middleware(s, logger)(mux))
func Middleware(rec Recorder, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			suffix := ChannelSuffix(r.Method, r.URL.Path)
			err := errors.Join(
				rec.RecordFloat64(DurationPrefix+suffix, time.Since(start).Seconds()),
				rec.RecordInt64(StatusPrefix+suffix, int64(rw.statusCode)),
			)
			if err != nil {
				logger.Debug("failed to record request", zap.String("route", suffix), zap.Error(err))
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the wrapper. A hijacked
// connection reports 101.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
	}
	conn, buf, err := h.Hijack()
	if err == nil {
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

// Unwrap exposes the wrapped writer to http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath normalizes paths to keep the channel count bounded.
// Examples:
//   - /api/users/123 → /api/users/{id}
//   - /posts/456/comments → /posts/{id}/comments
//   - /api/users/<uuid> → /api/users/{id}
func normalizePath(path string) string {
	path = uuidSegment.ReplaceAllString(path, "/{id}")
	return numericSegment.ReplaceAllString(path, "/{id}")
}
