package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/nicktill/metricring/pkg/store"
)

// mockRecorder implements Recorder for testing
type mockRecorder struct {
	mu       sync.Mutex
	ints     map[string][]int64
	floats   map[string][]float64
	failWith error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		ints:   make(map[string][]int64),
		floats: make(map[string][]float64),
	}
}

func (m *mockRecorder) RecordInt64(name string, v int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[name] = append(m.ints[name], v)
	return m.failWith
}

func (m *mockRecorder) RecordFloat64(name string, v float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.floats[name] = append(m.floats[name], v)
	return m.failWith
}

func TestMiddleware_BasicRequest(t *testing.T) {
	rec := newMockRecorder()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	wrapped := Middleware(rec, nil)(handler)

	req := httptest.NewRequest("GET", "/api/users", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	statuses := rec.ints[StatusPrefix+"GET /api/users"]
	if len(statuses) != 1 || statuses[0] != 200 {
		t.Errorf("Expected one status sample of 200, got %v", statuses)
	}

	durations := rec.floats[DurationPrefix+"GET /api/users"]
	if len(durations) != 1 || durations[0] < 0 {
		t.Errorf("Expected one non-negative duration, got %v", durations)
	}
}

func TestMiddleware_ErrorStatus(t *testing.T) {
	rec := newMockRecorder()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Error"))
	})

	wrapped := Middleware(rec, nil)(handler)

	req := httptest.NewRequest("POST", "/api/create", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}

	statuses := rec.ints[StatusPrefix+"POST /api/create"]
	if len(statuses) != 1 || statuses[0] != 500 {
		t.Errorf("Expected one status sample of 500, got %v", statuses)
	}
}

func TestMiddleware_IntoStore(t *testing.T) {
	s, err := store.New(10)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Middleware(s, nil)(handler)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		wrapped.ServeHTTP(httptest.NewRecorder(), req)
	}

	ch, ok := s.Channel(StatusPrefix + "GET /health")
	if !ok {
		t.Fatalf("status channel not created; channels: %v", s.ListChannels())
	}
	// the sequence counter doubles as a request count
	if ch.Sequence() != 3 {
		t.Errorf("Expected 3 requests, got %d", ch.Sequence())
	}

	if s.ChannelCount() != 2 {
		t.Errorf("Expected 2 channels, got %d", s.ChannelCount())
	}
}

func TestMiddleware_DifferentPaths(t *testing.T) {
	rec := newMockRecorder()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Middleware(rec, nil)(handler)

	paths := []string{"/api/users", "/api/posts", "/health"}
	for _, path := range paths {
		req := httptest.NewRequest("GET", path, nil)
		wrapped.ServeHTTP(httptest.NewRecorder(), req)
	}

	for _, path := range paths {
		if n := len(rec.ints[StatusPrefix+"GET "+path]); n != 1 {
			t.Errorf("Expected 1 status sample for path %s, got %d", path, n)
		}
	}
	if len(rec.ints) != 3 {
		t.Errorf("Expected 3 status channels, got %d: %v", len(rec.ints), rec.ints)
	}
}

func TestMiddleware_RecorderErrorDoesNotFailRequest(t *testing.T) {
	rec := newMockRecorder()
	rec.failWith = errors.New("type mismatch")
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	rr := httptest.NewRecorder()
	Middleware(rec, nil)(handler).ServeHTTP(rr, httptest.NewRequest("GET", "/x", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Errorf("Expected untouched 200 OK, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestResponseWriter_CapturesStatusCode(t *testing.T) {
	rr := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Expected status code 404, got %d", rw.statusCode)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected underlying recorder to have status 404, got %d", rr.Code)
	}
}

func TestResponseWriter_DefaultStatusOK(t *testing.T) {
	rec := newMockRecorder()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Don't call WriteHeader, just write body
		w.Write([]byte("OK"))
	})

	Middleware(rec, nil)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))

	statuses := rec.ints[StatusPrefix+"GET /test"]
	if len(statuses) != 1 || statuses[0] != 200 {
		t.Errorf("Expected default status 200, got %v", statuses)
	}
}

func TestMiddleware_WebSocketUpgrade(t *testing.T) {
	rec := newMockRecorder()
	upgrader := websocket.Upgrader{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	})

	srv := httptest.NewServer(Middleware(rec, nil)(handler))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	conn.Close()
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/api/users", "/api/users"},
		{"/api/users/123", "/api/users/{id}"},
		{"/posts/456/comments", "/posts/{id}/comments"},
		{"/api/users/123e4567-e89b-12d3-a456-426614174000", "/api/users/{id}"},
		{"/v1/channels", "/v1/channels"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizePath(tt.input); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
