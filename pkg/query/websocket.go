package query

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No Origin header means a non-browser client
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
}

// Websocket query operations
const (
	OpList     = "list"
	OpSnapshot = "snapshot"
	OpHistory  = "history"
)

// WSQuery is one client message on /v1/ws
type WSQuery struct {
	ID       string          `json:"id,omitempty"`
	Op       string          `json:"op"`
	Requests []store.Request `json:"requests,omitempty"`
}

// WSReply answers exactly one WSQuery
type WSReply struct {
	ID       string                 `json:"id,omitempty"`
	Op       string                 `json:"op"`
	Channels []metrics.ChannelInfo  `json:"channels,omitempty"`
	Values   []store.ChannelValues  `json:"values,omitempty"`
	History  []store.ChannelHistory `json:"history,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

type connCounter struct {
	n atomic.Int64
}

// Connections returns the number of open websocket clients
func (h *Handler) Connections() int64 { return h.conns.n.Load() }

// Answer runs a single query against the store
func (h *Handler) Answer(q WSQuery) WSReply {
	reply := WSReply{ID: q.ID, Op: q.Op}
	var err error
	switch q.Op {
	case OpList:
		reply.Channels = h.store.ListChannels()
	case OpSnapshot:
		reply.Values, err = h.store.LastValues(q.Requests)
	case OpHistory:
		reply.History, err = h.store.History(q.Requests)
	default:
		err = fmt.Errorf("unknown op %q", q.Op)
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}

// HandleWebSocket handles GET /v1/ws. Each text message from the client is
// a WSQuery answered by one WSReply; nothing is sent unprompted apart from
// keepalive pings.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	total := h.conns.n.Add(1)
	h.logger.Info("websocket client connected", zap.Int64("total", total))
	defer func() {
		total := h.conns.n.Add(-1)
		h.logger.Info("websocket client disconnected", zap.Int64("total", total))
	}()

	// gorilla/websocket allows one concurrent writer
	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
		return conn.WriteMessage(messageType, data)
	}

	done := make(chan struct{})
	defer close(done)

	// keepalive pings
	go func() {
		ticker := time.NewTicker(config.WSPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	conn.SetReadLimit(config.WSMaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		return nil
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
		if messageType != websocket.TextMessage {
			continue
		}

		var q WSQuery
		var reply WSReply
		if err := json.Unmarshal(data, &q); err != nil {
			reply = WSReply{Error: fmt.Sprintf("invalid JSON: %v", err)}
		} else {
			reply = h.Answer(q)
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			h.logger.Error("failed to encode websocket reply", zap.Error(err))
			return
		}
		if err := write(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("websocket write error", zap.Error(err))
			return
		}
	}
}
