package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/httpx"
	sdkhttpx "github.com/nicktill/metricring/pkg/sdk/httpx"
	"github.com/nicktill/metricring/pkg/wire"
)

// StatsResponse is the body of GET /api/stats
type StatsResponse struct {
	Channels int               `json:"channels"`
	Latest   map[string]string `json:"latest"`
	Active   int64             `json:"active"`
	Uptime   string            `json:"uptime"`
}

// handleStats reads back the newest sample of every channel this app
// writes, decoded from the daemon's wire endpoints.
func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Latest: make(map[string]string),
		Active: a.active.Load(),
		Uptime: time.Since(startTime).Round(time.Second).String(),
	}

	body, err := a.fetch(r, "/v1/wire/channels")
	if err != nil {
		a.logger.Warn("daemon query failed", zap.Error(err))
		httpx.RespondError(w, http.StatusBadGateway, err)
		return
	}
	if body == nil {
		httpx.RespondJSON(w, http.StatusOK, resp)
		return
	}
	infos, err := wire.DecodeChannelList(body)
	if err != nil {
		httpx.RespondError(w, http.StatusBadGateway, err)
		return
	}
	resp.Channels = len(infos)

	q := url.Values{}
	for _, info := range infos {
		if ownChannel(info.Name) {
			q.Add("name", info.Name)
		}
	}
	names := q["name"]
	if len(names) == 0 {
		httpx.RespondJSON(w, http.StatusOK, resp)
		return
	}

	body, err = a.fetch(r, "/v1/wire/snapshot?"+q.Encode())
	if err != nil || body == nil {
		// a channel can vanish between the two queries after a reset
		httpx.RespondJSON(w, http.StatusOK, resp)
		return
	}
	entries, err := wire.DecodeSnapshot(body)
	if err != nil {
		httpx.RespondError(w, http.StatusBadGateway, err)
		return
	}
	for i, e := range entries {
		resp.Latest[names[i]] = e.Sample.Value.String()
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

func ownChannel(name string) bool {
	return strings.HasPrefix(name, "example_") ||
		strings.HasPrefix(name, sdkhttpx.StatusPrefix) ||
		strings.HasPrefix(name, sdkhttpx.DurationPrefix)
}

// fetch returns the body of a wire endpoint, or nil when the daemon has
// nothing to export for the query.
func (a *app) fetch(r *http.Request, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, a.daemon+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query daemon: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, nil
	}
	return nil, fmt.Errorf("query daemon: status %d", resp.StatusCode)
}
