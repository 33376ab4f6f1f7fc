package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// startTrafficSimulator requests the example endpoints in a fixed rotation
// so the daemon always has fresh samples.
func startTrafficSimulator(ctx context.Context, base string, logger *zap.Logger) {
	// give the server a moment to start
	select {
	case <-ctx.Done():
		return
	case <-time.After(500 * time.Millisecond):
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	endpoints := []string{"/api/users", "/api/orders", "/api/products"}
	client := &http.Client{Timeout: 5 * time.Second}
	logger.Info("traffic simulator started", zap.Strings("endpoints", endpoints))

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			logger.Info("traffic simulator stopped")
			return
		case <-ticker.C:
			go hit(ctx, client, base+endpoints[n%len(endpoints)], logger)
		}
	}
}

func hit(ctx context.Context, client *http.Client, target string, logger *zap.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("simulated request failed", zap.String("target", target), zap.Error(err))
		}
		return
	}
	resp.Body.Close()
	logger.Debug("simulated request", zap.String("target", target), zap.Int("status", resp.StatusCode))
}
