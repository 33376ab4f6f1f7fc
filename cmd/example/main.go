package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/sdk"
	sdkhttpx "github.com/nicktill/metricring/pkg/sdk/httpx"
	"github.com/nicktill/metricring/pkg/sdk/runtime"
)

var startTime = time.Now()

func main() {
	daemon := flag.String("daemon", "http://localhost:8080", "base URL of the metricring daemon")
	addr := flag.String("addr", ":3000", "listen address of the example app")
	simulate := flag.Bool("simulate", true, "generate traffic against the example app")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	client, err := sdk.New(sdk.ClientConfig{
		Endpoint:   strings.TrimSuffix(*daemon, "/") + "/v1/record",
		FlushEvery: 5 * time.Second,
		Logger:     logger.Named("sdk"),
	})
	if err != nil {
		logger.Fatal("failed to create client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Start(ctx); err != nil {
		logger.Fatal("failed to start client", zap.Error(err))
	}
	defer func() {
		if err := client.Stop(); err != nil {
			logger.Warn("final flush failed", zap.Error(err))
		}
	}()

	go runtime.NewCollector(client, 10*time.Second, logger.Named("runtime")).Start(ctx)

	app := newApp(client, *daemon, logger)
	mux := http.NewServeMux()
	app.routes(mux)

	server := &http.Server{
		Addr:              *addr,
		Handler:           sdkhttpx.Middleware(client, logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("example app listening",
			zap.String("addr", *addr),
			zap.String("daemon", *daemon))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	if *simulate {
		go startTrafficSimulator(ctx, baseURL(*addr), logger)
	}

	<-ctx.Done()
	logger.Info("shutting down example app")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}

// baseURL turns a listen address into a URL the simulator can reach
func baseURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
