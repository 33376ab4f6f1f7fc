package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/export"
	"github.com/nicktill/metricring/pkg/promexport"
	sdkhttpx "github.com/nicktill/metricring/pkg/sdk/httpx"
	"github.com/nicktill/metricring/pkg/sdk/runtime"
	"github.com/nicktill/metricring/pkg/server"
	"github.com/nicktill/metricring/pkg/server/monitor"
	"github.com/nicktill/metricring/pkg/store"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 10 * time.Second
	shutdownTimeout    = 30 * time.Second
	taskStopTimeout    = 5 * time.Second
	dumpFileTimeout    = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := server.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

// run serves until ctx is cancelled, then shuts down and writes the dump
// file if one is configured.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting metricring server", zap.String("port", cfg.Port))

	s, err := server.InitializeStore(cfg, logger)
	if err != nil {
		return err
	}

	archive, storageMonitor, err := server.InitializeArchive(cfg, logger)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
	}

	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()
	var wg sync.WaitGroup

	deps := server.Deps{
		Store:          s,
		Handlers:       server.InitializeHandlers(s, cfg, logger),
		Registry:       promexport.NewRegistry(s),
		Archive:        archive,
		StorageMonitor: storageMonitor,
		Logger:         logger,
		Port:           cfg.Port,
	}

	if archive != nil {
		// three missed intervals before health degrades
		deps.DumpMonitor = monitor.NewDumpMonitor(3 * cfg.DumpInterval)
		dumper := server.NewDumper(archive, s, deps.DumpMonitor, cfg.DumpInterval, logger.Named("dump"))

		wg.Add(2)
		go server.RunDumper(taskCtx, dumper, &wg)
		go server.RunArchiveGC(taskCtx, archive, config.BadgerGCInterval, logger.Named("gc"), &wg)
	}

	if cfg.RuntimeInterval > 0 {
		collector := runtime.NewCollector(s, cfg.RuntimeInterval, logger.Named("runtime"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.Start(taskCtx)
		}()
		logger.Info("runtime collector started", zap.Duration("interval", cfg.RuntimeInterval))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(s, deps, cfg, logger),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server ready", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Cancel background tasks before waiting on them
	cancelTasks()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("background tasks stopped")
	case <-time.After(taskStopTimeout):
		logger.Warn("background tasks did not stop in time")
	}

	if cfg.DumpFile != "" {
		if err := writeDumpFile(s, cfg.DumpFile); err != nil {
			return err
		}
		logger.Info("metrics file written", zap.String("path", cfg.DumpFile))
	}
	return nil
}

// newHandler builds the router, wrapped in the self-recording middleware
// when record_http is set.
func newHandler(s *store.Store, deps server.Deps, cfg config.Config, logger *zap.Logger) http.Handler {
	router := mux.NewRouter()
	server.SetupRoutes(router, deps)
	if !cfg.RecordHTTP {
		return router
	}
	return sdkhttpx.Middleware(s, logger.Named("http"))(router)
}

// writeDumpFile exports the full history of every channel as JSON.
func writeDumpFile(s *store.Store, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dumpFileTimeout)
	defer cancel()

	_, err = export.NewExporter(s).ExportToJSON(ctx, f, export.ExportOptions{})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
