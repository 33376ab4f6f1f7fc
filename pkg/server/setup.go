package server

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/archive/badger"
	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/export"
	"github.com/nicktill/metricring/pkg/ingest"
	"github.com/nicktill/metricring/pkg/query"
	"github.com/nicktill/metricring/pkg/server/monitor"
	"github.com/nicktill/metricring/pkg/store"
)

// Handlers groups the HTTP handlers served under /v1.
type Handlers struct {
	Ingest *ingest.Handler
	Query  *query.Handler
	Export *export.Handler
}

// NewLogger builds the daemon logger: development output at debug level,
// JSON production output otherwise.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.LogLevel == "debug" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.Level())
	return zc.Build()
}

// InitializeStore creates the in-memory store.
func InitializeStore(cfg config.Config, logger *zap.Logger) (*store.Store, error) {
	s, err := store.New(cfg.DefaultCapacity, store.WithLogger(logger.Named("store")))
	if err != nil {
		return nil, err
	}
	logger.Info("store initialized", zap.Uint32("default_capacity", cfg.DefaultCapacity))
	return s, nil
}

// InitializeArchive opens the badger archive under cfg.ArchiveDir. It
// returns nils when no archive directory is configured.
func InitializeArchive(cfg config.Config, logger *zap.Logger) (*badger.Archive, *monitor.StorageMonitor, error) {
	if cfg.ArchiveDir == "" {
		logger.Info("archive disabled")
		return nil, nil, nil
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	archive, err := badger.New(badger.Config{
		Path:        cfg.ArchiveDir,
		MaxMemoryMB: cfg.ArchiveMaxMemoryMB,
		Logger:      logger.Named("archive"),
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("archive opened",
		zap.String("dir", cfg.ArchiveDir),
		zap.Int64("max_memory_mb", cfg.ArchiveMaxMemoryMB))

	return archive, monitor.NewStorageMonitor(cfg.ArchiveDir, config.StorageCheckInterval), nil
}

// InitializeHandlers creates and configures all request handlers.
func InitializeHandlers(s *store.Store, cfg config.Config, logger *zap.Logger) Handlers {
	h := Handlers{
		Ingest: ingest.NewHandler(s,
			ingest.WithLogger(logger.Named("ingest")),
			ingest.WithMaxRecords(cfg.MaxRecordsPerRequest),
			ingest.WithMaxChannels(cfg.MaxChannels),
		),
		Query:  query.NewHandler(s, logger.Named("query")),
		Export: export.NewHandler(s, logger.Named("export")),
	}
	logger.Debug("handlers created",
		zap.Int("max_records_per_request", cfg.MaxRecordsPerRequest),
		zap.Int("max_channels", cfg.MaxChannels))
	return h
}
