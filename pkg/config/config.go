package config

import "time"

// Store defaults
const (
	// DefaultCapacity is the per-channel sample limit for lazily created channels
	DefaultCapacity    = 10
	DefaultMaxChannels = 10000
)

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultMaxMemoryMB = 48
	DefaultLogLevel    = "info"
)

// Background task intervals
const (
	DefaultDumpInterval    = 1 * time.Minute
	DefaultRuntimeInterval = 10 * time.Second
	BadgerGCInterval       = 10 * time.Minute
	StorageCheckInterval   = 5 * time.Minute
)

// Ingest limits
const (
	IngestTimeout               = 5 * time.Second
	DefaultMaxRecordsPerRequest = 1000
	MaxBytesPayload             = 64 * 1024
	MaxRequestBodyBytes         = 10 * 1024 * 1024
)

// Query defaults and limits
const (
	QueryDefaultCount = 1
	QueryMaxNames     = 1000
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
	WSMaxMessageBytes = 64 * 1024
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "METRICRING_"
