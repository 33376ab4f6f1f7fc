/*
Package sdk provides the metricring client library for recording samples
into a remote daemon.

# Quick Start

	package main

	import (
	    "context"
	    "log"
	    "net/http"

	    "github.com/nicktill/metricring/pkg/sdk"
	    "github.com/nicktill/metricring/pkg/sdk/httpx"
	    "github.com/nicktill/metricring/pkg/sdk/runtime"
	)

	func main() {
	    client, err := sdk.New(sdk.ClientConfig{
	        Endpoint: "http://localhost:8080/v1/record",
	    })
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := context.Background()
	    client.Start(ctx)
	    defer client.Stop()

	    // Go runtime stats every 15 seconds
	    go runtime.NewCollector(client, 0, nil).Start(ctx)

	    mux := http.NewServeMux()
	    mux.HandleFunc("/", homeHandler)
	    http.ListenAndServe(":8000", httpx.Middleware(client, nil)(mux))
	}

# Recording

Each channel holds one value type, fixed by its first sample:

	client.RecordInt64("jobs_queued", 12)
	client.RecordFloat64("cpu_load", 0.42)
	client.RecordString("build_state", "green")

Names are checked when recorded. A sample whose type clashes with the
daemon's channel is rejected when its batch is posted, and the whole batch
is reported to the logger as dropped.

# Batching

Samples are queued and posted to /v1/record when MaxBatchSize is reached
(default 1000) or every FlushEvery (default 5s). Stop flushes whatever is
left.

# Producers

The runtime and httpx packages accept any Recorder, so they work with both
a Client and an in-process store.Store:

  - runtime.Collector records Go runtime stats
  - httpx.Middleware records request duration and status per route

# Local Development

	go run ./cmd/server
	curl "http://localhost:8080/v1/snapshot?name=go_goroutines"
*/
package sdk
