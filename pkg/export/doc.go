// Package export hands store contents to observers outside the store.
//
// # Wire buffers
//
// Surface encodes query results into caller-owned Buffers using the
// pkg/wire layout. It is the Go shape of the C ABI in cmd/libmetrics:
// typed errors are not returned, a failed query yields a nil Buffer.
//
//	s, _ := store.New(10)
//	s.RecordInt64("jobs.done", 1)
//
//	buf := export.History(s, []string{"jobs.done"}, []int64{10})
//	if buf != nil {
//	    defer buf.Free()
//	    blocks, err := wire.DecodeHistory(buf.Bytes())
//	    ...
//	}
//
// Snapshot and History are all-or-nothing. When any requested channel is
// unknown or holds no samples the whole call returns nil and nothing is
// allocated for the caller.
//
// Each Buffer must be freed exactly once. A second Free panics.
//
// # JSON and CSV
//
// Exporter writes the retained history of all or selected channels:
//
//	exporter := export.NewExporter(s)
//	file, _ := os.Create("metrics.json")
//	defer file.Close()
//	result, err := exporter.ExportToJSON(ctx, file, export.ExportOptions{})
//
// The JSON document carries metadata plus one history window per channel:
//
//	{
//	  "metadata": {
//	    "exported_at": "2025-11-19T03:00:00Z",
//	    "channel_count": 1,
//	    "sample_count": 2,
//	    "format": "json",
//	    "version": "1.0"
//	  },
//	  "channels": [
//	    {
//	      "name": "jobs.done",
//	      "type": "int64",
//	      "first_sequence": 4,
//	      "samples": [
//	        {"value": 4, "sequence": 4, "seconds": 1763521200, "nanoseconds": 0},
//	        {"value": 5, "sequence": 5, "seconds": 1763521201, "nanoseconds": 0}
//	      ]
//	    }
//	  ]
//	}
//
// Byte payloads appear base64 encoded in JSON and as raw text in CSV.
//
// # HTTP API
//
// Export endpoint: GET /v1/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//   - channel: channel name, repeatable (default: all channels)
package export
