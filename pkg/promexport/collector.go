// Package promexport exposes a store to Prometheus scrapers.
//
// Every channel contributes its capacity, retained sample count, total writes
// and evictions. Numeric channels also export their newest value as a gauge;
// bytes channels have no numeric value and are skipped for that series.
package promexport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicktill/metricring/pkg/store"
)

const namespace = "metricring"

// Collector reads the store on every scrape; it keeps no state of its own.
type Collector struct {
	store *store.Store

	channels  *prometheus.Desc
	value     *prometheus.Desc
	capacity  *prometheus.Desc
	retained  *prometheus.Desc
	writes    *prometheus.Desc
	evictions *prometheus.Desc
}

// NewCollector creates a collector over s
func NewCollector(s *store.Store) *Collector {
	labels := []string{"channel", "type"}
	return &Collector{
		store: s,
		channels: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "channels"),
			"Number of channels in the store",
			nil, nil,
		),
		value: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "value"),
			"Newest sample of a numeric channel",
			labels, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "capacity"),
			"Maximum samples retained by a channel",
			labels, nil,
		),
		retained: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "samples"),
			"Samples currently retained by a channel",
			labels, nil,
		),
		writes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "writes_total"),
			"Samples written to a channel since creation",
			labels, nil,
		),
		evictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "channel", "evictions_total"),
			"Samples dropped from a full channel",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.channels
	ch <- c.value
	ch <- c.capacity
	ch <- c.retained
	ch <- c.writes
	ch <- c.evictions
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	infos := c.store.ListChannels()
	ch <- prometheus.MustNewConstMetric(c.channels, prometheus.GaugeValue, float64(len(infos)))

	for _, info := range infos {
		channel, ok := c.store.Channel(info.Name)
		if !ok {
			// dropped by a concurrent reset
			continue
		}
		typ := info.Type.String()

		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(info.Capacity), info.Name, typ)
		ch <- prometheus.MustNewConstMetric(c.retained, prometheus.GaugeValue, float64(channel.Len()), info.Name, typ)
		ch <- prometheus.MustNewConstMetric(c.writes, prometheus.CounterValue, float64(channel.Sequence()), info.Name, typ)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(channel.Evictions()), info.Name, typ)

		if latest, ok := channel.Latest(); ok {
			if v, ok := latest.Value.Number(); ok {
				ch <- prometheus.NewMetricWithTimestamp(latest.Time(),
					prometheus.MustNewConstMetric(c.value, prometheus.GaugeValue, v, info.Name, typ))
			}
		}
	}
}

// NewRegistry returns a registry holding a Collector for s plus the Go
// runtime and process collectors.
func NewRegistry(s *store.Store) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(s))
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the exposition format for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
