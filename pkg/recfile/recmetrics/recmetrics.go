// Package recmetrics exposes recfile store counters as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(recmetrics.NewCollector(store, "records"))
//
// Values are read from the store on every scrape. Because a [recfile.Store]
// is not safe for concurrent use, scrapes must be serialized with the
// store's other callers (for example by gathering from the same goroutine).
package recmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/recfile/pkg/recfile"
)

// Namespace prefixes every metric name.
const Namespace = "recfile"

// Source is anything that reports store counters. [*recfile.Store]
// satisfies it.
type Source interface {
	Stats() recfile.Stats
}

// Collector is a [prometheus.Collector] over one store.
type Collector struct {
	src Source

	records     *prometheus.Desc
	span        *prometheus.Desc
	liveSpan    *prometheus.Desc
	reclaimable *prometheus.Desc
	compactions *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for src. name ends up in the "store"
// label so several stores can share a registry.
func NewCollector(src Source, name string) *Collector {
	labels := prometheus.Labels{"store": name}

	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, "", metric), help, nil, labels)
	}

	return &Collector{
		src:         src,
		records:     desc("records", "Number of live records."),
		span:        desc("span_bytes", "Size of the data region, including slack and tombstones."),
		liveSpan:    desc("live_span_bytes", "Size of the data region after compaction."),
		reclaimable: desc("reclaimable_bytes", "Bytes held by tombstones and slack."),
		compactions: desc("compactions_total", "Successful compactions since the store was opened."),
	}
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.span
	ch <- c.liveSpan
	ch <- c.reclaimable
	ch <- c.compactions
}

// Collect implements [prometheus.Collector].
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.records, prometheus.GaugeValue, float64(st.Records))
	ch <- prometheus.MustNewConstMetric(c.span, prometheus.GaugeValue, float64(st.Span))
	ch <- prometheus.MustNewConstMetric(c.liveSpan, prometheus.GaugeValue, float64(st.LiveSpan))
	ch <- prometheus.MustNewConstMetric(c.reclaimable, prometheus.GaugeValue, float64(st.Reclaimable))
	ch <- prometheus.MustNewConstMetric(c.compactions, prometheus.CounterValue, float64(st.Compactions))
}
