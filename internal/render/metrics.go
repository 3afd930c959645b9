package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pagesRendered counts written pages by kind
	pagesRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_render_pages_total",
		Help: "Pages written by the static exporter, by kind",
	}, []string{"kind"})

	// pagesSkipped counts documents left out because they could not be decoded
	pagesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_render_skipped_total",
		Help: "Documents skipped because they could not be read or decoded, by kind",
	}, []string{"kind"})

	// graphNodes tracks the size of emitted reference graphs
	graphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "folio_graph_nodes",
		Help:    "Number of nodes per emitted reference graph",
		Buckets: []float64{0, 1, 5, 10, 20, 35, 50},
	})

	// runDuration tracks full export passes
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "folio_render_run_duration_seconds",
		Help:    "Static export duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
