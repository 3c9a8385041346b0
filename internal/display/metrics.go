package display

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes.
const (
	OutcomePublished = "published"
	OutcomeSkipped   = "skipped"
	OutcomeGone      = "gone"
	OutcomeFailed    = "failed"
)

// Metrics holds the scheduler's prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	Refreshes *prometheus.CounterVec
	Pending   prometheus.Gauge
	Drain     prometheus.Histogram
}

// NewMetrics registers the display collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_display_refresh_total",
			Help: "Display refreshes by kind and outcome",
		}, []string{"kind", "outcome"}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_display_pending",
			Help: "The current number of pending display refreshes",
		}),
		Drain: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_display_drain_seconds",
			Help:    "Duration of a full drain of the refresh queue",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) observeRefresh(kind Kind, outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

func (m *Metrics) observeDrain(d time.Duration) {
	if m == nil {
		return
	}
	m.Drain.Observe(d.Seconds())
}
