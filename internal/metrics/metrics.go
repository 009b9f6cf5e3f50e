package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// DraftsTotal counts draft results by the path that produced them.
	DraftsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fixr",
		Name:      "drafts_total",
		Help:      "Total number of drafts generated, labeled by source and fallback reason.",
	}, []string{"source", "reason"})

	ReportsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixr",
		Name:      "reports_created_total",
		Help:      "Total number of reports persisted.",
	})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fixr",
		Name:      "rate_limited_total",
		Help:      "Total number of report submissions rejected by the per-caller limit.",
	})

	FeedSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fixr",
		Name:      "feed_subscribers",
		Help:      "Current number of live pin feed subscribers.",
	})
)

// Register registers fixr metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			DraftsTotal,
			ReportsCreatedTotal,
			RateLimitedTotal,
			FeedSubscribers,
		)
	})
}

func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

func ObserveDraft(source, reason string) {
	DraftsTotal.WithLabelValues(source, reason).Inc()
}

func ReportCreated() {
	ReportsCreatedTotal.Inc()
}

func RateLimited() {
	RateLimitedTotal.Inc()
}
