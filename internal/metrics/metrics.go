// Package metrics counts what the digest pipeline does. A nil *Collector is
// valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	feedFetches   *prometheus.CounterVec
	feedLatency   prometheus.Histogram
	extractions   *prometheus.CounterVec
	digests       *prometheus.CounterVec
	scheduledJobs prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdigest_feed_fetch_total",
			Help: "Feed fetches by result.",
		}, []string{"result"}),
		feedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsdigest_feed_fetch_latency_seconds",
			Help:    "Feed fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdigest_extraction_total",
			Help: "Article text extractions by reason.",
		}, []string{"reason"}),
		digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdigest_digest_total",
			Help: "Built digests by kind and result.",
		}, []string{"kind", "result"}),
		scheduledJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsdigest_scheduled_jobs",
			Help: "Registered daily digest jobs.",
		}),
	}

	reg.MustRegister(c.feedFetches, c.feedLatency, c.extractions, c.digests, c.scheduledJobs)

	return c
}

func (c *Collector) RecordFeedFetch(ok bool, latency time.Duration) {
	if c == nil {
		return
	}

	result := "ok"
	if !ok {
		result = "error"
	}

	c.feedFetches.WithLabelValues(result).Inc()
	c.feedLatency.Observe(latency.Seconds())
}

func (c *Collector) RecordExtraction(reason string) {
	if c == nil {
		return
	}

	c.extractions.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordDigest(kind string, sections int) {
	if c == nil {
		return
	}

	result := "built"
	if sections == 0 {
		result = "empty"
	}

	c.digests.WithLabelValues(kind, result).Inc()
}

func (c *Collector) SetScheduledJobs(n int) {
	if c == nil {
		return
	}

	c.scheduledJobs.Set(float64(n))
}

// Handler serves /metrics from gatherer and a plain /healthz probe.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
