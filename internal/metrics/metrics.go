// Package metrics exposes Prometheus collectors for the Pawgram daemon.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pawgram",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawgram",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pawgram",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawgram",
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	postsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pawgram",
			Subsystem: "posts",
			Name:      "created_total",
			Help:      "Posts created.",
		},
	)

	reactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawgram",
			Subsystem: "posts",
			Name:      "reactions_total",
			Help:      "Reactions stored, by whether they replaced an earlier one.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		logins,
		postsCreated,
		reactions,
	)
}

// Counter reports the number of documents in a collection.
type Counter interface {
	Count(collection string) int
}

// RegisterDocumentGauges exposes document counts for the given collections.
func RegisterDocumentGauges(store Counter, collections ...string) error {
	for _, name := range collections {
		name := name
		gauge := prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   "pawgram",
				Subsystem:   "store",
				Name:        "documents",
				Help:        "Number of documents per collection.",
				ConstLabels: prometheus.Labels{"collection": name},
			},
			func() float64 { return float64(store.Count(name)) },
		)
		if err := Registry.Register(gauge); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies. Paths are reported by
// route template so ids do not explode label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequests.WithLabelValues(c.Request.Method, path, status).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordLogin counts a login attempt.
func RecordLogin(success bool) {
	if success {
		logins.WithLabelValues("success").Inc()
		return
	}
	logins.WithLabelValues("failure").Inc()
}

// RecordPostCreated counts a new post.
func RecordPostCreated() {
	postsCreated.Inc()
}

// RecordReaction counts a stored reaction.
func RecordReaction(replaced bool) {
	if replaced {
		reactions.WithLabelValues("replaced").Inc()
		return
	}
	reactions.WithLabelValues("added").Inc()
}
