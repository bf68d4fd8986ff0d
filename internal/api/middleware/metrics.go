package middleware

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paas_api_requests_total",
		Help: "Orchestrator API requests by resource and status class.",
	}, []string{"resource", "method", "class"})

	apiLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paas_api_request_duration_seconds",
		Help:    "Orchestrator API latency by resource, event streams excluded.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"resource"})

	apiJobsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paas_api_jobs_accepted_total",
		Help: "Requests answered 202 with a queued job.",
	}, []string{"resource"})

	apiEventStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paas_api_event_streams",
		Help: "Open websocket event streams.",
	})
)

// Metrics counts API traffic per resource. Streams are tracked as a gauge
// while open rather than as latency.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &streamWriter{statusWriter: wrap(w)}
		next.ServeHTTP(ww, r)
		if ww.counted {
			apiEventStreams.Dec()
		}

		res := resource(r)
		apiRequests.WithLabelValues(res, r.Method, statusClass(ww.status)).Inc()
		if ww.status == http.StatusAccepted {
			apiJobsAccepted.WithLabelValues(res).Inc()
		}
		if !ww.upgraded {
			apiLatency.WithLabelValues(res).Observe(time.Since(start).Seconds())
		}
	})
}

// streamWriter bumps the stream gauge once the connection upgrades.
type streamWriter struct {
	*statusWriter
	counted bool
}

func (w *streamWriter) WriteHeader(status int) {
	w.statusWriter.WriteHeader(status)
	w.count()
}

func (w *streamWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := w.statusWriter.Hijack()
	if err == nil {
		w.count()
	}
	return conn, rw, err
}

func (w *streamWriter) count() {
	if w.upgraded && !w.counted {
		w.counted = true
		apiEventStreams.Inc()
	}
}

// resource is the first segment of the matched route under /api/v1, so
// "/api/v1/services/{id}/deploy" counts as "services".
func resource(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.RoutePattern() == "" {
		return "unmatched"
	}
	p := strings.TrimPrefix(rctx.RoutePattern(), "/api/v1")
	p = strings.Trim(p, "/")
	if p == "" {
		return "root"
	}
	seg, _, _ := strings.Cut(p, "/")
	return seg
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
