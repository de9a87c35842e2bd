package faucet

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa os coletores HTTP do faucet.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	edgeRejects prometheus.Counter
}

// NewMetrics registra os coletores em reg. queueDepth alimenta o gauge da fila
// do serializer (pode ser nil).
func NewMetrics(reg prometheus.Registerer, queueDepth func() int64) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
			[]string{"method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Request duration",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		edgeRejects: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "faucet_edge_throttled_total", Help: "Requests rejected by the edge token bucket"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.edgeRejects)
	if queueDepth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: "faucet_disbursement_queue_depth", Help: "Drips waiting for or holding the serializer"},
			func() float64 { return float64(queueDepth()) },
		))
	}
	return m
}

// Instrument registra método, rota (padrão do chi), status e duração.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		m.requests.WithLabelValues(r.Method, path, statusLabel(ww.status)).Inc()
		m.duration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) EdgeRejected(*http.Request, string) { m.edgeRejects.Inc() }

// responseWriter captura o status para as labels.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
