package faucet

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faucet-gateway/middleware/ratelimit"
)

type RouterOptions struct {
	Metrics     *Metrics
	Gatherer    prometheus.Gatherer
	Edge        *ratelimit.BucketStore
	Concurrency ratelimit.ConcurrencyOptions
}

// NewRouter monta as rotas. /healthz e /metrics ficam fora dos limites de borda.
func NewRouter(api *API, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Instrument)
	}

	r.Get("/healthz", HandleHealthz)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		throttle := ratelimit.ThrottleOptions{Store: opts.Edge, KeyFn: api.KeyFn}
		if opts.Metrics != nil {
			throttle.OnReject = opts.Metrics.EdgeRejected
		}
		r.Use(ratelimit.Throttle(throttle))
		r.Use(ratelimit.ConcurrencyMiddleware(opts.Concurrency))

		r.Post("/api/drip", api.HandleDrip)
		r.Get("/api/status", api.HandleStatus)
	})
	return r
}
