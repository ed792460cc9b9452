package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	StockConflicts  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mercado",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mercado",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mercado",
		Name:      "orders_created_total",
		Help:      "Orders successfully created from carts.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mercado",
		Name:      "orders_cancelled_total",
		Help:      "Orders cancelled with stock restored.",
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mercado",
		Name:      "stock_conflicts_total",
		Help:      "Checkouts rejected because stock ran out at commit time.",
	})

	reg.MustRegister(requests, latency, created, cancelled, conflicts)

	return &Metrics{
		registry:        reg,
		httpRequests:    requests,
		httpLatency:     latency,
		OrdersCreated:   created,
		OrdersCancelled: cancelled,
		StockConflicts:  conflicts,
	}
}

func (m *Metrics) ObserveHTTP(handler string, status int, dur time.Duration) {
	m.httpRequests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(handler).Observe(float64(dur.Milliseconds()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
