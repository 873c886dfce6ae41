// Package metrics exposes the exchange's sole Prometheus touchpoint: ring
// buffer utilization, the one number worth watching from outside since a
// ring that's consistently near full means a consumer is falling behind the
// producer.
//
// Grounded on the market-maker-bot's monitoring/alerts.go: a package-level
// GaugeVec registered once via prometheus.MustRegister, updated through a
// small setter function rather than touched directly by callers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ringUtilization = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "exchange_ring_buffer_utilization",
		Help: "Fraction of a ring buffer's capacity currently claimed but not yet consumed, by ring name.",
	},
	[]string{"ring"},
)

// SetRingUtilization records the current occupancy of a named ring buffer
// as a fraction in [0, 1].
func SetRingUtilization(ring string, fraction float64) {
	ringUtilization.WithLabelValues(ring).Set(fraction)
}

// Handler returns the HTTP handler Prometheus should scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}
