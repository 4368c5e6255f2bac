package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes the registry's counters as Prometheus collectors.
// The collectors read the atomics directly, so there is no sampling loop to
// keep in sync with the registry.
func RegisterMetrics(reg prometheus.Registerer, r *Registry) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tarpitd_clients",
			Help: "Number of currently trapped clients",
		}, func() float64 {
			return float64(r.Current())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tarpitd_clients_total",
			Help: "Total number of clients ever admitted",
		}, func() float64 {
			return float64(r.total.Load())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "tarpitd_bytes_sent_total",
			Help: "Total bytes of banner noise written to peers",
		}, func() float64 {
			return float64(r.bytes.Load())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tarpitd_uptime_seconds",
			Help: "Seconds since the daemon started",
		}, func() float64 {
			return time.Since(r.startedAt).Seconds()
		}),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
