package scanner

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the scanner subsystem.
type Metrics struct {
	SweepsTotal     prometheus.Counter
	SweepDuration   prometheus.Histogram
	SubjectsChecked prometheus.Counter
	AlertsCreated   prometheus.Counter
	ProviderErrors  prometheus.Counter
	NotifyFailures  prometheus.Counter
}

// NewMetrics registers and returns scanner metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_sweeps_total",
			Help: "Total completed breach sweeps.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "breachwatch_sweep_duration_seconds",
			Help:    "Duration of breach sweeps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~256s
		}),
		SubjectsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_subjects_checked_total",
			Help: "Total subjects with a definitive provider answer.",
		}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_alerts_created_total",
			Help: "Total breach alerts inserted.",
		}),
		ProviderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_provider_errors_total",
			Help: "Total failed or declined provider lookups.",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_notify_failures_total",
			Help: "Total failed breach notifications.",
		}),
	}

	reg.MustRegister(
		m.SweepsTotal,
		m.SweepDuration,
		m.SubjectsChecked,
		m.AlertsCreated,
		m.ProviderErrors,
		m.NotifyFailures,
	)

	return m
}
