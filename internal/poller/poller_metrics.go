package poller

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the poller subsystem.
type Metrics struct {
	PollsTotal       *prometheus.CounterVec
	CompletionsTotal prometheus.Counter
	AbandonsTotal    *prometheus.CounterVec
	ActiveTasks      prometheus.Gauge
}

// NewMetrics registers and returns poller metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breachwatch_workorder_polls_total",
			Help: "Total work order status polls by outcome.",
		}, []string{"outcome"}),
		CompletionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "breachwatch_workorder_completions_total",
			Help: "Total work order completions merged into the store.",
		}),
		AbandonsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "breachwatch_workorder_abandons_total",
			Help: "Total polling tasks abandoned without completion, by reason.",
		}, []string{"reason"}),
		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "breachwatch_workorder_active_tasks",
			Help: "Polling tasks currently running.",
		}),
	}

	reg.MustRegister(
		m.PollsTotal,
		m.CompletionsTotal,
		m.AbandonsTotal,
		m.ActiveTasks,
	)

	return m
}
