package executor

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the executor's prometheus collectors.
type Metrics struct {
	TransactionsSent   *prometheus.CounterVec
	EstimationFailures *prometheus.CounterVec
	Calls              prometheus.Counter
}

// NewMetrics creates the executor collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "executor",
			Name:      "transactions_sent_total",
			Help:      "Transactions accepted by the node, by authentication mode.",
		}, []string{"auth_mode"}),
		EstimationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "executor",
			Name:      "gas_estimation_failures_total",
			Help:      "Failed gas estimations, by whether a revert reason was recovered.",
		}, []string{"decoded"}),
		Calls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "executor",
			Name:      "calls_total",
			Help:      "Read-only contract calls issued.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.TransactionsSent, m.EstimationFailures, m.Calls)
	}
	return m
}

func (m *Metrics) transactionSent(mode AuthMode) {
	if m == nil {
		return
	}
	m.TransactionsSent.WithLabelValues(mode.String()).Inc()
}

func (m *Metrics) estimationFailed(decoded bool) {
	if m == nil {
		return
	}
	label := "false"
	if decoded {
		label = "true"
	}
	m.EstimationFailures.WithLabelValues(label).Inc()
}

func (m *Metrics) call() {
	if m == nil {
		return
	}
	m.Calls.Inc()
}
