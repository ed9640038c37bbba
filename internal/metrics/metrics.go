package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcomes.
const (
	OutcomeExisting  = "existing"
	OutcomeStaged    = "staged"
	OutcomeConnected = "connected"
	OutcomeFailed    = "failed"
)

// Setup outcomes.
const (
	SetupCommitted = "committed"
	SetupInvalid   = "invalid"
	SetupFailed    = "failed"
)

type Metrics struct {
	logins *prometheus.CounterVec
	setups *prometheus.CounterVec
}

// New registers the social login collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialregistration",
			Name:      "logins_total",
			Help:      "Provider login attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		setups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialregistration",
			Name:      "setups_total",
			Help:      "Setup form submissions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.logins, m.setups)
	return m
}

func (m *Metrics) Login(provider, outcome string) {
	m.logins.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) Setup(outcome string) {
	m.setups.WithLabelValues(outcome).Inc()
}
