package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the registration service.
type Metrics struct {
	Registrations         prometheus.Counter
	RegistrationsRejected *prometheus.CounterVec
	Validations           *prometheus.CounterVec
	ValidationsRejected   *prometheus.CounterVec
}

// New creates and registers all counters on the default registry.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "festpass_registrations_total",
			Help: "Total number of students registered.",
		}),
		RegistrationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "festpass_registrations_rejected_total",
			Help: "Registrations rejected, by reason.",
		}, []string{"reason"}),
		Validations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "festpass_validations_total",
			Help: "Successful validations, by method.",
		}, []string{"method"}),
		ValidationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "festpass_validations_rejected_total",
			Help: "Validation attempts that did not flip the flag, by reason.",
		}, []string{"reason"}),
	}
}
