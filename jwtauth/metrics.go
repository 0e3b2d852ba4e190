package jwtauth

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics tracks validation outcomes per transport ("http", "gin", "grpc")
type metrics struct {
	validations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "jwtauth",
				Name:      "validations_total",
				Help:      "Total number of token validations by transport, result and reason",
			},
			[]string{"transport", "result", "reason"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "jwtauth",
				Name:      "validation_duration_seconds",
				Help:      "Duration of token extraction and validation in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"transport"},
		),
	}

	var err error
	if m.validations, err = registerOrReuse(reg, m.validations); err != nil {
		return nil, err
	}
	if m.duration, err = registerOrReuse(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several configs share one registry
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(transport string, err error, latency time.Duration) {
	if m == nil {
		return
	}
	result, reason := "success", ""
	if err != nil {
		result, reason = "failure", string(CodeOf(err))
	}
	m.validations.WithLabelValues(transport, result, reason).Inc()
	m.duration.WithLabelValues(transport).Observe(latency.Seconds())
}
