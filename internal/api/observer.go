package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer receives one record per client call.
type Observer interface {
	ObserveRequest(op string, took time.Duration, err error)
}

// PrometheusObserver exports request latency and failures per operation.
type PrometheusObserver struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewPrometheusObserver registers the client metrics on reg (default
// registerer when nil). Registering twice reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "taskpanel"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "Latency of backend API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "request_errors_total",
		Help:      "Backend API calls that failed, by operation and kind.",
	}, []string{"operation", "kind"})

	var err error
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if failures, err = register(reg, failures); err != nil {
		return nil, err
	}
	return &PrometheusObserver{duration: duration, failures: failures}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register backend metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) ObserveRequest(op string, took time.Duration, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(op).Observe(took.Seconds())
	if err == nil {
		return
	}
	kind := "transport"
	var ae *APIError
	if errors.As(err, &ae) {
		kind = "api"
	}
	o.failures.WithLabelValues(op, kind).Inc()
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, time.Duration, error) {}
