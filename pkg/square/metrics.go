// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package square

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	autherrors "github.com/stacklok/squareauth/pkg/errors"
)

const (
	operationTokenExchange = "token_exchange"
	operationProfileFetch  = "profile_fetch"

	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Metrics records outcomes and latencies of the provider round-trips.
// A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg, or on the
// default registerer when reg is nil. Collectors that are already registered
// are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "square",
		Subsystem: "oauth",
		Name:      "requests_total",
		Help:      "Provider round-trips by operation and outcome",
	}, []string{"operation", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "square",
		Subsystem: "oauth",
		Name:      "request_duration_seconds",
		Help:      "Latency of provider round-trips",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	if err := reg.Register(requests); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("collector %s is registered with a different type", "square_oauth_requests_total")
		}
		requests = existing
	}
	if err := reg.Register(duration); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("collector %s is registered with a different type", "square_oauth_request_duration_seconds")
		}
		duration = existing
	}

	return &Metrics{requests: requests, duration: duration}, nil
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// outcome labels an error by its kind.
func outcome(err error) string {
	if err == nil {
		return outcomeSuccess
	}
	var e *autherrors.Error
	if errors.As(err, &e) {
		return e.Type
	}
	return outcomeError
}
