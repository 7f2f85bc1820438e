// Copyright 2024 The kcgi-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes the control and manager loops' Prometheus
// instrumentation: request counts, worker pool occupancy, and parse
// failures. Nothing in the worker process imports this package --
// a sandboxed process with an open metrics registry is an open
// metrics registry a compromised worker could scrape for free.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors kcgi-go registers once per manager
// process.
type Registry struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	WorkersActive    prometheus.Gauge
	WorkersAvailable prometheus.Gauge
	ParseFailures    *prometheus.CounterVec
	RestartsTotal    prometheus.Counter
}

// NewRegistry builds and registers a fresh Registry against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcgi",
			Name:      "requests_total",
			Help:      "Requests completed, labeled by role and outcome.",
		}, []string{"role", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kcgi",
			Name:      "request_duration_seconds",
			Help:      "End-to-end request handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"role"}),
		WorkersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kcgi",
			Name:      "workers_active",
			Help:      "Worker processes currently handling a request.",
		}),
		WorkersAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kcgi",
			Name:      "workers_available",
			Help:      "Idle worker processes ready to accept work.",
		}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kcgi",
			Name:      "parse_failures_total",
			Help:      "Malformed-input parse failures, labeled by stage.",
		}, []string{"stage"}),
		RestartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kcgi",
			Name:      "worker_restarts_total",
			Help:      "Worker processes restarted after an unexpected exit.",
		}),
	}
	reg.MustRegister(
		r.RequestsTotal, r.RequestDuration, r.WorkersActive,
		r.WorkersAvailable, r.ParseFailures, r.RestartsTotal,
	)
	return r
}
