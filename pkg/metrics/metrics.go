/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics provides Prometheus metrics for vault-config.
//
// Collectors are package-level but nothing is registered until Register is
// called, so importing the package has no side effects on any registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vault_config"

// Result labels for metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Reconcile action labels.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionNoop   = "noop"
	ActionDrift  = "drift"
)

var (
	// ProbeChecksTotal counts individual readiness calls made by health probes.
	ProbeChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "checks_total",
			Help:      "Total number of health probe calls",
		},
		[]string{"result"},
	)

	// ProbeLatchedGauge is 1 while the most recent probe is latched closed.
	ProbeLatchedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "probe",
			Name:      "latched",
			Help:      "Whether the most recent health probe latched closed (1=closed, 0=open)",
		},
	)

	// StepTransitionsTotal counts workflow step state transitions.
	StepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "step",
			Name:      "transitions_total",
			Help:      "Total number of workflow step transitions by step and target state",
		},
		[]string{"step", "state"},
	)

	// ReconcileTotal counts reconcile actions per entry kind.
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Total number of reconcile actions by entry kind, action and result",
		},
		[]string{"kind", "action", "result"},
	)

	// WorkflowRunsTotal counts bootstrap workflow runs.
	WorkflowRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Total number of bootstrap workflow runs",
		},
		[]string{"result"},
	)

	// BroadcastClientsGauge tracks connected progress observers.
	BroadcastClientsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_clients",
			Help:      "Number of connected progress broadcast observers",
		},
	)
)

// Collectors returns every collector owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ProbeChecksTotal,
		ProbeLatchedGauge,
		StepTransitionsTotal,
		ReconcileTotal,
		WorkflowRunsTotal,
		BroadcastClientsGauge,
	}
}

// Register registers all collectors with reg. Collectors that are already
// registered with reg are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func result(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// IncrementProbeCheck increments the probe call counter.
func IncrementProbeCheck(success bool) {
	ProbeChecksTotal.WithLabelValues(result(success)).Inc()
}

// SetProbeLatched sets the latch gauge.
func SetProbeLatched(closed bool) {
	val := 0.0
	if closed {
		val = 1.0
	}
	ProbeLatchedGauge.Set(val)
}

// IncrementStepTransition increments the step transition counter.
func IncrementStepTransition(step, state string) {
	StepTransitionsTotal.WithLabelValues(step, state).Inc()
}

// IncrementReconcile increments the reconcile counter for kind and action.
func IncrementReconcile(kind, action string, success bool) {
	ReconcileTotal.WithLabelValues(kind, action, result(success)).Inc()
}

// IncrementWorkflowRun increments the workflow run counter.
func IncrementWorkflowRun(success bool) {
	WorkflowRunsTotal.WithLabelValues(result(success)).Inc()
}

// SetBroadcastClients sets the number of connected observers.
func SetBroadcastClients(n int) {
	BroadcastClientsGauge.Set(float64(n))
}
