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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	if err := Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// Registering twice is tolerated.
	if err := Register(reg); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}

	IncrementWorkflowRun(true)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "vault_config_workflow_runs_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected vault_config_workflow_runs_total to be gathered")
	}
}

func TestIncrementProbeCheck(t *testing.T) {
	tests := []struct {
		name    string
		success bool
		label   string
	}{
		{
			name:    "successful call increments success counter",
			success: true,
			label:   "success",
		},
		{
			name:    "failed call increments failure counter",
			success: false,
			label:   "failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := ProbeChecksTotal.WithLabelValues(tt.label)
			before := testutil.ToFloat64(counter)

			IncrementProbeCheck(tt.success)

			after := testutil.ToFloat64(counter)
			if after != before+1 {
				t.Errorf("IncrementProbeCheck() counter = %v, want %v", after, before+1)
			}
		})
	}
}

func TestSetProbeLatched(t *testing.T) {
	SetProbeLatched(true)
	if v := testutil.ToFloat64(ProbeLatchedGauge); v != 1 {
		t.Errorf("latched gauge = %v, want 1", v)
	}
	SetProbeLatched(false)
	if v := testutil.ToFloat64(ProbeLatchedGauge); v != 0 {
		t.Errorf("latched gauge = %v, want 0", v)
	}
}

func TestIncrementStepTransition(t *testing.T) {
	counter := StepTransitionsTotal.WithLabelValues("policy", "failed")
	before := testutil.ToFloat64(counter)

	IncrementStepTransition("policy", "failed")

	if after := testutil.ToFloat64(counter); after != before+1 {
		t.Errorf("step transition counter = %v, want %v", after, before+1)
	}
}

func TestIncrementReconcile(t *testing.T) {
	tests := []struct {
		kind    string
		action  string
		success bool
		label   string
	}{
		{"policy", ActionCreate, true, ResultSuccess},
		{"policy", ActionDelete, false, ResultFailure},
		{"role", ActionUpdate, true, ResultSuccess},
		{"secret", ActionNoop, true, ResultSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.action, func(t *testing.T) {
			counter := ReconcileTotal.WithLabelValues(tt.kind, tt.action, tt.label)
			before := testutil.ToFloat64(counter)

			IncrementReconcile(tt.kind, tt.action, tt.success)

			if after := testutil.ToFloat64(counter); after != before+1 {
				t.Errorf("reconcile counter = %v, want %v", after, before+1)
			}
		})
	}
}

func TestSetBroadcastClients(t *testing.T) {
	SetBroadcastClients(3)
	if v := testutil.ToFloat64(BroadcastClientsGauge); v != 3 {
		t.Errorf("broadcast clients = %v, want 3", v)
	}
}
