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

package bootstrap

import (
	"time"

	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/pkg/steps"
)

// DefaultUpDelay is the initial delay of the readiness probe run by the up
// step. Vault answers quickly once unsealed so the full startup delay is
// not needed.
const DefaultUpDelay = 1 * time.Second

// Config contains the workflow configuration.
type Config struct {
	// RetainRootToken skips voiding the bootstrap credential in the clean step.
	RetainRootToken bool

	// Readiness is the call the up step probes. Nil skips the probe.
	Readiness probe.Call

	// Probe configures the up step probe. A zero InitialDelay uses DefaultUpDelay.
	Probe probe.Config

	// ProbeOptions are passed to every probe the workflow creates.
	ProbeOptions []probe.Option

	// Target names the probed endpoint in logs and errors.
	Target string
}

// WithDefaults returns a copy of Config with default values applied.
func (c *Config) WithDefaults() *Config {
	cfg := *c
	cfg.Probe = cfg.Probe.WithDefaults()
	if cfg.Probe.InitialDelay == 0 {
		cfg.Probe.InitialDelay = DefaultUpDelay
	}
	return &cfg
}

// Result describes a completed workflow run.
type Result struct {
	// RunID identifies the run in logs and events.
	RunID string

	// Steps are the final step states in declaration order.
	Steps []steps.Step

	// Succeeded is true when every step finished.
	Succeeded bool

	// FailedStep is the step that stopped the run.
	FailedStep steps.Name

	// Reason is the trace recorded on the failed step.
	Reason string

	// Duration is the wall time of the run.
	Duration time.Duration
}

// KubernetesClusterConfig overrides auto-discovered cluster details.
type KubernetesClusterConfig struct {
	// Host is the Kubernetes API server URL.
	Host string

	// CACert is the CA certificate for the Kubernetes API.
	CACert string
}
