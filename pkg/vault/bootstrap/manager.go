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
	"context"

	"github.com/panteparak/vault-config/pkg/vault/token"
)

// Manager runs the bootstrap workflow.
//
// # Thread Safety
//
// Only one run is active at a time; a concurrent Run blocks until the
// previous one completes. Latest may be called at any time.
type Manager interface {
	// Run executes one workflow run from a fresh step tracker. The returned
	// error is the rejection that stopped the run, if any.
	Run(ctx context.Context) (*Result, error)

	// Latest returns the most recently published step snapshot, or nil
	// before the first run.
	Latest() []byte
}

// Engine is the reconciliation engine surface the workflow drives.
// *reconcile.Engine implements it.
type Engine interface {
	Initialize(ctx context.Context) (bool, error)
	Authenticate(ctx context.Context) (bool, error)
	IsRunning(ctx context.Context) (bool, error)
	EnableAuthBackends(ctx context.Context) (bool, error)
	EnableSecretEngines(ctx context.Context) (bool, error)
	ApplyPolicies(ctx context.Context) (bool, error)
	ApplyAuthRoles(ctx context.Context) (bool, error)
	VoidCredential()
}

// K8sClusterDiscovery provides Kubernetes cluster information.
// This allows for auto-discovering cluster details from within the cluster.
type K8sClusterDiscovery interface {
	// GetClusterConfig returns the Kubernetes API server and its CA.
	GetClusterConfig(ctx context.Context) (*token.ClusterInfo, error)
}
