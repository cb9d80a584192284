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
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/client-go/rest"

	"github.com/panteparak/vault-config/pkg/vault/auth"
	"github.com/panteparak/vault-config/pkg/vault/token"
)

// inClusterDiscovery implements K8sClusterDiscovery for in-cluster use.
type inClusterDiscovery struct {
	paths    auth.MountPaths
	inConfig func() (*rest.Config, error)
	log      logr.Logger
}

// NewInClusterDiscovery creates a new K8sClusterDiscovery for in-cluster use.
func NewInClusterDiscovery(log logr.Logger) K8sClusterDiscovery {
	return &inClusterDiscovery{
		paths:    auth.DefaultMountPaths(),
		inConfig: rest.InClusterConfig,
		log:      log.WithName("k8s-discovery"),
	}
}

// GetClusterConfig returns the Kubernetes cluster configuration.
func (d *inClusterDiscovery) GetClusterConfig(ctx context.Context) (*token.ClusterInfo, error) {
	d.log.Info("discovering kubernetes cluster configuration")

	config, err := d.inConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %w", err)
	}

	caCert, err := auth.GetKubernetesCACertFromPath(d.paths.CACert)
	if err != nil {
		return nil, err
	}

	result := &token.ClusterInfo{
		Host:   config.Host,
		CACert: caCert,
	}

	d.log.Info("discovered kubernetes cluster config",
		"host", result.Host,
		"caCertLength", len(result.CACert),
	)

	return result, nil
}

// ResolveCluster returns the cluster Vault should call back to. A complete
// override skips discovery; a partial one is merged over the discovered
// values.
func ResolveCluster(ctx context.Context, discovery K8sClusterDiscovery, override *KubernetesClusterConfig) (*token.ClusterInfo, error) {
	if override != nil && override.Host != "" && override.CACert != "" {
		return &token.ClusterInfo{Host: override.Host, CACert: override.CACert}, nil
	}
	if discovery == nil {
		return nil, fmt.Errorf("no cluster discovery available and no complete override given")
	}

	info, err := discovery.GetClusterConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to auto-discover cluster config: %w", err)
	}
	if override != nil {
		if override.Host != "" {
			info.Host = override.Host
		}
		if override.CACert != "" {
			info.CACert = override.CACert
		}
	}
	return info, nil
}

// Ensure inClusterDiscovery implements K8sClusterDiscovery.
var _ K8sClusterDiscovery = (*inClusterDiscovery)(nil)
