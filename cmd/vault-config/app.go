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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/panteparak/vault-config/pkg/config"
	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/pkg/reconcile"
	"github.com/panteparak/vault-config/pkg/vault"
	"github.com/panteparak/vault-config/pkg/vault/auth"
	"github.com/panteparak/vault-config/pkg/vault/bootstrap"
	"github.com/panteparak/vault-config/pkg/vault/token"
	"github.com/panteparak/vault-config/shared/controller/driftmode"
	"github.com/panteparak/vault-config/shared/events"
)

// kubeIdentity is the in-cluster material used for kubernetes auth.
type kubeIdentity struct {
	lookup   token.IdentityLookup
	cluster  token.ClusterInfo
	reviewer token.ServiceAccountRef
}

// discoverKubernetes returns nil outside a pod.
func discoverKubernetes(ctx context.Context, s *config.Settings, log logr.Logger) (*kubeIdentity, error) {
	if !auth.IsRunningInKubernetes() {
		log.Info("not running in kubernetes, kubernetes auth login disabled")
		return nil, nil
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load in-cluster config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	override, err := clusterOverride(s)
	if err != nil {
		return nil, err
	}
	cluster, err := bootstrap.ResolveCluster(ctx, bootstrap.NewInClusterDiscovery(log), override)
	if err != nil {
		return nil, err
	}

	namespace := s.KubeNamespace
	if namespace == "" {
		if namespace, err = auth.GetCurrentNamespace(); err != nil {
			return nil, err
		}
	}

	// A configured reviewer gets tokens issued for it. Without one the pod
	// reviews with its own mounted token.
	var provider token.TokenProvider = token.NewCachingProvider(token.NewTokenRequestProvider(clientset, log), log)
	if s.KubeServiceAccount == "" {
		provider = token.NewMountedTokenProvider("", log)
	}
	lookup := token.NewKubernetesIdentityLookup(clientset, provider, *cluster, log)

	name := s.KubeServiceAccount
	if name == "" {
		pod, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to determine pod name: %w", err)
		}
		if name, err = lookup.ServiceAccountForPod(ctx, namespace, pod); err != nil {
			return nil, err
		}
	}

	return &kubeIdentity{
		lookup:   lookup,
		cluster:  *cluster,
		reviewer: token.ServiceAccountRef{Namespace: namespace, Name: name},
	}, nil
}

// clusterOverride returns the configured API server details Vault should
// use instead of the discovered ones, or nil when none are set.
func clusterOverride(s *config.Settings) (*bootstrap.KubernetesClusterConfig, error) {
	if s.KubeHost == "" && s.KubeCACert == "" {
		return nil, nil
	}
	override := &bootstrap.KubernetesClusterConfig{Host: s.KubeHost}
	if s.KubeCACert != "" {
		pem, err := os.ReadFile(s.KubeCACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read kubernetes CA certificate: %w", err)
		}
		override.CACert = string(pem)
	}
	return override, nil
}

func localToken() (string, error) {
	creds, err := auth.ReadMounted(auth.DefaultMountPaths())
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

func newVaultClient(s *config.Settings) (*vault.Client, error) {
	return vault.NewClient(vault.ClientConfig{
		Address: s.VaultAddr,
		TLSConfig: &vault.TLSConfig{
			CACert:     s.VaultCACert,
			SkipVerify: s.VaultSkipTLS,
		},
		Timeout: s.VaultTimeout,
	})
}

// engineOptions assembles the engine options shared by every subcommand.
func engineOptions(s *config.Settings, client *vault.Client, kube *kubeIdentity, bus *events.EventBus, deliveredTo string) reconcile.Options {
	opts := reconcile.Options{
		Shares:          s.KeyShares,
		Threshold:       s.KeyThreshold,
		KubeRole:        s.KubeRole,
		KubeAuthPath:    s.KubeAuthPath,
		Token:           s.VaultToken,
		KeysDeliveredTo: deliveredTo,
		Bus:             bus,
		Readiness:       probe.HTTPGet(client.HTTPClient(), s.PingURL()),
		Probe:           s.ProbeConfig(),
		Target:          s.PingURL(),
		DriftMode:       driftmode.Mode(s.DriftMode),
	}
	if kube != nil {
		opts.LocalToken = localToken
		opts.Identity = kube.lookup
		opts.Reviewer = kube.reviewer
		opts.Cluster = kube.cluster
	}
	return opts
}

// newEngine loads the desired configuration and constructs the engine,
// waiting for Vault to answer its readiness endpoint.
func newEngine(ctx context.Context, s *config.Settings, bus *events.EventBus, deliveredTo string, log logr.Logger) (*reconcile.Engine, *vault.Client, error) {
	desired, err := config.LoadDesired(s.ConfigDir)
	if err != nil {
		return nil, nil, err
	}
	client, err := newVaultClient(s)
	if err != nil {
		return nil, nil, err
	}
	kube, err := discoverKubernetes(ctx, s, log)
	if err != nil {
		return nil, nil, err
	}

	engine, err := reconcile.New(ctx, client, desired, engineOptions(s, client, kube, bus, deliveredTo), log)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return engine, client, nil
}
