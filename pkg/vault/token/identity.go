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
package token

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// IdentityLookup resolves the signing token and CA Vault needs to review
// service account tokens for the given identity.
type IdentityLookup interface {
	Lookup(ctx context.Context, ref ServiceAccountRef) (*Identity, error)
}

// KubernetesIdentityLookup looks up identities through the Kubernetes API.
//
// A legacy token secret annotated with the service account name wins. When
// the cluster no longer creates such secrets, a token is requested through
// the configured TokenProvider and the cluster CA is used instead.
type KubernetesIdentityLookup struct {
	clientset kubernetes.Interface
	provider  TokenProvider
	cluster   ClusterInfo
	log       logr.Logger
}

// NewKubernetesIdentityLookup creates a new KubernetesIdentityLookup.
// provider may be nil, in which case only token secrets are considered.
func NewKubernetesIdentityLookup(
	clientset kubernetes.Interface,
	provider TokenProvider,
	cluster ClusterInfo,
	log logr.Logger,
) *KubernetesIdentityLookup {
	return &KubernetesIdentityLookup{
		clientset: clientset,
		provider:  provider,
		cluster:   cluster,
		log:       log.WithName("identity-lookup"),
	}
}

// Lookup returns the identity material for ref.
func (l *KubernetesIdentityLookup) Lookup(ctx context.Context, ref ServiceAccountRef) (*Identity, error) {
	if ref.Namespace == "" || ref.Name == "" {
		return nil, fmt.Errorf("service account namespace and name are required")
	}

	secret, err := l.findTokenSecret(ctx, ref)
	if err != nil {
		return nil, err
	}
	if secret != nil {
		l.log.V(1).Info("using service account token secret",
			"serviceAccount", ref.String(), "secret", secret.Name)
		ca := string(secret.Data[corev1.ServiceAccountRootCAKey])
		if ca == "" {
			ca = l.cluster.CACert
		}
		return &Identity{
			JWT:    string(secret.Data[corev1.ServiceAccountTokenKey]),
			CACert: ca,
			Host:   l.cluster.Host,
		}, nil
	}

	if l.provider == nil {
		return nil, fmt.Errorf("no token secret found for service account %s", ref)
	}

	info, err := l.provider.GetToken(ctx, GetTokenOptions{
		ServiceAccount: ref,
		Duration:       DefaultReviewerDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire token for %s: %w", ref, err)
	}
	l.log.V(1).Info("using requested service account token",
		"serviceAccount", ref.String(), "expiresAt", info.ExpirationTime)

	return &Identity{
		JWT:    info.Token,
		CACert: l.cluster.CACert,
		Host:   l.cluster.Host,
	}, nil
}

func (l *KubernetesIdentityLookup) findTokenSecret(ctx context.Context, ref ServiceAccountRef) (*corev1.Secret, error) {
	secrets, err := l.clientset.CoreV1().Secrets(ref.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets in %s: %w", ref.Namespace, err)
	}
	for i := range secrets.Items {
		s := &secrets.Items[i]
		if s.Annotations[ServiceAccountNameAnnotation] != ref.Name {
			continue
		}
		if len(s.Data[corev1.ServiceAccountTokenKey]) == 0 {
			continue
		}
		return s, nil
	}
	return nil, nil
}

// ServiceAccountForPod returns the service account a pod runs as.
func (l *KubernetesIdentityLookup) ServiceAccountForPod(ctx context.Context, namespace, pod string) (string, error) {
	p, err := l.clientset.CoreV1().Pods(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get pod %s/%s: %w", namespace, pod, err)
	}
	if p.Spec.ServiceAccountName == "" {
		return "default", nil
	}
	return p.Spec.ServiceAccountName, nil
}

// Ensure KubernetesIdentityLookup implements IdentityLookup.
var _ IdentityLookup = (*KubernetesIdentityLookup)(nil)
