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
	"time"

	"github.com/go-logr/logr"
	authenticationv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// TokenRequestProvider issues tokens through the TokenRequest API. The
// identity lookup falls back to it when a reviewer service account has no
// legacy token secret, which is the default since Kubernetes 1.24.
//
// The caller needs create on serviceaccounts/token in the reviewer's
// namespace.
type TokenRequestProvider struct {
	clientset kubernetes.Interface
	log       logr.Logger
}

// NewTokenRequestProvider creates a new TokenRequestProvider.
func NewTokenRequestProvider(clientset kubernetes.Interface, log logr.Logger) *TokenRequestProvider {
	return &TokenRequestProvider{
		clientset: clientset,
		log:       log.WithName("tokenrequest-provider"),
	}
}

// GetToken requests a token for opts.ServiceAccount. A zero Duration uses
// DefaultTokenDuration and empty Audiences use DefaultAudience.
func (p *TokenRequestProvider) GetToken(ctx context.Context, opts GetTokenOptions) (*TokenInfo, error) {
	if opts.ServiceAccount.Namespace == "" || opts.ServiceAccount.Name == "" {
		return nil, fmt.Errorf("service account namespace and name are required")
	}

	duration := opts.Duration
	if duration == 0 {
		duration = DefaultTokenDuration
	}

	audiences := opts.Audiences
	if len(audiences) == 0 {
		audiences = []string{DefaultAudience}
	}

	p.log.V(1).Info("requesting reviewer token",
		"namespace", opts.ServiceAccount.Namespace,
		"serviceAccount", opts.ServiceAccount.Name,
		"duration", duration,
		"audiences", audiences,
	)

	expirationSeconds := int64(duration.Seconds())

	tokenRequest := &authenticationv1.TokenRequest{
		Spec: authenticationv1.TokenRequestSpec{
			Audiences:         audiences,
			ExpirationSeconds: &expirationSeconds,
		},
	}

	result, err := p.clientset.CoreV1().ServiceAccounts(opts.ServiceAccount.Namespace).
		CreateToken(ctx, opts.ServiceAccount.Name, tokenRequest, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to request token for %s: %w", opts.ServiceAccount, err)
	}

	// the API server does not stamp token requests
	issued := result.CreationTimestamp.Time
	if issued.IsZero() {
		issued = time.Now()
	}
	info := &TokenInfo{
		Token:          result.Status.Token,
		ExpirationTime: result.Status.ExpirationTimestamp.Time,
		IssuedAt:       issued,
		Audiences:      audiences,
	}

	p.log.V(1).Info("acquired reviewer token", "expiresAt", info.ExpirationTime)

	return info, nil
}

var _ TokenProvider = (*TokenRequestProvider)(nil)
