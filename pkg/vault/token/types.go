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

import "time"

// Default values for token acquisition.
const (
	// DefaultTokenDuration is the default service account token lifetime.
	DefaultTokenDuration = 1 * time.Hour

	// DefaultReviewerDuration is how long a requested token_reviewer_jwt is valid.
	DefaultReviewerDuration = 24 * time.Hour

	// DefaultRenewalThreshold is the fraction of a token's lifetime after
	// which it is replaced.
	DefaultRenewalThreshold = 0.75

	// DefaultAudience is the standard audience for Vault authentication.
	DefaultAudience = "vault"

	// ServiceAccountNameAnnotation links a token secret to its service account.
	ServiceAccountNameAnnotation = "kubernetes.io/service-account.name"
)

// TokenInfo is an acquired token and its claims.
type TokenInfo struct {
	Token          string
	ExpirationTime time.Time
	IssuedAt       time.Time
	Audiences      []string
}

// NeedsRenewal reports whether DefaultRenewalThreshold of the token's
// lifetime has elapsed at now. Tokens without both timestamps always need
// renewal.
func (t *TokenInfo) NeedsRenewal(now time.Time) bool {
	if t.IssuedAt.IsZero() || t.ExpirationTime.IsZero() || !t.ExpirationTime.After(t.IssuedAt) {
		return true
	}
	lifetime := t.ExpirationTime.Sub(t.IssuedAt)
	renewAt := t.IssuedAt.Add(time.Duration(float64(lifetime) * DefaultRenewalThreshold))
	return !now.Before(renewAt)
}

// GetTokenOptions configures token acquisition. Duration and Audiences only
// apply to issued tokens; the mounted token has its own.
type GetTokenOptions struct {
	ServiceAccount ServiceAccountRef
	Duration       time.Duration
	Audiences      []string
}

// ServiceAccountRef identifies a Kubernetes service account.
type ServiceAccountRef struct {
	// Namespace is the service account's namespace.
	Namespace string

	// Name is the service account's name.
	Name string
}

// String returns namespace/name.
func (r ServiceAccountRef) String() string {
	return r.Namespace + "/" + r.Name
}

// ClusterInfo describes the Kubernetes API server Vault should call back to.
type ClusterInfo struct {
	// Host is the API server URL.
	Host string

	// CACert is the PEM encoded cluster CA.
	CACert string
}

// Identity is the material needed to configure Vault's Kubernetes auth method.
type Identity struct {
	// JWT is the signing token used as token_reviewer_jwt.
	JWT string

	// CACert is the PEM encoded CA used as kubernetes_ca_cert.
	CACert string

	// Host is the API server URL used as kubernetes_host.
	Host string
}
