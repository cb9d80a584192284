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

// Package token provides service account token acquisition and the identity
// lookup used to configure Vault's Kubernetes auth method.
//
// # Key Interfaces
//
//   - TokenProvider: Strategy for acquiring service account tokens
//   - IdentityLookup: Resolves a service account to a signing token, CA and API host
//
// # Usage
//
//	provider := NewCachingProvider(NewTokenRequestProvider(k8sClientset, log), log)
//	lookup := NewKubernetesIdentityLookup(k8sClientset, provider, cluster, log)
//	identity, err := lookup.Lookup(ctx, ServiceAccountRef{Namespace: "vault", Name: "vault-auth"})
//	// identity.JWT becomes token_reviewer_jwt, identity.CACert becomes kubernetes_ca_cert
//
// # Token Flow
//
//	┌─────────────────┐  service account  ┌────────────────┐
//	│ IdentityLookup  │ ────────────────> │  Secret token  │
//	└─────────────────┘     secret        └────────────────┘
//	        │ none found
//	        ▼
//	┌─────────────────┐     GetToken      ┌────────────────┐
//	│  TokenProvider  │ ────────────────> │   TokenInfo    │
//	│  (Strategy)     │                   │   (JWT + TTL)  │
//	└─────────────────┘                   └────────────────┘
package token
