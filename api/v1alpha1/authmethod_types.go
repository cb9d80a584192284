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
package v1alpha1

import "github.com/panteparak/vault-config/shared/controller/driftmode"

// AuthType is a supported auth method type.
type AuthType string

const (
	AuthTypeGithub     AuthType = "github"
	AuthTypeKubernetes AuthType = "kubernetes"
)

// AuthMethod is an auth backend entry of auth/*.hcl:
//
//	auth "github" {
//	  enabled = true
//	  type    = "github"
//	  org     = "acme"
//	}
type AuthMethod struct {
	// Name is the block label
	Name string `hcl:",key"`

	// Enabled controls whether the backend should exist
	Enabled bool `hcl:"enabled"`

	// Type of the auth method; defaults to the entry name
	Type AuthType `hcl:"type"`

	// Path is the mount path; defaults to the entry name
	Path string `hcl:"path"`

	// Description shown in Vault
	Description string `hcl:"description"`

	// Org is the GitHub organization (github only)
	Org string `hcl:"org"`

	// BaseURL overrides the GitHub API endpoint (github only)
	BaseURL string `hcl:"base_url"`

	// KubernetesHost overrides the discovered API server URL (kubernetes only)
	KubernetesHost string `hcl:"kubernetes_host"`

	// TokenReviewer is the service account whose token Vault uses to call
	// the TokenReview API (kubernetes only). Defaults to the process identity.
	TokenReviewer ServiceAccountRef `hcl:"token_reviewer"`

	// DriftMode overrides how a changed live configuration is handled
	DriftMode driftmode.Mode `hcl:"drift_mode"`
}

// MountPath returns the normalized mount path.
func (a *AuthMethod) MountPath() string {
	if a.Path != "" {
		return NormalizePath(a.Path)
	}
	return NormalizePath(a.Name)
}

// MethodType returns the auth type, falling back to the entry name.
func (a *AuthMethod) MethodType() AuthType {
	if a.Type != "" {
		return a.Type
	}
	return AuthType(a.Name)
}

// Validate checks static invariants of the entry.
func (a *AuthMethod) Validate() error {
	if err := requireField(KindAuthMethod, a.Name, "name", a.Name); err != nil {
		return err
	}
	mode, err := normalizeDriftMode(KindAuthMethod, a.Name, a.DriftMode)
	if err != nil {
		return err
	}
	a.DriftMode = mode
	if !a.Enabled {
		return nil
	}
	switch a.MethodType() {
	case AuthTypeGithub:
		return requireField(KindAuthMethod, a.Name, "org", a.Org)
	case AuthTypeKubernetes:
		return nil
	default:
		return invalidField(KindAuthMethod, a.Name, "type", string(a.MethodType()), "unsupported auth type")
	}
}
