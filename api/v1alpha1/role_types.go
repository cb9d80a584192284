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

import (
	"time"

	"github.com/panteparak/vault-config/shared/controller/driftmode"
)

// RoleType is a supported role kind.
type RoleType string

const (
	RoleTypeGithub     RoleType = "github"
	RoleTypeKubernetes RoleType = "kubernetes"
)

// Role is a role entry of role/*.hcl:
//
//	role "developers" {
//	  enabled   = true
//	  type      = "github"
//	  auth_path = "github"
//	  team_name = "dev"
//	  policies  = ["reader"]
//	}
//
//	role "app" {
//	  enabled                         = true
//	  type                            = "kubernetes"
//	  bound_service_account_name      = "app"
//	  bound_service_account_namespace = "default"
//	  policies                        = ["reader"]
//	  ttl                             = "1h"
//	}
type Role struct {
	// Name is the block label
	Name string `hcl:",key"`

	// Enabled controls whether the binding should exist
	Enabled bool `hcl:"enabled"`

	// Type selects the role kind
	Type RoleType `hcl:"type"`

	// AuthPath is the auth mount the role belongs to; defaults to the type
	AuthPath string `hcl:"auth_path"`

	// Policies attached to the role
	Policies []string `hcl:"policies"`

	// TeamName is the GitHub team mapped to the policies (github only)
	TeamName string `hcl:"team_name"`

	// BoundServiceAccountName is a single bound name (kubernetes only)
	BoundServiceAccountName string `hcl:"bound_service_account_name"`

	// BoundServiceAccountNames are additional bound names (kubernetes only)
	BoundServiceAccountNames []string `hcl:"bound_service_account_names"`

	// BoundServiceAccountNamespace is a single bound namespace (kubernetes only)
	BoundServiceAccountNamespace string `hcl:"bound_service_account_namespace"`

	// BoundServiceAccountNamespaces are additional bound namespaces (kubernetes only)
	BoundServiceAccountNamespaces []string `hcl:"bound_service_account_namespaces"`

	// TTL of issued tokens (kubernetes only)
	TTL string `hcl:"ttl"`

	// MaxTTL of issued tokens (kubernetes only)
	MaxTTL string `hcl:"max_ttl"`

	// WrapTTL is the response wrapping TTL clients should request
	WrapTTL string `hcl:"wrap_ttl"`

	// DriftMode overrides how a changed live binding is handled
	DriftMode driftmode.Mode `hcl:"drift_mode"`
}

// MountPath returns the normalized auth mount path.
func (r *Role) MountPath() string {
	if r.AuthPath != "" {
		return NormalizePath(r.AuthPath)
	}
	return NormalizePath(string(r.Type))
}

// ServiceAccountNames merges the singular and plural bound names.
func (r *Role) ServiceAccountNames() []string {
	return mergeUnique(r.BoundServiceAccountName, r.BoundServiceAccountNames)
}

// ServiceAccountNamespaces merges the singular and plural bound namespaces.
func (r *Role) ServiceAccountNamespaces() []string {
	return mergeUnique(r.BoundServiceAccountNamespace, r.BoundServiceAccountNamespaces)
}

func mergeUnique(single string, many []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, v := range append([]string{single}, many...) {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Validate checks static invariants of the entry.
func (r *Role) Validate() error {
	if err := requireField(KindRole, r.Name, "name", r.Name); err != nil {
		return err
	}
	mode, err := normalizeDriftMode(KindRole, r.Name, r.DriftMode)
	if err != nil {
		return err
	}
	r.DriftMode = mode
	if !r.Enabled {
		return nil
	}
	for field, value := range map[string]string{"ttl": r.TTL, "max_ttl": r.MaxTTL, "wrap_ttl": r.WrapTTL} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return invalidField(KindRole, r.Name, field, value, "must be a duration")
		}
	}
	switch r.Type {
	case RoleTypeGithub:
		return requireField(KindRole, r.Name, "team_name", r.TeamName)
	case RoleTypeKubernetes:
		if len(r.ServiceAccountNames()) == 0 {
			return invalidField(KindRole, r.Name, "bound_service_account_names", "", "at least one name is required")
		}
		if len(r.ServiceAccountNamespaces()) == 0 {
			return invalidField(KindRole, r.Name, "bound_service_account_namespaces", "", "at least one namespace is required")
		}
		return nil
	default:
		// Unknown types are allowed so that their live bindings can be removed.
		return nil
	}
}
