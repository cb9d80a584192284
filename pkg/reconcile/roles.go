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

package reconcile

import (
	"context"
	"strings"

	"github.com/panteparak/vault-config/api/v1alpha1"
	"github.com/panteparak/vault-config/shared/controller/binding"
	"github.com/panteparak/vault-config/shared/controller/drift"
)

// Logical is the generic read/write surface role kinds use.
type Logical interface {
	Read(ctx context.Context, path string) (map[string]interface{}, error)
	Write(ctx context.Context, path string, data map[string]interface{}) error
	Delete(ctx context.Context, path string) error
}

// RoleKind binds role entries onto one auth backend type. The variant is
// chosen by the live type of the role's auth mount.
type RoleKind interface {
	// Type is the auth backend type this kind serves
	Type() v1alpha1.RoleType

	// Path is where the binding lives in Vault
	Path(r *v1alpha1.Role) string

	// Data is the payload written for the binding
	Data(r *v1alpha1.Role) map[string]interface{}

	// Drift compares the desired binding against what Vault returned
	Drift(r *v1alpha1.Role, current map[string]interface{}) drift.Result

	// Configure writes the binding
	Configure(ctx context.Context, l Logical, r *v1alpha1.Role) error

	// Remove deletes the binding when present and reports whether it did
	Remove(ctx context.Context, l Logical, r *v1alpha1.Role) (bool, error)
}

// RoleKinds returns the supported role kinds keyed by type.
func RoleKinds() map[v1alpha1.RoleType]RoleKind {
	return map[v1alpha1.RoleType]RoleKind{
		v1alpha1.RoleTypeGithub:     GithubRole{},
		v1alpha1.RoleTypeKubernetes: KubernetesRole{},
	}
}

// GithubRole maps a GitHub team to policies.
type GithubRole struct{}

func (GithubRole) Type() v1alpha1.RoleType { return v1alpha1.RoleTypeGithub }

func (GithubRole) Path(r *v1alpha1.Role) string {
	return binding.TeamMapPath(r.MountPath(), r.TeamName)
}

func (GithubRole) Data(r *v1alpha1.Role) map[string]interface{} {
	return map[string]interface{}{"value": strings.Join(r.Policies, ",")}
}

func (GithubRole) Drift(r *v1alpha1.Role, current map[string]interface{}) drift.Result {
	return drift.NewComparator().List("value", r.Policies, current["value"]).Result()
}

func (g GithubRole) Configure(ctx context.Context, l Logical, r *v1alpha1.Role) error {
	return l.Write(ctx, g.Path(r), g.Data(r))
}

func (g GithubRole) Remove(ctx context.Context, l Logical, r *v1alpha1.Role) (bool, error) {
	if r.TeamName == "" {
		return false, nil
	}
	return removeIfPresent(ctx, l, g.Path(r))
}

// KubernetesRole binds service accounts to policies.
type KubernetesRole struct{}

func (KubernetesRole) Type() v1alpha1.RoleType { return v1alpha1.RoleTypeKubernetes }

func (KubernetesRole) Path(r *v1alpha1.Role) string {
	return binding.RolePath(r.MountPath(), r.Name)
}

func (KubernetesRole) Data(r *v1alpha1.Role) map[string]interface{} {
	data := map[string]interface{}{
		"bound_service_account_names":      r.ServiceAccountNames(),
		"bound_service_account_namespaces": r.ServiceAccountNamespaces(),
		"token_policies":                   r.Policies,
	}
	if r.TTL != "" {
		data["token_ttl"] = r.TTL
	}
	if r.MaxTTL != "" {
		data["token_max_ttl"] = r.MaxTTL
	}
	return data
}

func (KubernetesRole) Drift(r *v1alpha1.Role, current map[string]interface{}) drift.Result {
	return drift.NewComparator().
		List("bound_service_account_names", r.ServiceAccountNames(), current["bound_service_account_names"]).
		List("bound_service_account_namespaces", r.ServiceAccountNamespaces(), current["bound_service_account_namespaces"]).
		List("token_policies", r.Policies, current["token_policies"]).
		Duration("token_ttl", r.TTL, current["token_ttl"]).
		Duration("token_max_ttl", r.MaxTTL, current["token_max_ttl"]).
		Result()
}

func (k KubernetesRole) Configure(ctx context.Context, l Logical, r *v1alpha1.Role) error {
	return l.Write(ctx, k.Path(r), k.Data(r))
}

func (k KubernetesRole) Remove(ctx context.Context, l Logical, r *v1alpha1.Role) (bool, error) {
	return removeIfPresent(ctx, l, k.Path(r))
}

func removeIfPresent(ctx context.Context, l Logical, path string) (bool, error) {
	current, err := l.Read(ctx, path)
	if err != nil || current == nil {
		return false, err
	}
	if err := l.Delete(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}
