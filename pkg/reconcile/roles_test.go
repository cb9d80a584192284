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
	"encoding/json"
	"testing"

	"github.com/panteparak/vault-config/api/v1alpha1"
)

func TestRoleKindPaths(t *testing.T) {
	tests := []struct {
		name string
		kind RoleKind
		role *v1alpha1.Role
		want string
	}{
		{"github default mount", GithubRole{}, &v1alpha1.Role{Name: "dev", Type: "github", TeamName: "devs"}, "auth/github/map/teams/devs"},
		{"github custom mount", GithubRole{}, &v1alpha1.Role{Name: "dev", Type: "github", AuthPath: "gh/", TeamName: "devs"}, "auth/gh/map/teams/devs"},
		{"kubernetes default mount", KubernetesRole{}, &v1alpha1.Role{Name: "app", Type: "kubernetes"}, "auth/kubernetes/role/app"},
		{"kubernetes custom mount", KubernetesRole{}, &v1alpha1.Role{Name: "app", Type: "kubernetes", AuthPath: "k8s"}, "auth/k8s/role/app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Path(tt.role); got != tt.want {
				t.Errorf("Path() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoleKindDrift(t *testing.T) {
	kube := &v1alpha1.Role{
		Name:                          "app",
		Type:                          "kubernetes",
		BoundServiceAccountName:       "app",
		BoundServiceAccountNamespaces: []string{"default", "jobs"},
		Policies:                      []string{"reader"},
		TTL:                           "1h",
	}
	github := &v1alpha1.Role{Name: "dev", Type: "github", TeamName: "dev", Policies: []string{"reader", "writer"}}

	tests := []struct {
		name      string
		kind      RoleKind
		role      *v1alpha1.Role
		current   map[string]interface{}
		wantDrift bool
	}{
		{
			name: "kubernetes as vault reports it",
			kind: KubernetesRole{},
			role: kube,
			current: map[string]interface{}{
				"bound_service_account_names":      []interface{}{"app"},
				"bound_service_account_namespaces": []interface{}{"jobs", "default"},
				"token_policies":                   []interface{}{"reader"},
				"token_ttl":                        json.Number("3600"),
			},
		},
		{
			name: "kubernetes ttl changed",
			kind: KubernetesRole{},
			role: kube,
			current: map[string]interface{}{
				"bound_service_account_names":      []interface{}{"app"},
				"bound_service_account_namespaces": []interface{}{"default", "jobs"},
				"token_policies":                   []interface{}{"reader"},
				"token_ttl":                        json.Number("60"),
			},
			wantDrift: true,
		},
		{
			name: "kubernetes namespace removed",
			kind: KubernetesRole{},
			role: kube,
			current: map[string]interface{}{
				"bound_service_account_names":      []interface{}{"app"},
				"bound_service_account_namespaces": []interface{}{"default"},
				"token_policies":                   []interface{}{"reader"},
				"token_ttl":                        json.Number("3600"),
			},
			wantDrift: true,
		},
		{
			name:    "github comma list in any order",
			kind:    GithubRole{},
			role:    github,
			current: map[string]interface{}{"value": "writer,reader"},
		},
		{
			name:      "github policy missing",
			kind:      GithubRole{},
			role:      github,
			current:   map[string]interface{}{"value": "reader"},
			wantDrift: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.kind.Drift(tt.role, tt.current)
			if got.HasDrift != tt.wantDrift {
				t.Errorf("Drift() = %+v, want drift %v", got, tt.wantDrift)
			}
		})
	}
}

func TestKubernetesRoleDataOmitsUnsetTTLs(t *testing.T) {
	data := KubernetesRole{}.Data(&v1alpha1.Role{Name: "app", BoundServiceAccountName: "app"})
	if _, ok := data["token_ttl"]; ok {
		t.Error("token_ttl should be omitted when unset")
	}
	if _, ok := data["token_max_ttl"]; ok {
		t.Error("token_max_ttl should be omitted when unset")
	}
}

func TestRoleKinds(t *testing.T) {
	kinds := RoleKinds()
	for typ, kind := range kinds {
		if kind.Type() != typ {
			t.Errorf("kind registered under %s reports %s", typ, kind.Type())
		}
	}
	if len(kinds) != 2 {
		t.Errorf("RoleKinds() has %d entries, want 2", len(kinds))
	}
}
