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
	"testing"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/panteparak/vault-config/api/v1alpha1"
	"github.com/panteparak/vault-config/pkg/metrics"
	"github.com/panteparak/vault-config/pkg/vault/token"
	"github.com/panteparak/vault-config/pkg/vault/vaulttest"
	"github.com/panteparak/vault-config/shared/controller/driftmode"
	"github.com/panteparak/vault-config/shared/events"
)

type stubIdentity struct {
	identity *token.Identity
	last     token.ServiceAccountRef
}

func (s *stubIdentity) Lookup(_ context.Context, ref token.ServiceAccountRef) (*token.Identity, error) {
	s.last = ref
	return s.identity, nil
}

// authenticated starts an initialized fake Vault and an engine holding its
// root token.
func authenticated(t *testing.T, desired *v1alpha1.DesiredConfig, mutate func(*Options)) (*vaulttest.Server, *Engine) {
	t.Helper()
	server, root := vaulttest.NewInitializedServer()
	t.Cleanup(server.Close)

	opts := defaultOptions()
	opts.Token = root
	if mutate != nil {
		mutate(&opts)
	}
	return server, newEngine(t, server, desired, opts)
}

func assertNoMutations(t *testing.T, server *vaulttest.Server) {
	t.Helper()
	if m := server.Mutations(); len(m) != 0 {
		t.Errorf("second pass should not mutate vault, got %v", m)
	}
}

func TestEnableSecretEngines(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.SecretEngines["kv"] = &v1alpha1.SecretEngine{Name: "kv", Enabled: true, Type: "kv", Options: map[string]string{"version": "2"}}
	desired.SecretEngines["pki"] = &v1alpha1.SecretEngine{Name: "pki", Enabled: false, Type: "pki"}
	desired.SecretEngines["transit"] = &v1alpha1.SecretEngine{Name: "transit", Enabled: false, Type: "transit"}

	server, e := authenticated(t, desired, nil)
	server.SetMount("pki", "pki")
	ctx := context.Background()

	ok, err := e.EnableSecretEngines(ctx)
	if err != nil || !ok {
		t.Fatalf("EnableSecretEngines() = %v, %v", ok, err)
	}
	mounts := server.Mounts()
	if mounts["kv"] != "kv" {
		t.Errorf("kv should be mounted, mounts = %v", mounts)
	}
	if _, ok := mounts["pki"]; ok {
		t.Error("disabled pki should be unmounted")
	}
	if _, ok := mounts["transit"]; ok {
		t.Error("disabled transit should not be mounted")
	}

	server.ResetMutations()
	if ok, err := e.EnableSecretEngines(ctx); err != nil || !ok {
		t.Fatalf("second EnableSecretEngines() = %v, %v", ok, err)
	}
	assertNoMutations(t, server)
}

func TestApplyPolicies(t *testing.T) {
	reader := &v1alpha1.Policy{
		Name:    "reader",
		Enabled: true,
		Rules:   []v1alpha1.PolicyRule{{Path: "kv/data/{{name}}/*", Capabilities: []v1alpha1.Capability{"read", "list"}}},
	}
	writer := &v1alpha1.Policy{
		Name:    "writer",
		Enabled: true,
		Rules:   []v1alpha1.PolicyRule{{Path: "kv/data/*", Capabilities: []v1alpha1.Capability{"create", "update"}}},
	}
	desired := v1alpha1.NewDesiredConfig()
	desired.Policies["reader"] = reader
	desired.Policies["writer"] = writer
	desired.Policies["stale"] = &v1alpha1.Policy{Name: "stale", Enabled: false}
	desired.Policies["absent"] = &v1alpha1.Policy{Name: "absent", Enabled: false}

	bus := events.NewEventBus(logr.Discard())
	var applied []events.EntryApplied
	var removed []events.EntryRemoved
	events.Subscribe(bus, func(_ context.Context, e events.EntryApplied) error {
		applied = append(applied, e)
		return nil
	})
	events.Subscribe(bus, func(_ context.Context, e events.EntryRemoved) error {
		removed = append(removed, e)
		return nil
	})

	server, e := authenticated(t, desired, func(o *Options) { o.Bus = bus })
	server.SetPolicy("writer", "path \"old\" {}\n")
	server.SetPolicy("stale", "path \"x\" {}\n")
	server.SetPolicy("unmanaged", "path \"y\" {}\n")
	ctx := context.Background()

	ok, err := e.ApplyPolicies(ctx)
	if err != nil || !ok {
		t.Fatalf("ApplyPolicies() = %v, %v", ok, err)
	}

	got, _ := server.Policy("reader")
	if !strings.Contains(got, `path "kv/data/reader/*"`) {
		t.Errorf("reader policy not rendered with its name:\n%s", got)
	}
	if got, _ := server.Policy("writer"); got != RenderPolicy(writer) {
		t.Errorf("writer policy was not updated:\n%s", got)
	}
	if _, ok := server.Policy("stale"); ok {
		t.Error("disabled policy should be deleted")
	}
	if _, ok := server.Policy("unmanaged"); !ok {
		t.Error("policies absent from the bundle must be left alone")
	}

	if len(applied) != 2 || !applied[0].Created || applied[1].Created {
		t.Errorf("EntryApplied events = %+v, want reader created then writer updated", applied)
	}
	if len(removed) != 1 || removed[0].Entry.Name != "stale" {
		t.Errorf("EntryRemoved events = %+v", removed)
	}

	server.ResetMutations()
	if ok, err := e.ApplyPolicies(ctx); err != nil || !ok {
		t.Fatalf("second ApplyPolicies() = %v, %v", ok, err)
	}
	assertNoMutations(t, server)
}

func TestEnableAuthBackends(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.AuthMethods["github"] = &v1alpha1.AuthMethod{Name: "github", Enabled: true, Org: "acme"}
	desired.AuthMethods["kubernetes"] = &v1alpha1.AuthMethod{Name: "kubernetes", Enabled: true}
	desired.AuthMethods["legacy"] = &v1alpha1.AuthMethod{Name: "legacy", Type: "github", Enabled: false}

	identity := &stubIdentity{identity: &token.Identity{JWT: "reviewer-jwt", CACert: "reviewer-ca"}}
	server, e := authenticated(t, desired, func(o *Options) {
		o.Identity = identity
		o.Reviewer = token.ServiceAccountRef{Namespace: "vault", Name: "vault-config"}
		o.Cluster = token.ClusterInfo{Host: "https://10.0.0.1:443", CACert: "cluster-ca"}
	})
	server.SetAuth("legacy", "github")
	ctx := context.Background()

	ok, err := e.EnableAuthBackends(ctx)
	if err != nil || !ok {
		t.Fatalf("EnableAuthBackends() = %v, %v", ok, err)
	}

	auths := server.Auths()
	if auths["github"] != "github" || auths["kubernetes"] != "kubernetes" {
		t.Errorf("auth backends = %v", auths)
	}
	if _, ok := auths["legacy"]; ok {
		t.Error("disabled backend should be removed")
	}

	gh, _ := server.Data("auth/github/config")
	if gh["organization"] != "acme" {
		t.Errorf("github config = %v", gh)
	}
	kube, _ := server.Data("auth/kubernetes/config")
	if kube["kubernetes_host"] != "https://10.0.0.1:443" ||
		kube["kubernetes_ca_cert"] != "reviewer-ca" ||
		kube["token_reviewer_jwt"] != "reviewer-jwt" {
		t.Errorf("kubernetes config = %v", kube)
	}
	if identity.last.String() != "vault/vault-config" {
		t.Errorf("reviewer looked up = %s", identity.last)
	}

	server.ResetMutations()
	if ok, err := e.EnableAuthBackends(ctx); err != nil || !ok {
		t.Fatalf("second EnableAuthBackends() = %v, %v", ok, err)
	}
	assertNoMutations(t, server)

	server.SetData("auth/github/config", map[string]interface{}{"organization": "other"})
	server.ResetMutations()
	if ok, err := e.EnableAuthBackends(ctx); err != nil || !ok {
		t.Fatalf("EnableAuthBackends() after drift = %v, %v", ok, err)
	}
	if m := server.Mutations(); len(m) != 1 || m[0] != "PUT auth/github/config" {
		t.Errorf("drift repair mutations = %v, want only the github config", m)
	}
}

func TestEnableAuthBackendsTypeMismatch(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.AuthMethods["k8s"] = &v1alpha1.AuthMethod{Name: "k8s", Type: "kubernetes", Enabled: true, KubernetesHost: "https://k8s"}

	server, e := authenticated(t, desired, nil)
	server.SetAuth("k8s", "github")

	ok, err := e.EnableAuthBackends(context.Background())
	if ok || err == nil {
		t.Fatalf("EnableAuthBackends() = %v, %v, want failure", ok, err)
	}
	if !strings.Contains(err.Error(), "mounted as github") {
		t.Errorf("error = %v", err)
	}
}

func TestApplyAuthRoles(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.Roles["dev"] = &v1alpha1.Role{
		Name: "dev", Enabled: true, Type: "github", TeamName: "dev", Policies: []string{"reader", "writer"},
	}
	desired.Roles["app"] = &v1alpha1.Role{
		Name: "app", Enabled: true, Type: "kubernetes",
		BoundServiceAccountName: "app", BoundServiceAccountNamespace: "default",
		Policies: []string{"reader"}, TTL: "1h",
	}
	desired.Roles["gone"] = &v1alpha1.Role{Name: "gone", Enabled: false, Type: "kubernetes"}
	desired.Roles["odd"] = &v1alpha1.Role{Name: "odd", Enabled: true, Type: "ldap", AuthPath: "kubernetes"}

	server, e := authenticated(t, desired, nil)
	server.SetAuth("github", "github")
	server.SetAuth("kubernetes", "kubernetes")
	server.SetData("auth/kubernetes/role/gone", map[string]interface{}{"token_policies": "reader"})
	server.SetData("auth/kubernetes/role/odd", map[string]interface{}{"token_policies": "reader"})
	ctx := context.Background()

	ok, err := e.ApplyAuthRoles(ctx)
	if err != nil || !ok {
		t.Fatalf("ApplyAuthRoles() = %v, %v", ok, err)
	}

	team, _ := server.Data("auth/github/map/teams/dev")
	if team["value"] != "reader,writer" {
		t.Errorf("team map = %v", team)
	}
	role, ok := server.Data("auth/kubernetes/role/app")
	if !ok || role["token_ttl"] != "1h" {
		t.Errorf("kubernetes role = %v", role)
	}
	if _, ok := server.Data("auth/kubernetes/role/gone"); ok {
		t.Error("disabled role should be removed")
	}
	if _, ok := server.Data("auth/kubernetes/role/odd"); ok {
		t.Error("role of an unsupported type should be removed")
	}

	server.ResetMutations()
	if ok, err := e.ApplyAuthRoles(ctx); err != nil || !ok {
		t.Fatalf("second ApplyAuthRoles() = %v, %v", ok, err)
	}
	assertNoMutations(t, server)
}

func TestApplyAuthRolesMissingBackend(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.Roles["app"] = &v1alpha1.Role{
		Name: "app", Enabled: true, Type: "kubernetes",
		BoundServiceAccountName: "app", BoundServiceAccountNamespace: "default",
	}
	desired.Roles["dev"] = &v1alpha1.Role{
		Name: "dev", Enabled: true, Type: "github", TeamName: "dev", Policies: []string{"reader"},
	}

	server, e := authenticated(t, desired, nil)
	server.SetAuth("github", "github")

	ok, err := e.ApplyAuthRoles(context.Background())
	if ok || err == nil {
		t.Fatalf("ApplyAuthRoles() = %v, %v, want failure", ok, err)
	}
	if !strings.Contains(err.Error(), "kubernetes is not enabled") {
		t.Errorf("error = %v", err)
	}
	if _, ok := server.Data("auth/github/map/teams/dev"); !ok {
		t.Error("a failing entry must not stop the remaining entries")
	}
}

func TestReconcile(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.SecretEngines["kv"] = &v1alpha1.SecretEngine{Name: "kv", Enabled: true, Type: "kv"}
	desired.Policies["reader"] = &v1alpha1.Policy{
		Name: "reader", Enabled: true,
		Rules: []v1alpha1.PolicyRule{{Path: "kv/data/*", Capabilities: []v1alpha1.Capability{"read"}}},
	}
	desired.AuthMethods["github"] = &v1alpha1.AuthMethod{Name: "github", Enabled: true, Org: "acme"}
	desired.Roles["dev"] = &v1alpha1.Role{Name: "dev", Enabled: true, Type: "github", TeamName: "dev", Policies: []string{"reader"}}

	server, e := authenticated(t, desired, nil)
	ctx := context.Background()

	if ok, err := e.Reconcile(ctx); err != nil || !ok {
		t.Fatalf("Reconcile() = %v, %v", ok, err)
	}
	if _, ok := server.Data("auth/github/map/teams/dev"); !ok {
		t.Error("roles should be applied after their backend is enabled")
	}

	server.ResetMutations()
	if ok, err := e.Reconcile(ctx); err != nil || !ok {
		t.Fatalf("second Reconcile() = %v, %v", ok, err)
	}
	assertNoMutations(t, server)
}

func TestApplyPoliciesDriftMode(t *testing.T) {
	const live = "path \"old\" {}\n"

	tests := []struct {
		name        string
		process     driftmode.Mode
		entry       driftmode.Mode
		wantRewrite bool
		wantDrift   bool
	}{
		{name: "default corrects", wantRewrite: true},
		{name: "process correct", process: driftmode.Correct, wantRewrite: true},
		{name: "process detect", process: driftmode.Detect, wantDrift: true},
		{name: "process ignore", process: driftmode.Ignore},
		{name: "entry overrides process", process: driftmode.Correct, entry: driftmode.Detect, wantDrift: true},
		{name: "entry correct under ignore", process: driftmode.Ignore, entry: driftmode.Correct, wantRewrite: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &v1alpha1.Policy{
				Name:      "writer",
				Enabled:   true,
				DriftMode: tt.entry,
				Rules:     []v1alpha1.PolicyRule{{Path: "kv/data/*", Capabilities: []v1alpha1.Capability{"create"}}},
			}
			desired := v1alpha1.NewDesiredConfig()
			desired.Policies["writer"] = writer

			server, e := authenticated(t, desired, func(o *Options) { o.DriftMode = tt.process })
			server.SetPolicy("writer", live)
			server.ResetMutations()

			drift := metrics.ReconcileTotal.WithLabelValues(string(v1alpha1.KindPolicy), metrics.ActionDrift, metrics.ResultSuccess)
			before := testutil.ToFloat64(drift)

			if ok, err := e.ApplyPolicies(context.Background()); err != nil || !ok {
				t.Fatalf("ApplyPolicies() = %v, %v", ok, err)
			}

			got, _ := server.Policy("writer")
			if tt.wantRewrite {
				if got != RenderPolicy(writer) {
					t.Errorf("policy should be rewritten, got:\n%s", got)
				}
			} else {
				if got != live {
					t.Errorf("policy should be left as is, got:\n%s", got)
				}
				assertNoMutations(t, server)
			}

			want := before
			if tt.wantDrift {
				want++
			}
			if after := testutil.ToFloat64(drift); after != want {
				t.Errorf("drift counter = %v, want %v", after, want)
			}
		})
	}
}

func TestApplyAuthRolesDetectOnly(t *testing.T) {
	desired := v1alpha1.NewDesiredConfig()
	desired.Roles["app"] = &v1alpha1.Role{
		Name: "app", Enabled: true, Type: "kubernetes", DriftMode: driftmode.Detect,
		BoundServiceAccountName: "app", BoundServiceAccountNamespace: "default",
		Policies: []string{"reader"},
	}
	desired.Roles["new"] = &v1alpha1.Role{
		Name: "new", Enabled: true, Type: "kubernetes", DriftMode: driftmode.Ignore,
		BoundServiceAccountName: "new", BoundServiceAccountNamespace: "default",
		Policies: []string{"reader"},
	}

	server, e := authenticated(t, desired, nil)
	server.SetAuth("kubernetes", "kubernetes")
	live := map[string]interface{}{
		"bound_service_account_names":      []interface{}{"app"},
		"bound_service_account_namespaces": []interface{}{"default"},
		"token_policies":                   []interface{}{"admin"},
	}
	server.SetData("auth/kubernetes/role/app", live)

	if ok, err := e.ApplyAuthRoles(context.Background()); err != nil || !ok {
		t.Fatalf("ApplyAuthRoles() = %v, %v", ok, err)
	}

	got, _ := server.Data("auth/kubernetes/role/app")
	if policies, _ := got["token_policies"].([]interface{}); len(policies) != 1 || policies[0] != "admin" {
		t.Errorf("detect mode should leave the live role as is, got %v", got)
	}
	if _, ok := server.Data("auth/kubernetes/role/new"); !ok {
		t.Error("ignore mode should still create absent roles")
	}
}
