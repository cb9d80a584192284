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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/panteparak/vault-config/api/v1alpha1"
	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/pkg/vault"
	"github.com/panteparak/vault-config/pkg/vault/vaulttest"
	"github.com/panteparak/vault-config/shared/events"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newClient(t *testing.T, addr string) *vault.Client {
	t.Helper()
	retries := 0
	client, err := vault.NewClient(vault.ClientConfig{Address: addr, MaxRetries: &retries})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func defaultOptions() Options {
	return Options{
		Shares:       3,
		Threshold:    2,
		KubeRole:     "vault-config",
		KubeAuthPath: "kubernetes",
		ProbeOptions: []probe.Option{probe.WithSleep(noSleep)},
	}
}

func newEngine(t *testing.T, server *vaulttest.Server, desired *v1alpha1.DesiredConfig, opts Options) *Engine {
	t.Helper()
	e, err := New(context.Background(), newClient(t, server.URL), desired, opts, logr.Discard())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestNewRejectsInvalidShares(t *testing.T) {
	tests := []struct {
		name      string
		shares    int
		threshold int
	}{
		{"zero shares", 0, 1},
		{"zero threshold", 3, 0},
		{"threshold above shares", 2, 3},
		{"too many shares", 11, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.Shares = tt.shares
			opts.Threshold = tt.threshold
			_, err := New(context.Background(), newClient(t, "http://127.0.0.1:1"), nil, opts, logr.Discard())
			if !infraerrors.IsValidationError(err) {
				t.Errorf("New() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestNewWaitsForReadiness(t *testing.T) {
	server, _ := vaulttest.NewInitializedServer()
	defer server.Close()

	opts := defaultOptions()
	opts.Target = server.URL
	opts.Readiness = probe.HTTPGet(nil, server.URL+"/v1/sys/health")
	opts.Probe = probe.Config{FailureThreshold: 3, SuccessThreshold: 1}
	newEngine(t, server, nil, opts)
}

func TestNewNotReady(t *testing.T) {
	calls := 0
	opts := defaultOptions()
	opts.Target = "http://vault:8200"
	opts.Probe = probe.Config{FailureThreshold: 2, SuccessThreshold: 1}
	opts.Readiness = func(context.Context) (bool, error) {
		calls++
		return false, errors.New("connection refused")
	}

	_, err := New(context.Background(), newClient(t, "http://127.0.0.1:1"), nil, opts, logr.Discard())
	if !infraerrors.IsNotReadyError(err) {
		t.Fatalf("New() error = %v, want NotReadyError", err)
	}
	if calls != 2 {
		t.Errorf("readiness calls = %d, want 2", calls)
	}
}

func TestInitialize(t *testing.T) {
	server := vaulttest.NewServer()
	defer server.Close()

	bus := events.NewEventBus(logr.Discard())
	var generated []events.KeysGenerated
	events.Subscribe(bus, func(_ context.Context, e events.KeysGenerated) error {
		generated = append(generated, e)
		return nil
	})

	opts := defaultOptions()
	opts.Bus = bus
	e := newEngine(t, server, nil, opts)
	ctx := context.Background()

	ok, err := e.Initialize(ctx)
	if err != nil || !ok {
		t.Fatalf("Initialize() = %v, %v, want true", ok, err)
	}
	if server.Sealed() {
		t.Error("vault should be unsealed")
	}
	if !e.HoldsCredential() {
		t.Error("engine should hold the bootstrap credential")
	}
	if len(generated) != 1 || len(generated[0].Keys) != 3 || generated[0].Threshold != 2 {
		t.Fatalf("KeysGenerated = %+v, want one event with 3 keys", generated)
	}

	ok, err = e.Initialize(ctx)
	if err != nil || ok {
		t.Errorf("second Initialize() = %v, %v, want false, nil", ok, err)
	}
	if server.InitCalls() != 1 {
		t.Errorf("InitCalls = %d, want 1", server.InitCalls())
	}
	if len(generated) != 1 {
		t.Errorf("no new shares should be published, got %d events", len(generated))
	}
}

func TestUnseal(t *testing.T) {
	server := vaulttest.NewServer()
	defer server.Close()
	e := newEngine(t, server, nil, defaultOptions())
	ctx := context.Background()

	if _, err := e.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	server.Seal()
	keys := server.Keys()

	ok, err := e.Unseal(ctx, keys[:1])
	if err != nil || ok {
		t.Fatalf("Unseal(one share) = %v, %v, want false", ok, err)
	}
	ok, err = e.Unseal(ctx, keys[1:2])
	if err != nil || !ok {
		t.Fatalf("Unseal(second share) = %v, %v, want true", ok, err)
	}

	if _, err := e.Unseal(ctx, []string{"bogus"}); err != nil {
		t.Errorf("Unseal() on unsealed vault should not submit shares, got %v", err)
	}
}

func TestStatusRequiresAuthentication(t *testing.T) {
	server, root := vaulttest.NewInitializedServer()
	defer server.Close()
	e := newEngine(t, server, nil, defaultOptions())
	ctx := context.Background()

	if _, err := e.IsRunning(ctx); !infraerrors.IsNotAuthenticatedError(err) {
		t.Errorf("IsRunning() error = %v, want NotAuthenticatedError", err)
	}
	if _, err := e.IsSealed(ctx); !infraerrors.IsNotAuthenticatedError(err) {
		t.Errorf("IsSealed() error = %v, want NotAuthenticatedError", err)
	}

	opts := defaultOptions()
	opts.Token = root
	e = newEngine(t, server, nil, opts)
	if ok, err := e.Authenticate(ctx); err != nil || !ok {
		t.Fatalf("Authenticate() = %v, %v", ok, err)
	}
	running, err := e.IsRunning(ctx)
	if err != nil || !running {
		t.Errorf("IsRunning() = %v, %v, want true", running, err)
	}
	sealed, err := e.IsSealed(ctx)
	if err != nil || sealed {
		t.Errorf("IsSealed() = %v, %v, want false", sealed, err)
	}
}

func TestConfiguredOperationsRequireAuthentication(t *testing.T) {
	server, _ := vaulttest.NewInitializedServer()
	defer server.Close()
	e := newEngine(t, server, nil, defaultOptions())
	ctx := context.Background()

	ops := map[string]func(context.Context) (bool, error){
		"EnableSecretEngines": e.EnableSecretEngines,
		"ApplyPolicies":       e.ApplyPolicies,
		"EnableAuthBackends":  e.EnableAuthBackends,
		"ApplyAuthRoles":      e.ApplyAuthRoles,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			ok, err := op(ctx)
			if ok || !infraerrors.IsNotAuthenticatedError(err) {
				t.Errorf("%s() = %v, %v, want NotAuthenticatedError", name, ok, err)
			}
		})
	}
	if len(server.Mutations()) != 0 {
		t.Errorf("unauthenticated operations mutated vault: %v", server.Mutations())
	}
}

func TestAuthenticateWithKubernetes(t *testing.T) {
	server, _ := vaulttest.NewInitializedServer()
	defer server.Close()
	server.SetAuth("kubernetes", "kubernetes")
	server.SetData("auth/kubernetes/role/vault-config", map[string]interface{}{"token_policies": "admin"})

	kubeEnabled := v1alpha1.NewDesiredConfig()
	kubeEnabled.AuthMethods["kubernetes"] = &v1alpha1.AuthMethod{Name: "kubernetes", Enabled: true}

	tests := []struct {
		name    string
		desired *v1alpha1.DesiredConfig
		jwt     string
		want    bool
	}{
		{name: "kubernetes auth enabled", desired: kubeEnabled, jwt: "local-jwt", want: true},
		{name: "kubernetes auth not desired", desired: v1alpha1.NewDesiredConfig(), jwt: "local-jwt", want: false},
		{name: "empty local token", desired: kubeEnabled, jwt: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			opts.LocalToken = func() (string, error) { return tt.jwt, nil }
			e := newEngine(t, server, tt.desired, opts)

			ok, err := e.Authenticate(context.Background())
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Authenticate() = %v, want %v", ok, tt.want)
			}
			if e.HoldsCredential() {
				t.Error("kubernetes login must not be treated as the bootstrap credential")
			}
		})
	}
}

func TestVoidCredential(t *testing.T) {
	server, root := vaulttest.NewInitializedServer()
	defer server.Close()

	opts := defaultOptions()
	opts.Token = root
	e := newEngine(t, server, nil, opts)
	ctx := context.Background()

	if ok, err := e.Authenticate(ctx); err != nil || !ok {
		t.Fatalf("Authenticate() = %v, %v", ok, err)
	}
	e.VoidCredential()

	if e.HoldsCredential() {
		t.Error("credential should be dropped")
	}
	if _, err := e.IsRunning(ctx); !infraerrors.IsNotAuthenticatedError(err) {
		t.Errorf("IsRunning() after void error = %v, want NotAuthenticatedError", err)
	}
	if ok, _ := e.Authenticate(ctx); ok {
		t.Error("Authenticate() should fail once the credential is voided")
	}
}

func concurrentDesired() *v1alpha1.DesiredConfig {
	desired := v1alpha1.NewDesiredConfig()
	desired.SecretEngines["kv"] = &v1alpha1.SecretEngine{Name: "kv", Enabled: true, Type: "kv"}
	desired.Policies["reader"] = &v1alpha1.Policy{
		Name: "reader", Enabled: true,
		Rules: []v1alpha1.PolicyRule{{Path: "kv/data/*", Capabilities: []v1alpha1.Capability{"read"}}},
	}
	desired.AuthMethods["github"] = &v1alpha1.AuthMethod{Name: "github", Enabled: true, Org: "acme"}
	desired.Roles["dev"] = &v1alpha1.Role{Name: "dev", Enabled: true, Type: "github", TeamName: "dev", Policies: []string{"reader"}}
	return desired
}

func TestConcurrentOperationsSerialize(t *testing.T) {
	server, e := authenticated(t, concurrentDesired(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if ok, err := e.Reconcile(ctx); err != nil || !ok {
				t.Errorf("Reconcile() = %v, %v", ok, err)
			}
		}()
		go func() {
			defer wg.Done()
			if sealed, err := e.IsSealed(ctx); err != nil || sealed {
				t.Errorf("IsSealed() = %v, %v", sealed, err)
			}
		}()
		go func() {
			defer wg.Done()
			if !e.HoldsCredential() {
				t.Error("HoldsCredential() = false while reconciling")
			}
		}()
	}
	wg.Wait()

	server.ResetMutations()
	if ok, err := e.Reconcile(ctx); err != nil || !ok {
		t.Fatalf("Reconcile() after concurrent passes = %v, %v", ok, err)
	}
	assertNoMutations(t, server)
}

func TestVoidCredentialDuringReconcile(t *testing.T) {
	_, e := authenticated(t, concurrentDesired(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Operations after the void fail with NotAuthenticated.
			_, _ = e.Reconcile(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.VoidCredential()
	}()
	wg.Wait()

	if e.HoldsCredential() {
		t.Error("credential should stay dropped")
	}
	if _, err := e.ApplyPolicies(ctx); !infraerrors.IsNotAuthenticatedError(err) {
		t.Errorf("ApplyPolicies() after void error = %v, want NotAuthenticatedError", err)
	}
}
