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
	"fmt"

	"github.com/go-logr/logr"

	"github.com/panteparak/vault-config/api/v1alpha1"
	"github.com/panteparak/vault-config/pkg/logger"
	"github.com/panteparak/vault-config/pkg/metrics"
	"github.com/panteparak/vault-config/pkg/vault"
	"github.com/panteparak/vault-config/pkg/vault/token"
	"github.com/panteparak/vault-config/shared/controller/binding"
	"github.com/panteparak/vault-config/shared/controller/drift"
	"github.com/panteparak/vault-config/shared/controller/driftmode"
	"github.com/panteparak/vault-config/shared/controller/hash"
	"github.com/panteparak/vault-config/shared/events"
)

// Reconcile runs every configured-phase operation in order. It returns
// false when any of them reports a failure; the joined errors are returned.
func (e *Engine) Reconcile(ctx context.Context) (bool, error) {
	ops := []func(context.Context) (bool, error){
		e.EnableSecretEngines,
		e.ApplyPolicies,
		e.EnableAuthBackends,
		e.ApplyAuthRoles,
	}
	ok := true
	var errs []error
	for _, op := range ops {
		done, err := op(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		ok = ok && done
	}
	return ok, errors.Join(errs...)
}

// EnableSecretEngines mounts enabled secret engines that are absent and
// unmounts disabled ones that are present.
func (e *Engine) EnableSecretEngines(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuth(ctx, "enable secret engines"); err != nil {
		return false, err
	}
	live, err := e.client.ListSecretEngines(ctx)
	if err != nil {
		return false, err
	}

	var errs []error
	for _, name := range v1alpha1.SortedKeys(e.desired.SecretEngines) {
		s := e.desired.SecretEngines[name]
		path := s.MountPath()
		log := logger.WithEntry(e.log, string(v1alpha1.KindSecretEngine), name)
		_, present := live[path]

		switch {
		case s.Enabled && !present:
			err := e.client.MountSecretEngine(ctx, path, s.Type, s.Description, s.Options)
			errs = e.applied(ctx, log, v1alpha1.KindSecretEngine, name, path, metrics.ActionCreate, err, errs)
		case !s.Enabled && present:
			err := e.client.UnmountSecretEngine(ctx, path)
			errs = e.applied(ctx, log, v1alpha1.KindSecretEngine, name, path, metrics.ActionDelete, err, errs)
		default:
			metrics.IncrementReconcile(string(v1alpha1.KindSecretEngine), metrics.ActionNoop, true)
		}
	}
	return len(errs) == 0, errors.Join(errs...)
}

// ApplyPolicies writes enabled policies that are absent or whose document
// changed and deletes disabled policies that are present.
func (e *Engine) ApplyPolicies(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuth(ctx, "apply policies"); err != nil {
		return false, err
	}
	names, err := e.client.ListPolicies(ctx)
	if err != nil {
		return false, err
	}
	live := make(map[string]bool, len(names))
	for _, n := range names {
		live[n] = true
	}

	var errs []error
	for _, name := range v1alpha1.SortedKeys(e.desired.Policies) {
		p := e.desired.Policies[name]
		path := binding.PolicyPath(name)
		log := logger.WithEntry(e.log, string(v1alpha1.KindPolicy), name)

		if !p.Enabled {
			if !live[name] {
				metrics.IncrementReconcile(string(v1alpha1.KindPolicy), metrics.ActionNoop, true)
				continue
			}
			err := e.client.DeletePolicy(ctx, name)
			errs = e.applied(ctx, log, v1alpha1.KindPolicy, name, path, metrics.ActionDelete, err, errs)
			continue
		}

		document := RenderPolicy(p)
		action := metrics.ActionCreate
		if live[name] {
			mode := e.driftMode(p.DriftMode)
			if !mode.ShouldDetect() {
				metrics.IncrementReconcile(string(v1alpha1.KindPolicy), metrics.ActionNoop, true)
				continue
			}
			current, err := e.client.ReadPolicy(ctx, name)
			if err != nil {
				errs = e.applied(ctx, log, v1alpha1.KindPolicy, name, path, metrics.ActionUpdate, err, errs)
				continue
			}
			if !hash.Differs(hash.Document(current), hash.Document(document)) {
				metrics.IncrementReconcile(string(v1alpha1.KindPolicy), metrics.ActionNoop, true)
				continue
			}
			if !mode.ShouldCorrect() {
				e.drifted(log, v1alpha1.KindPolicy, []string{"rules"})
				continue
			}
			action = metrics.ActionUpdate
		}
		err := e.client.WritePolicy(ctx, name, document)
		errs = e.applied(ctx, log, v1alpha1.KindPolicy, name, path, action, err, errs)
	}
	return len(errs) == 0, errors.Join(errs...)
}

// RenderPolicy renders the policy document written to Vault.
func RenderPolicy(p *v1alpha1.Policy) string {
	rules := make([]vault.PolicyRule, 0, len(p.Rules))
	for _, r := range p.Rules {
		rule := vault.PolicyRule{
			Path:         r.Path,
			Capabilities: v1alpha1.CapabilityStrings(r.Capabilities),
			Description:  r.Description,
		}
		if len(r.AllowedParameters) > 0 || len(r.DeniedParameters) > 0 || len(r.RequiredParameters) > 0 {
			rule.Parameters = &vault.PolicyParameters{
				Allowed:  r.AllowedParameters,
				Denied:   r.DeniedParameters,
				Required: r.RequiredParameters,
			}
		}
		rules = append(rules, rule)
	}
	return vault.GeneratePolicyHCL(rules, p.Name)
}

// EnableAuthBackends enables and configures enabled auth backends and
// disables the ones marked disabled. Configuration is rewritten only when
// the live configuration drifted.
func (e *Engine) EnableAuthBackends(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuth(ctx, "enable auth backends"); err != nil {
		return false, err
	}
	live, err := e.client.ListAuthMethods(ctx)
	if err != nil {
		return false, err
	}

	var errs []error
	for _, name := range v1alpha1.SortedKeys(e.desired.AuthMethods) {
		a := e.desired.AuthMethods[name]
		path := a.MountPath()
		log := logger.WithEntry(e.log, string(v1alpha1.KindAuthMethod), name)
		liveType, present := live[path]

		if !a.Enabled {
			if !present {
				metrics.IncrementReconcile(string(v1alpha1.KindAuthMethod), metrics.ActionNoop, true)
				continue
			}
			err := e.client.DisableAuthMethod(ctx, path)
			errs = e.applied(ctx, log, v1alpha1.KindAuthMethod, name, path, metrics.ActionDelete, err, errs)
			continue
		}

		if present && liveType != string(a.MethodType()) {
			err := fmt.Errorf("auth path %s is mounted as %s, want %s", path, liveType, a.MethodType())
			errs = e.applied(ctx, log, v1alpha1.KindAuthMethod, name, path, metrics.ActionUpdate, err, errs)
			continue
		}

		action := metrics.ActionUpdate
		if !present {
			if err := e.client.EnableAuthMethod(ctx, path, string(a.MethodType()), a.Description); err != nil {
				errs = e.applied(ctx, log, v1alpha1.KindAuthMethod, name, path, metrics.ActionCreate, err, errs)
				continue
			}
			action = metrics.ActionCreate
		}

		changed, err := e.configureAuth(ctx, a, !present)
		switch {
		case err != nil:
			errs = e.applied(ctx, log, v1alpha1.KindAuthMethod, name, path, action, err, errs)
		case changed || !present:
			errs = e.applied(ctx, log, v1alpha1.KindAuthMethod, name, path, action, nil, errs)
		default:
			metrics.IncrementReconcile(string(v1alpha1.KindAuthMethod), metrics.ActionNoop, true)
		}
	}
	return len(errs) == 0, errors.Join(errs...)
}

// configureAuth writes the backend configuration when it differs from the
// live one. It reports whether a write happened.
func (e *Engine) configureAuth(ctx context.Context, a *v1alpha1.AuthMethod, fresh bool) (bool, error) {
	path := binding.AuthConfigPath(a.MountPath())
	mode := e.driftMode(a.DriftMode)
	if !fresh && !mode.ShouldDetect() {
		return false, nil
	}

	var data map[string]interface{}
	var err error
	switch a.MethodType() {
	case v1alpha1.AuthTypeGithub:
		data = map[string]interface{}{"organization": a.Org}
		if a.BaseURL != "" {
			data["base_url"] = a.BaseURL
		}
	case v1alpha1.AuthTypeKubernetes:
		data, err = e.kubernetesAuthConfig(ctx, a)
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("unsupported auth type %q", a.MethodType())
	}

	if !fresh {
		current, err := e.client.Read(ctx, path)
		if err != nil {
			return false, err
		}
		if current != nil {
			result := authConfigDrift(data, current)
			if !result.HasDrift {
				return false, nil
			}
			if !mode.ShouldCorrect() {
				e.drifted(logger.WithEntry(e.log, string(v1alpha1.KindAuthMethod), a.Name), v1alpha1.KindAuthMethod, result.Fields)
				return false, nil
			}
		}
	}
	if err := e.client.Write(ctx, path, data); err != nil {
		return false, err
	}
	logger.LogVaultOperation(e.log, logger.OpUpdate, path)
	return true, nil
}

// authConfigDrift compares the fields Vault echoes back. The reviewer JWT
// is write-only and never compared.
func authConfigDrift(desired, current map[string]interface{}) drift.Result {
	return drift.NewComparator().Map(desired, current, "token_reviewer_jwt").Result()
}

func (e *Engine) kubernetesAuthConfig(ctx context.Context, a *v1alpha1.AuthMethod) (map[string]interface{}, error) {
	host := e.opts.Cluster.Host
	ca := e.opts.Cluster.CACert

	ref := e.opts.Reviewer
	if !a.TokenReviewer.IsZero() {
		ref = token.ServiceAccountRef{Namespace: a.TokenReviewer.Namespace, Name: a.TokenReviewer.Name}
	}

	var jwt string
	if e.opts.Identity != nil && ref.Name != "" && ref.Namespace != "" {
		id, err := e.opts.Identity.Lookup(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve token reviewer %s: %w", ref, err)
		}
		jwt = id.JWT
		if id.CACert != "" {
			ca = id.CACert
		}
		if id.Host != "" {
			host = id.Host
		}
	}
	if a.KubernetesHost != "" {
		host = a.KubernetesHost
	}
	if host == "" {
		return nil, fmt.Errorf("kubernetes host is unknown for auth %s", a.Name)
	}

	data := map[string]interface{}{"kubernetes_host": host}
	if ca != "" {
		data["kubernetes_ca_cert"] = ca
	}
	if jwt != "" {
		data["token_reviewer_jwt"] = jwt
	}
	return data, nil
}

// ApplyAuthRoles writes enabled role bindings that are absent or drifted
// and removes disabled ones or ones of an unsupported type. Roles whose
// auth backend is not live fail.
func (e *Engine) ApplyAuthRoles(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAuth(ctx, "apply auth roles"); err != nil {
		return false, err
	}
	live, err := e.client.ListAuthMethods(ctx)
	if err != nil {
		return false, err
	}

	var errs []error
	for _, name := range v1alpha1.SortedKeys(e.desired.Roles) {
		r := e.desired.Roles[name]
		mount := r.MountPath()
		log := logger.WithEntry(e.log, string(v1alpha1.KindRole), name)

		liveType, present := live[mount]
		if !present {
			if r.Enabled {
				err := fmt.Errorf("auth backend %s is not enabled", mount)
				errs = e.applied(ctx, log, v1alpha1.KindRole, name, mount, metrics.ActionCreate, err, errs)
			} else {
				metrics.IncrementReconcile(string(v1alpha1.KindRole), metrics.ActionNoop, true)
			}
			continue
		}
		kind, known := e.roles[v1alpha1.RoleType(liveType)]
		if !known {
			err := fmt.Errorf("auth backend %s has unsupported type %s", mount, liveType)
			errs = e.applied(ctx, log, v1alpha1.KindRole, name, mount, metrics.ActionUpdate, err, errs)
			continue
		}
		_, supported := e.roles[r.Type]

		if !r.Enabled || (r.Type != "" && !supported) {
			removed, err := kind.Remove(ctx, e.client, r)
			if err != nil || removed {
				errs = e.applied(ctx, log, v1alpha1.KindRole, name, kind.Path(r), metrics.ActionDelete, err, errs)
			} else {
				metrics.IncrementReconcile(string(v1alpha1.KindRole), metrics.ActionNoop, true)
			}
			continue
		}
		if r.Type != "" && r.Type != kind.Type() {
			err := fmt.Errorf("role type %s does not match auth backend %s of type %s", r.Type, mount, liveType)
			errs = e.applied(ctx, log, v1alpha1.KindRole, name, mount, metrics.ActionUpdate, err, errs)
			continue
		}

		path := kind.Path(r)
		mode := e.driftMode(r.DriftMode)
		current, err := e.client.Read(ctx, path)
		if err != nil {
			errs = e.applied(ctx, log, v1alpha1.KindRole, name, path, metrics.ActionUpdate, err, errs)
			continue
		}
		action := metrics.ActionCreate
		if current != nil {
			if !mode.ShouldDetect() {
				metrics.IncrementReconcile(string(v1alpha1.KindRole), metrics.ActionNoop, true)
				continue
			}
			result := kind.Drift(r, current)
			if !result.HasDrift {
				metrics.IncrementReconcile(string(v1alpha1.KindRole), metrics.ActionNoop, true)
				continue
			}
			if !mode.ShouldCorrect() {
				e.drifted(log, v1alpha1.KindRole, result.Fields)
				continue
			}
			action = metrics.ActionUpdate
		}
		err = kind.Configure(ctx, e.client, r)
		errs = e.applied(ctx, log, v1alpha1.KindRole, name, path, action, err, errs)
	}
	return len(errs) == 0, errors.Join(errs...)
}

// driftMode resolves the effective mode for an entry.
func (e *Engine) driftMode(entry driftmode.Mode) driftmode.Mode {
	return driftmode.Resolve(entry, e.opts.DriftMode)
}

// drifted records a drifted entry that is left as is.
func (e *Engine) drifted(log logr.Logger, kind v1alpha1.EntryKind, fields []string) {
	metrics.IncrementReconcile(string(kind), metrics.ActionDrift, true)
	log.Info("live entry differs from desired, not correcting", "fields", fields)
}

// applied records the outcome of a single entry action and appends a
// failure to errs.
func (e *Engine) applied(ctx context.Context, log logr.Logger, kind v1alpha1.EntryKind, name, path, action string, err error, errs []error) []error {
	metrics.IncrementReconcile(string(kind), action, err == nil)
	if err != nil {
		logger.LogVaultOperationError(log, err, action, path)
		return append(errs, fmt.Errorf("%s %s: %w", kind, name, err))
	}
	logger.LogVaultOperation(log, action, path)

	info := events.EntryInfo{Kind: string(kind), Name: name, Path: path}
	if action == metrics.ActionDelete {
		e.publish(ctx, events.NewEntryRemoved(info))
	} else {
		e.publish(ctx, events.NewEntryApplied(info, action == metrics.ActionCreate))
	}
	return errs
}
