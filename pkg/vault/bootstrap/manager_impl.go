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

package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/rand"

	"github.com/panteparak/vault-config/pkg/chain"
	"github.com/panteparak/vault-config/pkg/logger"
	"github.com/panteparak/vault-config/pkg/metrics"
	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/pkg/steps"
	"github.com/panteparak/vault-config/shared/events"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

// managerImpl implements Manager.
type managerImpl struct {
	engine Engine
	bus    *events.EventBus
	config *Config
	log    logr.Logger

	runMu sync.Mutex

	latestMu sync.RWMutex
	latest   []byte
}

// NewManager creates a new workflow Manager. bus may be nil.
func NewManager(engine Engine, bus *events.EventBus, config *Config, log logr.Logger) Manager {
	if config == nil {
		config = &Config{}
	}
	return &managerImpl{
		engine: engine,
		bus:    bus,
		config: config.WithDefaults(),
		log:    log.WithName("bootstrap-manager"),
	}
}

// run holds the state of a single workflow run.
type run struct {
	m       *managerImpl
	id      string
	tracker *steps.Tracker
	wlog    *logger.WorkflowLogger
}

// stepOp performs the work of one step. A false result without an error
// fails the step with reason.
type stepOp struct {
	name   steps.Name
	reason string
	do     func(ctx context.Context) (bool, error)
}

// Run executes one workflow run.
func (m *managerImpl) Run(ctx context.Context) (*Result, error) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	r := &run{
		m:       m,
		id:      rand.String(8),
		tracker: steps.NewTracker(steps.Order...),
	}
	r.wlog = logger.NewWorkflowLogger(m.log, r.id)
	r.wlog.Info("starting bootstrap workflow", "steps", len(steps.Order))
	r.publish(ctx)

	c := chain.Seed(true, m.log)
	for _, op := range m.ops() {
		c.Then(r.stage(op))
	}
	if err := c.OnError(r.fail(ctx)); err != nil {
		return nil, err
	}

	_, err := c.Run(ctx)

	result := &Result{
		RunID:     r.id,
		Steps:     r.tracker.Steps(),
		Succeeded: err == nil,
		Duration:  r.wlog.Duration(),
	}
	if err != nil {
		result.FailedStep = r.tracker.Last()
		if step, ok := r.tracker.Get(result.FailedStep); ok {
			result.Reason = step.Trace
		}
		r.wlog.LogRunError(err)
	} else {
		r.wlog.LogRunSuccess()
	}

	metrics.IncrementWorkflowRun(result.Succeeded)
	m.emit(ctx, events.NewWorkflowFinished(r.id, string(result.FailedStep), result.Reason))
	return result, err
}

// Latest returns the most recently published snapshot.
func (m *managerImpl) Latest() []byte {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest
}

func (m *managerImpl) ops() []stepOp {
	return []stepOp{
		{name: steps.Init, do: m.initStep},
		{name: steps.Up, reason: "vault is not running", do: m.upStep},
		{name: steps.Auth, reason: "auth backends could not be reconciled", do: m.authStep},
		{name: steps.Secret, reason: "secret engines could not be reconciled", do: m.engine.EnableSecretEngines},
		{name: steps.Policy, reason: "policies could not be reconciled", do: m.engine.ApplyPolicies},
		{name: steps.Role, reason: "auth roles could not be reconciled", do: m.engine.ApplyAuthRoles},
		{name: steps.Clean, do: m.cleanStep},
	}
}

// initStep initializes Vault. Already initialized is not a failure; the up
// step decides whether Vault is usable.
func (m *managerImpl) initStep(ctx context.Context) (bool, error) {
	if _, err := m.engine.Initialize(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (m *managerImpl) upStep(ctx context.Context) (bool, error) {
	if m.config.Readiness != nil {
		p := probe.New(m.config.Target, m.config.Probe, m.log, m.config.ProbeOptions...)
		if ok, err := p.Run(ctx, m.config.Readiness); err != nil || !ok {
			return false, err
		}
	}
	if _, err := m.engine.Authenticate(ctx); err != nil {
		return false, err
	}
	return m.engine.IsRunning(ctx)
}

func (m *managerImpl) authStep(ctx context.Context) (bool, error) {
	ok, err := m.engine.Authenticate(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, infraerrors.NewNotAuthenticatedError("authenticate")
	}
	return m.engine.EnableAuthBackends(ctx)
}

func (m *managerImpl) cleanStep(context.Context) (bool, error) {
	if m.config.RetainRootToken {
		m.log.Info("retaining bootstrap credential")
		return true, nil
	}
	m.engine.VoidCredential()
	return true, nil
}

// stage wraps op so the step is marked active before and finished after it,
// publishing a snapshot on each transition.
func (r *run) stage(op stepOp) chain.Stage[bool] {
	return func(ctx context.Context, _ bool) chain.Result[bool] {
		stepLog := r.wlog.WithStep(string(op.name))
		if err := r.transition(ctx, op.name, steps.Active); err != nil {
			return chain.Reject[bool](err)
		}
		stepLog.LogStepStart()

		ok, err := op.do(ctx)
		if err != nil {
			return chain.Reject[bool](err)
		}
		if !ok {
			return chain.Reject[bool](infraerrors.NewStepFailedError(string(op.name), op.reason))
		}

		if err := r.transition(ctx, op.name, steps.Finished); err != nil {
			return chain.Reject[bool](err)
		}
		stepLog.InfoWithDuration("step finished")
		return chain.Next(true)
	}
}

// fail is the single error handler of a run.
func (r *run) fail(ctx context.Context) func(error) {
	return func(err error) {
		last := r.tracker.Last()
		if ferr := r.tracker.FailLast(steps.Failed, err.Error()); ferr != nil {
			r.wlog.Error(ferr, "failed to record step failure")
			return
		}
		metrics.IncrementStepTransition(string(last), string(steps.Failed))
		r.wlog.WithStep(string(last)).Error(err, "step failed")
		r.publish(ctx)
	}
}

func (r *run) transition(ctx context.Context, name steps.Name, state steps.State) error {
	if err := r.tracker.Transition(name, state); err != nil {
		return fmt.Errorf("failed to move step %s to %s: %w", name, state, err)
	}
	metrics.IncrementStepTransition(string(name), string(state))
	r.publish(ctx)
	return nil
}

func (r *run) publish(ctx context.Context) {
	payload, err := r.tracker.Snapshot()
	if err != nil {
		r.wlog.Error(err, "failed to encode step snapshot")
		return
	}
	r.m.latestMu.Lock()
	r.m.latest = payload
	r.m.latestMu.Unlock()

	step, state := r.tracker.Last(), steps.None
	if s, ok := r.tracker.Get(step); ok {
		state = s.State
	}
	r.m.emit(ctx, events.NewProgressUpdated(r.id, string(step), string(state), payload))
}

func (m *managerImpl) emit(ctx context.Context, event events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, event); err != nil {
		m.log.Error(err, "event handler failed", "type", event.Type())
	}
}

// Ensure managerImpl implements Manager.
var _ Manager = (*managerImpl)(nil)
