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
// Package reconcile implements the reconciliation engine. The engine owns
// the single Vault session and serializes every operation on it with one
// mutex. Configured-phase operations compare the desired configuration
// bundle with live Vault state and apply only the difference.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/panteparak/vault-config/api/v1alpha1"
	"github.com/panteparak/vault-config/pkg/config"
	"github.com/panteparak/vault-config/pkg/logger"
	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/pkg/vault"
	"github.com/panteparak/vault-config/pkg/vault/token"
	"github.com/panteparak/vault-config/shared/controller/driftmode"
	"github.com/panteparak/vault-config/shared/events"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

// ReadinessDelay is the initial probe delay used at construction.
const ReadinessDelay = 1 * time.Second

// ControlPlane is the subset of the Vault client the engine needs.
// *vault.Client implements it.
type ControlPlane interface {
	InitStatus(ctx context.Context) (bool, error)
	Initialize(ctx context.Context, shares, threshold int) (*vault.InitResult, error)
	SealStatus(ctx context.Context) (initialized, sealed bool, err error)
	Unseal(ctx context.Context, key string) (bool, error)

	IsAuthenticated() bool
	VerifyAuthenticated(ctx context.Context) (bool, error)
	AuthenticateToken(token string) error
	AuthenticateKubernetes(ctx context.Context, role, mountPath, jwt string) error
	Void()
	Close()

	ListAuthMethods(ctx context.Context) (map[string]string, error)
	EnableAuthMethod(ctx context.Context, path, methodType, description string) error
	DisableAuthMethod(ctx context.Context, path string) error

	ListSecretEngines(ctx context.Context) (map[string]string, error)
	MountSecretEngine(ctx context.Context, path, engineType, description string, options map[string]string) error
	UnmountSecretEngine(ctx context.Context, path string) error

	ListPolicies(ctx context.Context) ([]string, error)
	ReadPolicy(ctx context.Context, name string) (string, error)
	WritePolicy(ctx context.Context, name, hcl string) error
	DeletePolicy(ctx context.Context, name string) error

	Read(ctx context.Context, path string) (map[string]interface{}, error)
	Write(ctx context.Context, path string, data map[string]interface{}) error
	Delete(ctx context.Context, path string) error
}

var _ ControlPlane = (*vault.Client)(nil)

// Options configures an Engine.
type Options struct {
	// Shares and Threshold are used when initializing Vault
	Shares    int
	Threshold int

	// KubeRole and KubeAuthPath are used to log in with the local service
	// account token when no bootstrap credential is held
	KubeRole     string
	KubeAuthPath string

	// Token is an operator credential held from the start, used against an
	// already initialized Vault
	Token string

	// LocalToken reads the local service account token
	LocalToken func() (string, error)

	// Identity resolves token reviewer material for kubernetes auth
	Identity token.IdentityLookup

	// Reviewer is the default token reviewer service account
	Reviewer token.ServiceAccountRef

	// Cluster is the Kubernetes API server Vault should call back to
	Cluster token.ClusterInfo

	// KeysDeliveredTo names where KeysGenerated subscribers send the shares
	KeysDeliveredTo string

	// Bus receives key and entry events; may be nil
	Bus *events.EventBus

	// Readiness is the call polled before construction completes
	Readiness probe.Call

	// Probe configures the readiness probe; InitialDelay is forced to
	// ReadinessDelay
	Probe        probe.Config
	ProbeOptions []probe.Option

	// Target names the probed endpoint in logs and errors
	Target string

	// DriftMode is the default for entries that set none
	DriftMode driftmode.Mode
}

// Engine is the reconciliation engine.
type Engine struct {
	mu sync.Mutex

	client  ControlPlane
	desired *v1alpha1.DesiredConfig
	opts    Options
	roles   map[v1alpha1.RoleType]RoleKind
	log     logr.Logger

	rootToken string
}

// New validates the options, waits for Vault to answer its readiness
// endpoint and returns an engine. It fails with ValidationError for bad
// share settings and NotReadyError when the probe does not pass.
func New(ctx context.Context, client ControlPlane, desired *v1alpha1.DesiredConfig, opts Options, log logr.Logger) (*Engine, error) {
	if err := config.ValidateShares(opts.Shares, opts.Threshold); err != nil {
		return nil, err
	}
	if desired == nil {
		desired = v1alpha1.NewDesiredConfig()
	}
	if opts.KubeAuthPath == "" {
		opts.KubeAuthPath = config.DefaultKubeAuthPath
	}

	e := &Engine{
		client:  client,
		desired: desired,
		opts:    opts,
		roles:   RoleKinds(),
		log:     log.WithName("engine"),

		rootToken: opts.Token,
	}

	if opts.Readiness != nil {
		cfg := opts.Probe.WithDefaults()
		cfg.InitialDelay = ReadinessDelay
		p := probe.New(opts.Target, cfg, e.log, opts.ProbeOptions...)
		ok, err := p.Run(ctx, opts.Readiness)
		if err != nil || !ok {
			return nil, infraerrors.NewNotReadyError(opts.Target, err)
		}
	}

	e.log.Info("engine ready", "target", opts.Target)
	return e, nil
}

// Desired returns the configuration bundle the engine reconciles against.
func (e *Engine) Desired() *v1alpha1.DesiredConfig {
	return e.desired
}

// Initialize initializes and unseals Vault. It returns false without error
// when Vault was already initialized; no new shares are generated then.
func (e *Engine) Initialize(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := logger.WithOperation(e.log, logger.OpInit)

	if err := config.ValidateShares(e.opts.Shares, e.opts.Threshold); err != nil {
		return false, err
	}

	initialized, err := e.client.InitStatus(ctx)
	if err != nil {
		return false, err
	}
	if initialized {
		log.Info("vault is already initialized")
		return false, nil
	}

	log.Info("initializing vault", "shares", e.opts.Shares, "threshold", e.opts.Threshold)
	res, err := e.client.Initialize(ctx, e.opts.Shares, e.opts.Threshold)
	if err != nil {
		return false, fmt.Errorf("failed to initialize vault: %w", err)
	}
	e.rootToken = res.RootToken

	e.publish(ctx, events.NewKeysGenerated(res.Keys, e.opts.Threshold))
	logger.LogKeysBanner(log, len(res.Keys), e.opts.Threshold, e.opts.KeysDeliveredTo)

	if _, err := e.unseal(ctx, res.Keys); err != nil {
		return false, err
	}

	initialized, sealed, err := e.client.SealStatus(ctx)
	if err != nil {
		return false, err
	}
	return initialized && !sealed, nil
}

// Unseal submits shares until Vault reports unsealed. It returns whether
// Vault is unsealed afterwards.
func (e *Engine) Unseal(ctx context.Context, keys []string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unseal(ctx, keys)
}

func (e *Engine) unseal(ctx context.Context, keys []string) (bool, error) {
	log := logger.WithOperation(e.log, logger.OpUnseal)

	_, sealed, err := e.client.SealStatus(ctx)
	if err != nil {
		return false, err
	}
	for i, key := range keys {
		if !sealed {
			break
		}
		sealed, err = e.client.Unseal(ctx, key)
		if err != nil {
			return false, fmt.Errorf("failed to submit unseal share %d: %w", i+1, err)
		}
		log.V(1).Info("submitted unseal share", "share", i+1, "sealed", sealed)
	}
	if sealed {
		log.Info("vault is still sealed", "submitted", len(keys))
	} else {
		log.Info("vault is unsealed")
	}
	return !sealed, nil
}

// Authenticate establishes the session. A held bootstrap credential is used
// directly; otherwise the local service account token is exchanged through
// kubernetes auth when that backend is enabled in the desired bundle.
func (e *Engine) Authenticate(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.authenticate(ctx)
}

func (e *Engine) authenticate(ctx context.Context) (bool, error) {
	log := logger.WithOperation(e.log, logger.OpLogin)

	if e.rootToken != "" {
		if err := e.client.AuthenticateToken(e.rootToken); err != nil {
			return false, err
		}
		return e.client.VerifyAuthenticated(ctx)
	}

	if e.client.IsAuthenticated() {
		ok, err := e.client.VerifyAuthenticated(ctx)
		if err != nil || ok {
			return ok, err
		}
	}

	if e.opts.LocalToken == nil || !e.desired.IsAuthEnabled(e.opts.KubeAuthPath) {
		log.V(1).Info("no credential available")
		return false, nil
	}

	jwt, err := e.opts.LocalToken()
	if err != nil {
		return false, fmt.Errorf("failed to read local service account token: %w", err)
	}
	if err := e.client.AuthenticateKubernetes(ctx, e.opts.KubeRole, e.opts.KubeAuthPath, jwt); err != nil {
		log.Info("kubernetes login failed", logger.KeyError, err.Error())
		return false, nil
	}
	log.Info("authenticated with kubernetes auth", "role", e.opts.KubeRole, "path", e.opts.KubeAuthPath)
	return e.client.IsAuthenticated(), nil
}

func (e *Engine) requireAuth(ctx context.Context, op string) error {
	ok, err := e.authenticate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return infraerrors.NewNotAuthenticatedError(op)
	}
	return nil
}

// IsRunning reports whether Vault is initialized and unsealed. The session
// must already be authenticated.
func (e *Engine) IsRunning(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.client.IsAuthenticated() {
		return false, infraerrors.NewNotAuthenticatedError("is running")
	}
	initialized, sealed, err := e.client.SealStatus(ctx)
	if err != nil {
		return false, err
	}
	return initialized && !sealed, nil
}

// IsSealed reports whether Vault is sealed. The session must already be
// authenticated.
func (e *Engine) IsSealed(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.client.IsAuthenticated() {
		return false, infraerrors.NewNotAuthenticatedError("is sealed")
	}
	_, sealed, err := e.client.SealStatus(ctx)
	if err != nil {
		return false, err
	}
	return sealed, nil
}

// HoldsCredential reports whether the bootstrap credential is still held.
func (e *Engine) HoldsCredential() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rootToken != ""
}

// VoidCredential drops the bootstrap credential and the session token.
func (e *Engine) VoidCredential() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.void()
}

func (e *Engine) void() {
	e.rootToken = ""
	e.client.Void()
	logger.WithOperation(e.log, logger.OpVoid).Info("credential voided")
}

// Close voids the credential and releases the session transport.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.void()
	e.client.Close()
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.opts.Bus == nil {
		return
	}
	if err := e.opts.Bus.Publish(ctx, event); err != nil {
		e.log.Error(err, "event handler failed", "type", event.Type())
	}
}
