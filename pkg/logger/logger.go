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

// Package logger provides structured logging utilities for vault-config.
// It builds the process-wide logr handle and defines standard log fields and
// helper functions for consistent logging across the engine, the workflow
// driver and the servers.
package logger

import (
	"context"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Standard log field keys.
const (
	// KeyStep identifies the workflow step being executed
	KeyStep = "step"

	// KeyEntryKind identifies the kind of declarative entry (auth, secret, policy, role)
	KeyEntryKind = "entryKind"

	// KeyEntry identifies the declarative entry name
	KeyEntry = "entry"

	// KeyVaultPath identifies the Vault path being accessed
	KeyVaultPath = "vaultPath"

	// KeyOperation identifies the operation being performed (create, update, delete)
	KeyOperation = "operation"

	// KeyDuration records the time taken for an operation
	KeyDuration = "duration"

	// KeyRunID provides a unique identifier for tracing a workflow run
	KeyRunID = "runID"

	// KeyError includes error details
	KeyError = "error"
)

// Operation types for logging
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpReconcile = "reconcile"
	OpInit      = "init"
	OpUnseal    = "unseal"
	OpLogin     = "login"
	OpVoid      = "void"
)

// New builds the process logger from zap options. Callers bind opts to their
// flag set with opts.BindFlags before parsing.
func New(opts *zap.Options) logr.Logger {
	return zap.New(zap.UseFlagOptions(opts))
}

// WorkflowLogger wraps a logr.Logger with the start time of a workflow run.
type WorkflowLogger struct {
	logr.Logger
	startTime time.Time
}

// NewWorkflowLogger creates a logger with standard workflow context.
// This should be called at the beginning of each workflow run.
func NewWorkflowLogger(base logr.Logger, runID string) *WorkflowLogger {
	return &WorkflowLogger{
		Logger:    base.WithName("workflow").WithValues(KeyRunID, runID),
		startTime: time.Now(),
	}
}

// WithStep returns a new logger with step context added.
func (w *WorkflowLogger) WithStep(step string) *WorkflowLogger {
	return &WorkflowLogger{
		Logger:    w.Logger.WithValues(KeyStep, step),
		startTime: w.startTime,
	}
}

// WithOperation returns a new logger with operation context added.
func (w *WorkflowLogger) WithOperation(op string) *WorkflowLogger {
	return &WorkflowLogger{
		Logger:    w.Logger.WithValues(KeyOperation, op),
		startTime: w.startTime,
	}
}

// Duration returns the elapsed time since the logger was created.
func (w *WorkflowLogger) Duration() time.Duration {
	return time.Since(w.startTime)
}

// InfoWithDuration logs an info message with the elapsed duration.
func (w *WorkflowLogger) InfoWithDuration(msg string, keysAndValues ...interface{}) {
	w.Info(msg, append(keysAndValues, KeyDuration, w.Duration().String())...)
}

// ErrorWithDuration logs an error with the elapsed duration.
func (w *WorkflowLogger) ErrorWithDuration(err error, msg string, keysAndValues ...interface{}) {
	w.Error(err, msg, append(keysAndValues, KeyDuration, w.Duration().String())...)
}

// V returns a logger at the specified verbosity level.
func (w *WorkflowLogger) V(level int) *WorkflowLogger {
	return &WorkflowLogger{
		Logger:    w.Logger.V(level),
		startTime: w.startTime,
	}
}

// LogStepStart logs the start of a step.
func (w *WorkflowLogger) LogStepStart() {
	w.V(1).Info("starting step")
}

// LogRunSuccess logs successful completion of a run.
func (w *WorkflowLogger) LogRunSuccess() {
	w.InfoWithDuration("workflow completed successfully")
}

// LogRunError logs a failed run.
func (w *WorkflowLogger) LogRunError(err error) {
	w.ErrorWithDuration(err, "workflow failed")
}

// LogVaultOperation logs a Vault operation with path and operation type.
func LogVaultOperation(l logr.Logger, op, path string) {
	l.V(1).Info("performing vault operation", KeyOperation, op, KeyVaultPath, path)
}

// LogVaultOperationError logs a Vault operation error.
func LogVaultOperationError(l logr.Logger, err error, op, path string) {
	l.Error(err, "vault operation failed", KeyOperation, op, KeyVaultPath, path)
}

const bannerRule = "=================================================================="

// LogKeysBanner logs a deliberately loud, delimited warning that unseal
// shares were generated. The shares themselves are never passed to the logger.
func LogKeysBanner(l logr.Logger, shares, threshold int, deliveredTo string) {
	lines := []string{
		bannerRule,
		"VAULT HAS BEEN INITIALIZED",
		"unseal shares were generated and will not be shown again",
	}
	if deliveredTo != "" {
		lines = append(lines, "shares were delivered to "+deliveredTo)
	} else {
		lines = append(lines, "no delivery channel configured, shares are only held by the engine")
	}
	lines = append(lines, bannerRule)
	l.Info(strings.Join(lines, "\n"), "shares", shares, "threshold", threshold)
}

// FromContext extracts a logger from context with standard fields.
// Falls back to a background logger if none is found.
func FromContext(ctx context.Context, keysAndValues ...interface{}) logr.Logger {
	return log.FromContext(ctx, keysAndValues...)
}

// IntoContext stores l in ctx.
func IntoContext(ctx context.Context, l logr.Logger) context.Context {
	return log.IntoContext(ctx, l)
}

// WithStep adds step context to an existing logger.
func WithStep(l logr.Logger, step string) logr.Logger {
	return l.WithValues(KeyStep, step)
}

// WithEntry adds entry kind and name context to an existing logger.
func WithEntry(l logr.Logger, kind, name string) logr.Logger {
	return l.WithValues(KeyEntryKind, kind, KeyEntry, name)
}

// WithOperation adds operation context to an existing logger.
func WithOperation(l logr.Logger, op string) logr.Logger {
	return l.WithValues(KeyOperation, op)
}

// WithVaultPath adds Vault path context to an existing logger.
func WithVaultPath(l logr.Logger, path string) logr.Logger {
	return l.WithValues(KeyVaultPath, path)
}

// WithDuration adds duration context to an existing logger.
func WithDuration(l logr.Logger, d time.Duration) logr.Logger {
	return l.WithValues(KeyDuration, d.String())
}
