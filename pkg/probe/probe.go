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

// Package probe implements a threshold-based health probe that latches
// closed after sustained failure.
package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/panteparak/vault-config/pkg/metrics"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

const (
	// DefaultFailureThreshold is the number of failed calls that latches the probe
	DefaultFailureThreshold = 2

	// DefaultSuccessThreshold is the number of successful calls that passes the probe
	DefaultSuccessThreshold = 1

	// DefaultInitialDelay is the delay before the first call
	DefaultInitialDelay = 5 * time.Second

	// DefaultPeriod is the delay between calls
	DefaultPeriod = 5 * time.Second

	// DefaultTimeout bounds each individual call
	DefaultTimeout = 3 * time.Second
)

// Config holds the probe thresholds and timings.
type Config struct {
	// FailureThreshold is the number of failed calls after which the probe latches closed
	FailureThreshold int

	// SuccessThreshold is the number of successful calls required to pass
	SuccessThreshold int

	// InitialDelay is slept once before the first call
	InitialDelay time.Duration

	// Period is slept after every iteration that did not pass the probe
	Period time.Duration

	// Timeout bounds each individual call
	Timeout time.Duration
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: DefaultFailureThreshold,
		SuccessThreshold: DefaultSuccessThreshold,
		InitialDelay:     DefaultInitialDelay,
		Period:           DefaultPeriod,
		Timeout:          DefaultTimeout,
	}
}

// WithDefaults fills zero thresholds and a zero timeout with defaults.
// Zero delays are kept as they are meaningful.
func (c Config) WithDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Call performs one readiness check. It reports success only for a
// recognized-success response; a false result or an error is a failure tick.
type Call func(ctx context.Context) (bool, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Probe.
type Option func(*Probe)

// WithSleep replaces the sleep implementation, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(p *Probe) {
		p.sleep = sleep
	}
}

// Probe runs a Call until either threshold is reached. Once the failure
// threshold is hit the probe stays closed until it is recreated.
type Probe struct {
	mu        sync.Mutex
	target    string
	config    Config
	failures  int
	successes int
	closed    bool
	sleep     SleepFunc
	log       logr.Logger
}

// New creates a probe for the named target.
func New(target string, config Config, log logr.Logger, opts ...Option) *Probe {
	p := &Probe{
		target: target,
		config: config.WithDefaults(),
		sleep:  sleepContext,
		log:    log.WithName("probe").WithValues("target", target),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the probe. It returns true once SuccessThreshold calls have
// succeeded. Reaching FailureThreshold first latches the probe and returns a
// HealthProbeFailedError. A latched probe returns false without calling.
func (p *Probe) Run(ctx context.Context, call Call) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, infraerrors.NewHealthProbeFailedError(p.target, p.failures, true)
	}

	p.log.V(1).Info("trying to perform health probe", "initialDelay", p.config.InitialDelay.String())
	if err := p.sleep(ctx, p.config.InitialDelay); err != nil {
		return false, err
	}

	for {
		ok := p.invoke(ctx, call)
		metrics.IncrementProbeCheck(ok)

		if ok {
			p.successes++
		} else {
			p.failures++
		}
		p.log.V(2).Info("probe tick", "ok", ok, "failures", p.failures, "successes", p.successes)

		if p.failures >= p.config.FailureThreshold {
			p.closed = true
			metrics.SetProbeLatched(true)
			p.log.Info("health probe latched closed", "failures", p.failures)
			return false, infraerrors.NewHealthProbeFailedError(p.target, p.failures, false)
		}
		if p.successes >= p.config.SuccessThreshold {
			metrics.SetProbeLatched(false)
			return true, nil
		}

		if err := p.sleep(ctx, p.config.Period); err != nil {
			return false, err
		}
	}
}

func (p *Probe) invoke(ctx context.Context, call Call) (ok bool) {
	callCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error(fmt.Errorf("%v", r), "probe call panicked")
			ok = false
		}
	}()

	success, err := call(callCtx)
	if err != nil {
		p.log.V(2).Info("probe call failed", "error", err.Error())
		return false
	}
	return success
}

// IsClosed reports whether the probe has latched closed.
func (p *Probe) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Failures returns the number of failed calls so far.
func (p *Probe) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Successes returns the number of successful calls so far.
func (p *Probe) Successes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.successes
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
