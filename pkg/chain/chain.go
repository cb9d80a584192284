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

// Package chain provides a sequential stage runner with resolve/reject
// short-circuiting and a single error handler.
//
// # Usage
//
//	c := chain.Seed(true, log)
//	c.Then(initStage).Then(upStage)
//	if err := c.OnError(recordFailure); err != nil {
//	    return err // second handler registration
//	}
//	value, err := c.Run(ctx)
//
// Each stage receives the current value and returns a Result:
// Next(v) or Resolve(v) continue with v, Reject(err) stops the chain and
// hands err to the error handler. A panicking stage is treated as a rejection.
//
// A Chain is single use and must not be shared between goroutines.
package chain

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

type outcome int

const (
	outcomeNext outcome = iota
	outcomeResolve
	outcomeReject
)

// Result is the outcome of a single stage.
type Result[T any] struct {
	outcome outcome
	value   T
	err     error
}

// Next passes v on as the new current value.
func Next[T any](v T) Result[T] {
	return Result[T]{outcome: outcomeNext, value: v}
}

// Resolve explicitly resolves the stage with v.
func Resolve[T any](v T) Result[T] {
	return Result[T]{outcome: outcomeResolve, value: v}
}

// Reject stops the chain with err.
func Reject[T any](err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("stage rejected without a reason")
	}
	return Result[T]{outcome: outcomeReject, err: err}
}

// Rejected reports whether the result stops the chain.
func (r Result[T]) Rejected() bool {
	return r.outcome == outcomeReject
}

// Err returns the rejection error, or nil.
func (r Result[T]) Err() error {
	return r.err
}

// Value returns the produced value.
func (r Result[T]) Value() T {
	return r.value
}

// Stage is a single step of the chain.
type Stage[T any] func(ctx context.Context, value T) Result[T]

// Chain runs queued stages in order over a shared current value.
type Chain[T any] struct {
	stages   []Stage[T]
	value    T
	rejected bool
	onError  func(error)
	ran      bool
	log      logr.Logger
}

// Seed creates a chain whose current value is initial.
func Seed[T any](initial T, log logr.Logger) *Chain[T] {
	return &Chain[T]{
		value: initial,
		log:   log.WithName("chain"),
	}
}

// Then appends a stage.
func (c *Chain[T]) Then(stage Stage[T]) *Chain[T] {
	c.stages = append(c.stages, stage)
	return c
}

// OnError registers the single error handler. Registering a second handler
// returns a ChainMisuseError and leaves the first one in place.
func (c *Chain[T]) OnError(handler func(error)) error {
	if handler == nil {
		return infraerrors.NewChainMisuseError("error handler must not be nil")
	}
	if c.onError != nil {
		return infraerrors.NewChainMisuseError("error handler already registered")
	}
	c.onError = handler
	return nil
}

// Run executes the stages in declaration order. On the first rejection the
// error handler is invoked exactly once and the remaining stages are skipped.
// The returned error is the rejection cause, or nil if every stage passed.
func (c *Chain[T]) Run(ctx context.Context) (T, error) {
	if c.ran {
		return c.value, infraerrors.NewChainMisuseError("chain has already been run")
	}
	c.ran = true

	for i, stage := range c.stages {
		result := c.invoke(ctx, i, stage)
		if result.Rejected() {
			c.rejected = true
			c.log.Error(result.Err(), "stage rejected", "stage", i)
			if c.onError != nil {
				c.onError(result.Err())
			}
			return c.value, result.Err()
		}
		c.value = result.Value()
	}

	return c.value, nil
}

// Rejected reports whether the last run was rejected.
func (c *Chain[T]) Rejected() bool {
	return c.rejected
}

// Value returns the current value.
func (c *Chain[T]) Value() T {
	return c.value
}

// Len returns the number of queued stages.
func (c *Chain[T]) Len() int {
	return len(c.stages)
}

func (c *Chain[T]) invoke(ctx context.Context, index int, stage Stage[T]) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = Reject[T](fmt.Errorf("stage %d panicked: %v", index, r))
		}
	}()
	return stage(ctx, c.value)
}
