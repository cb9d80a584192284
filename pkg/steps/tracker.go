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

// Package steps tracks the state of the named bootstrap workflow steps and
// serializes them into the progress payload broadcast to observers.
package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// Name identifies a workflow step.
type Name string

// Workflow steps, in declared order.
const (
	Init   Name = "init"
	Up     Name = "up"
	Auth   Name = "auth"
	Secret Name = "secret"
	Policy Name = "policy"
	Role   Name = "role"
	Clean  Name = "clean"
)

// Order is the fixed declaration order of the bootstrap steps.
var Order = []Name{Init, Up, Auth, Secret, Policy, Role, Clean}

// State is the progress state of a step.
type State string

const (
	None     State = "none"
	Active   State = "active"
	Finished State = "finished"
	Failed   State = "failed"
)

// Step is a single tracked step.
type Step struct {
	Name  Name   `json:"-"`
	State State  `json:"state"`
	Trace string `json:"trace,omitempty"`
}

// Tracker maps step names to their state, preserving declaration order.
// A fresh Tracker is created for every workflow run.
type Tracker struct {
	mu    sync.RWMutex
	order []Name
	steps map[Name]*Step
	last  Name
}

// NewTracker creates a tracker with the given steps declared in order.
func NewTracker(names ...Name) *Tracker {
	t := &Tracker{
		steps: make(map[Name]*Step, len(names)),
	}
	for _, name := range names {
		// Duplicates in the seed list are ignored.
		_ = t.Declare(name)
	}
	return t
}

// Declare registers a step in state None and appends it to the order.
func (t *Tracker) Declare(name Name) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.steps[name]; ok {
		return fmt.Errorf("step %q already declared", name)
	}
	t.order = append(t.order, name)
	t.steps[name] = &Step{Name: name, State: None}
	return nil
}

// Transition moves the named step to state and remembers it as last touched.
// States only advance none -> active -> {finished, failed}.
func (t *Tracker) Transition(name Name, state State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	step, ok := t.steps[name]
	if !ok {
		return fmt.Errorf("step %q is not declared", name)
	}
	if !CanTransition(step.State, state) {
		return fmt.Errorf("step %q cannot move from %s to %s", name, step.State, state)
	}
	step.State = state
	step.Trace = ""
	t.last = name
	return nil
}

// FailLast moves the last touched step to state and attaches trace.
func (t *Tracker) FailLast(state State, trace string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == "" {
		return fmt.Errorf("no step has been touched yet")
	}
	step := t.steps[t.last]
	if !CanTransition(step.State, state) {
		return fmt.Errorf("step %q cannot move from %s to %s", step.Name, step.State, state)
	}
	step.State = state
	step.Trace = trace
	return nil
}

// Last returns the most recently touched step name, or "" if none.
func (t *Tracker) Last() Name {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Get returns a copy of the named step.
func (t *Tracker) Get(name Name) (Step, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	step, ok := t.steps[name]
	if !ok {
		return Step{}, false
	}
	return *step, true
}

// Steps returns copies of all steps in declaration order.
func (t *Tracker) Steps() []Step {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Step, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.steps[name])
	}
	return out
}

// Active returns the names of steps currently in the Active state.
func (t *Tracker) Active() []Name {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var active []Name
	for _, name := range t.order {
		if t.steps[name].State == Active {
			active = append(active, name)
		}
	}
	return active
}

// Snapshot serializes the step map as a JSON object whose keys follow the
// declaration order: {"init": {"state": "finished"}, "up": {...}, ...}.
func (t *Tracker) Snapshot() ([]byte, error) {
	return Encode(t.Steps())
}

// Encode writes steps as an ordered JSON object.
func Encode(steps []Step) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, step := range steps {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(step.Name))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(step)
		if err != nil {
			return nil, fmt.Errorf("failed to encode step %q: %w", step.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CanTransition reports whether from -> to is a forward move.
func CanTransition(from, to State) bool {
	switch from {
	case None:
		return to == Active
	case Active:
		return to == Finished || to == Failed
	default:
		return false
	}
}
