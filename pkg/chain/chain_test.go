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

package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

func TestRun_ResolveNextReject(t *testing.T) {
	errE := errors.New("E")
	var seen []string
	var handled []error
	dRan := false

	c := Seed("X", logr.Discard())
	c.Then(func(_ context.Context, v string) Result[string] {
		seen = append(seen, "a:"+v)
		return Resolve("Y")
	}).Then(func(_ context.Context, v string) Result[string] {
		seen = append(seen, "b:"+v)
		return Next("Z")
	}).Then(func(_ context.Context, v string) Result[string] {
		seen = append(seen, "c:"+v)
		return Reject[string](errE)
	}).Then(func(_ context.Context, v string) Result[string] {
		dRan = true
		return Next(v)
	})

	if err := c.OnError(func(err error) { handled = append(handled, err) }); err != nil {
		t.Fatalf("OnError() error = %v", err)
	}

	value, err := c.Run(context.Background())
	if !errors.Is(err, errE) {
		t.Errorf("Run() error = %v, want %v", err, errE)
	}
	if dRan {
		t.Error("stage d must not run after a rejection")
	}
	if len(handled) != 1 || !errors.Is(handled[0], errE) {
		t.Errorf("error handler calls = %v, want exactly [E]", handled)
	}
	if value != "Z" {
		t.Errorf("value = %q, want %q", value, "Z")
	}
	want := []string{"a:X", "b:Y", "c:Z"}
	for i := range want {
		if i >= len(seen) || seen[i] != want[i] {
			t.Fatalf("stage inputs = %v, want %v", seen, want)
		}
	}
	if !c.Rejected() {
		t.Error("expected chain to be rejected")
	}
}

func TestRun_AllStagesPass(t *testing.T) {
	c := Seed(0, logr.Discard())
	for i := 0; i < 5; i++ {
		c.Then(func(_ context.Context, v int) Result[int] { return Next(v + 1) })
	}
	handlerCalled := false
	_ = c.OnError(func(error) { handlerCalled = true })

	value, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if value != 5 {
		t.Errorf("value = %d, want 5", value)
	}
	if handlerCalled {
		t.Error("error handler must not be called when no stage rejects")
	}
	if c.Rejected() {
		t.Error("expected chain not to be rejected")
	}
}

func TestRun_PanicIsRejection(t *testing.T) {
	var handled error
	c := Seed(1, logr.Discard())
	c.Then(func(context.Context, int) Result[int] { panic("kaboom") })
	_ = c.OnError(func(err error) { handled = err })

	_, err := c.Run(context.Background())
	if err == nil || handled == nil {
		t.Fatal("expected a panicking stage to reject the chain")
	}
}

func TestRun_WithoutHandler(t *testing.T) {
	c := Seed(1, logr.Discard())
	c.Then(func(context.Context, int) Result[int] { return Reject[int](nil) })

	if _, err := c.Run(context.Background()); err == nil {
		t.Error("expected rejection error without a handler")
	}
}

func TestRun_SingleUse(t *testing.T) {
	c := Seed(1, logr.Discard())
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	_, err := c.Run(context.Background())
	if !infraerrors.IsChainMisuseError(err) {
		t.Errorf("second Run() error = %v, want ChainMisuseError", err)
	}
}

func TestOnError_SecondRegistrationFails(t *testing.T) {
	c := Seed(1, logr.Discard())
	first := 0
	if err := c.OnError(func(error) { first++ }); err != nil {
		t.Fatalf("first OnError() error = %v", err)
	}

	err := c.OnError(func(error) {})
	if !infraerrors.IsChainMisuseError(err) {
		t.Fatalf("second OnError() error = %v, want ChainMisuseError", err)
	}

	c.Then(func(context.Context, int) Result[int] { return Reject[int](errors.New("x")) })
	_, _ = c.Run(context.Background())
	if first != 1 {
		t.Errorf("first handler calls = %d, want 1", first)
	}
}

func TestOnError_NilHandler(t *testing.T) {
	c := Seed(1, logr.Discard())
	if err := c.OnError(nil); !infraerrors.IsChainMisuseError(err) {
		t.Errorf("OnError(nil) error = %v, want ChainMisuseError", err)
	}
}
