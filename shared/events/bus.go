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

package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/go-logr/logr"
)

// Handler processes events of type T.
type Handler[T Event] func(ctx context.Context, event T) error

// subscription is a handler with its concrete event type erased.
type subscription struct {
	id     uint64
	invoke func(ctx context.Context, event Event) error
}

// EventBus delivers published events to the handlers subscribed to their
// type, in subscription order. It is safe for concurrent use.
type EventBus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger logr.Logger
}

// NewEventBus creates an event bus.
func NewEventBus(logger logr.Logger) *EventBus {
	return &EventBus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for events of type T and returns a function
// that removes it again.
func Subscribe[T Event](bus *EventBus, handler Handler[T]) (unsubscribe func()) {
	var zero T
	eventType := zero.Type()

	invoke := func(ctx context.Context, event Event) error {
		e, ok := event.(T)
		if !ok {
			return fmt.Errorf("event %s has type %T, want %T", eventType, event, zero)
		}
		return handler(ctx, e)
	}

	bus.mu.Lock()
	bus.nextID++
	id := bus.nextID
	bus.subs[eventType] = append(bus.subs[eventType], subscription{id: id, invoke: invoke})
	bus.mu.Unlock()

	bus.logger.V(1).Info("handler subscribed", "eventType", eventType)
	return func() { bus.remove(eventType, id) }
}

func (b *EventBus) remove(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[eventType]) == 0 {
		delete(b.subs, eventType)
	}
}

// Unsubscribe removes every handler for eventType.
func (b *EventBus) Unsubscribe(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, eventType)
	b.logger.V(1).Info("handlers unsubscribed", "eventType", eventType)
}

// Publish calls every handler subscribed to the event's type. A failing or
// panicking handler does not stop the others; their errors are joined.
func (b *EventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := b.subs[event.Type()]
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.logger.V(2).Info("no handlers for event", "type", event.Type())
		return nil
	}
	b.logger.V(1).Info("publishing event", "type", event.Type(), "handlerCount", len(subs))

	var errs []error
	for i, s := range subs {
		if err := call(ctx, s, event); err != nil {
			b.logger.Error(err, "handler failed", "type", event.Type(), "handlerIndex", i)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func call(ctx context.Context, s subscription, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.Type(), r)
		}
	}()
	return s.invoke(ctx, event)
}

// HandlerCount returns the number of handlers registered for eventType.
func (b *EventBus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs[eventType])
}

// EventTypes returns the event types with at least one handler, sorted.
func (b *EventBus) EventTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]string, 0, len(b.subs))
	for eventType := range b.subs {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}
