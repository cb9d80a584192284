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

// Package events provides the in-process event bus. The workflow driver and
// the reconciliation engine publish progress, key and entry events; the
// broadcast hub, chat client and status server subscribe without direct
// coupling.
package events

import "time"

// Event is anything published on the bus. Type keys the subscriptions and
// must not depend on field values.
type Event interface {
	Type() string
	Timestamp() time.Time
}

// BaseEvent carries the type and time of an event. Concrete events embed it
// and override Type with a constant.
type BaseEvent struct {
	EventType  string
	OccurredAt time.Time
}

func (e BaseEvent) Type() string { return e.EventType }

func (e BaseEvent) Timestamp() time.Time { return e.OccurredAt }

// NewBaseEvent stamps eventType with the current time.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{EventType: eventType, OccurredAt: time.Now()}
}

// EntryInfo identifies the declarative entry an event refers to.
type EntryInfo struct {
	// Kind is the entry kind (auth, secret, policy, role)
	Kind string
	// Name is the entry name from the configuration bundle
	Name string
	// Path is the Vault path that was written or removed
	Path string
}
