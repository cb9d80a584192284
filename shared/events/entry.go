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

// Entry event type constants.
const (
	EntryAppliedType = "entry.applied"
	EntryRemovedType = "entry.removed"
)

// EntryApplied is published after an entry was created or updated in Vault.
type EntryApplied struct {
	BaseEvent
	// Entry identifies the entry
	Entry EntryInfo
	// Created is false when an existing entry was updated
	Created bool
}

// Type returns the event type identifier.
func (e EntryApplied) Type() string {
	return EntryAppliedType
}

// NewEntryApplied creates an EntryApplied event.
func NewEntryApplied(entry EntryInfo, created bool) EntryApplied {
	return EntryApplied{
		BaseEvent: NewBaseEvent(EntryAppliedType),
		Entry:     entry,
		Created:   created,
	}
}

// EntryRemoved is published after a disabled entry was removed from Vault.
type EntryRemoved struct {
	BaseEvent
	// Entry identifies the entry
	Entry EntryInfo
}

// Type returns the event type identifier.
func (e EntryRemoved) Type() string {
	return EntryRemovedType
}

// NewEntryRemoved creates an EntryRemoved event.
func NewEntryRemoved(entry EntryInfo) EntryRemoved {
	return EntryRemoved{
		BaseEvent: NewBaseEvent(EntryRemovedType),
		Entry:     entry,
	}
}
