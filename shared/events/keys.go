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

// KeysGeneratedType is the event type for new unseal shares.
const KeysGeneratedType = "vault.keys_generated"

// KeysGenerated is published once after Vault is initialized. It is the only
// place the unseal shares leave the engine; handlers must never log Keys.
type KeysGenerated struct {
	BaseEvent
	// Keys are the base64 encoded unseal shares
	Keys []string
	// Threshold is the number of shares needed to unseal
	Threshold int
}

// Type returns the event type identifier.
func (e KeysGenerated) Type() string {
	return KeysGeneratedType
}

// NewKeysGenerated creates a KeysGenerated event. The slice is copied.
func NewKeysGenerated(keys []string, threshold int) KeysGenerated {
	return KeysGenerated{
		BaseEvent: NewBaseEvent(KeysGeneratedType),
		Keys:      append([]string(nil), keys...),
		Threshold: threshold,
	}
}
