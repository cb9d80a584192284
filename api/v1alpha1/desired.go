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
package v1alpha1

// DesiredConfig is the immutable bundle of declarative entries loaded at
// startup. Maps are keyed by entry name.
type DesiredConfig struct {
	AuthMethods   map[string]*AuthMethod
	SecretEngines map[string]*SecretEngine
	Policies      map[string]*Policy
	Roles         map[string]*Role
}

// NewDesiredConfig returns an empty bundle.
func NewDesiredConfig() *DesiredConfig {
	return &DesiredConfig{
		AuthMethods:   map[string]*AuthMethod{},
		SecretEngines: map[string]*SecretEngine{},
		Policies:      map[string]*Policy{},
		Roles:         map[string]*Role{},
	}
}

// Validate checks every entry and returns the first error.
func (d *DesiredConfig) Validate() error {
	for _, name := range SortedKeys(d.AuthMethods) {
		if err := d.AuthMethods[name].Validate(); err != nil {
			return err
		}
	}
	for _, name := range SortedKeys(d.SecretEngines) {
		if err := d.SecretEngines[name].Validate(); err != nil {
			return err
		}
	}
	for _, name := range SortedKeys(d.Policies) {
		if err := d.Policies[name].Validate(); err != nil {
			return err
		}
	}
	for _, name := range SortedKeys(d.Roles) {
		if err := d.Roles[name].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of entries of kind.
func (d *DesiredConfig) Count(kind EntryKind) int {
	switch kind {
	case KindAuthMethod:
		return len(d.AuthMethods)
	case KindSecretEngine:
		return len(d.SecretEngines)
	case KindPolicy:
		return len(d.Policies)
	case KindRole:
		return len(d.Roles)
	}
	return 0
}

// IsAuthEnabled reports whether an enabled auth entry mounts path.
func (d *DesiredConfig) IsAuthEnabled(path string) bool {
	for _, a := range d.AuthMethods {
		if a.Enabled && a.MountPath() == NormalizePath(path) {
			return true
		}
	}
	return false
}

// AuthByPath returns the auth entry mounted at path, if any.
func (d *DesiredConfig) AuthByPath(path string) (*AuthMethod, bool) {
	for _, name := range SortedKeys(d.AuthMethods) {
		if a := d.AuthMethods[name]; a.MountPath() == NormalizePath(path) {
			return a, true
		}
	}
	return nil, false
}
