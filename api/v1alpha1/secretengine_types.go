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

// SecretEngine is a secrets engine entry of secret/*.hcl:
//
//	secret "kv" {
//	  enabled = true
//	  type    = "kv-v2"
//	}
type SecretEngine struct {
	// Name is the block label
	Name string `hcl:",key"`

	// Enabled controls whether the engine should be mounted
	Enabled bool `hcl:"enabled"`

	// Type of the engine, e.g. kv-v2, transit, pki
	Type string `hcl:"type"`

	// Path is the mount path; defaults to the entry name
	Path string `hcl:"path"`

	// Description shown in Vault
	Description string `hcl:"description"`

	// Options passed to the mount
	Options map[string]string `hcl:"options"`
}

// systemMounts are managed by Vault itself and never touched.
var systemMounts = map[string]bool{
	"sys":       true,
	"identity":  true,
	"cubbyhole": true,
}

// IsSystemMount reports whether path belongs to Vault itself.
func IsSystemMount(path string) bool {
	return systemMounts[NormalizePath(path)]
}

// MountPath returns the normalized mount path.
func (s *SecretEngine) MountPath() string {
	if s.Path != "" {
		return NormalizePath(s.Path)
	}
	return NormalizePath(s.Name)
}

// Validate checks static invariants of the entry.
func (s *SecretEngine) Validate() error {
	if err := requireField(KindSecretEngine, s.Name, "name", s.Name); err != nil {
		return err
	}
	if IsSystemMount(s.MountPath()) {
		return invalidField(KindSecretEngine, s.Name, "path", s.MountPath(), "system mounts cannot be managed")
	}
	if s.Enabled {
		return requireField(KindSecretEngine, s.Name, "type", s.Type)
	}
	return nil
}
