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

import (
	"fmt"
	"strings"

	"github.com/panteparak/vault-config/shared/controller/driftmode"
)

// Policy is a policy/*.hcl file. The file name (without extension) is the
// policy name:
//
//	enabled = true
//
//	path "kv/data/{{name}}/*" {
//	  capabilities = ["read"]
//	}
type Policy struct {
	// Name comes from the file name
	Name string `hcl:"-"`

	// Enabled controls whether the policy should exist
	Enabled bool `hcl:"enabled"`

	// Rules are the path blocks of the policy
	Rules []PolicyRule `hcl:"path"`

	// DriftMode overrides how a changed live policy is handled
	DriftMode driftmode.Mode `hcl:"drift_mode"`
}

// builtinPolicies cannot be written or deleted.
var builtinPolicies = map[string]bool{
	"root":    true,
	"default": true,
}

// IsBuiltinPolicy reports whether name is a policy Vault manages itself.
func IsBuiltinPolicy(name string) bool {
	return builtinPolicies[name]
}

// Validate checks static invariants of the entry.
func (p *Policy) Validate() error {
	if err := requireField(KindPolicy, p.Name, "name", p.Name); err != nil {
		return err
	}
	if IsBuiltinPolicy(p.Name) {
		return invalidField(KindPolicy, p.Name, "name", p.Name, "builtin policies cannot be managed")
	}
	mode, err := normalizeDriftMode(KindPolicy, p.Name, p.DriftMode)
	if err != nil {
		return err
	}
	p.DriftMode = mode
	if !p.Enabled {
		return nil
	}
	if len(p.Rules) == 0 {
		return invalidField(KindPolicy, p.Name, "path", "", "at least one path block is required")
	}
	seen := make(map[string]bool, len(p.Rules))
	for _, rule := range p.Rules {
		if rule.Path == "" || strings.Contains(rule.Path, "..") {
			return invalidField(KindPolicy, p.Name, "path", rule.Path, "invalid path")
		}
		if seen[rule.Path] {
			return invalidField(KindPolicy, p.Name, "path", rule.Path, "duplicate path block")
		}
		seen[rule.Path] = true
		if len(rule.Capabilities) == 0 {
			return invalidField(KindPolicy, p.Name, fmt.Sprintf("path[%s].capabilities", rule.Path), "",
				"at least one capability is required")
		}
	}
	return nil
}

// CapabilityStrings converts capabilities to plain strings.
func CapabilityStrings(caps []Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}
