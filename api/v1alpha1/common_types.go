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
// Package v1alpha1 defines the declarative configuration schema read from the
// HCL configuration directory. Every entry is keyed by name and carries an
// enabled flag; disabled entries are removed from Vault when present.
package v1alpha1

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panteparak/vault-config/shared/controller/driftmode"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

// EntryKind is a category of declaratively managed configuration.
type EntryKind string

const (
	KindAuthMethod   EntryKind = "auth"
	KindSecretEngine EntryKind = "secret"
	KindPolicy       EntryKind = "policy"
	KindRole         EntryKind = "role"
)

// Kinds lists the entry kinds in reconcile order.
var Kinds = []EntryKind{KindAuthMethod, KindSecretEngine, KindPolicy, KindRole}

// Capability represents a Vault policy capability
type Capability string

const (
	CapabilityCreate Capability = "create"
	CapabilityRead   Capability = "read"
	CapabilityUpdate Capability = "update"
	CapabilityPatch  Capability = "patch"
	CapabilityDelete Capability = "delete"
	CapabilityList   Capability = "list"
	CapabilitySudo   Capability = "sudo"
	CapabilityDeny   Capability = "deny"
)

// PolicyRule is a single path block of a policy file:
//
//	path "kv/data/app/*" {
//	  capabilities = ["read", "list"]
//	}
type PolicyRule struct {
	// Path in Vault to apply the rule to
	Path string `hcl:",key"`

	// Capabilities to grant on this path
	Capabilities []Capability `hcl:"capabilities"`

	// Description of this rule, rendered as a comment
	Description string `hcl:"description"`

	// AllowedParameters restricts the keys that may be set
	AllowedParameters []string `hcl:"allowed_parameters"`

	// DeniedParameters blocks the listed keys
	DeniedParameters []string `hcl:"denied_parameters"`

	// RequiredParameters must be present in every request
	RequiredParameters []string `hcl:"required_parameters"`
}

// ServiceAccountRef references a Kubernetes service account
type ServiceAccountRef struct {
	// Name of the service account
	Name string `hcl:"name"`

	// Namespace of the service account
	Namespace string `hcl:"namespace"`
}

// IsZero reports whether neither field is set.
func (r ServiceAccountRef) IsZero() bool {
	return r.Name == "" && r.Namespace == ""
}

// NormalizePath trims surrounding slashes from a mount path.
func NormalizePath(path string) string {
	return strings.Trim(path, "/")
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func requireField(kind EntryKind, name, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return infraerrors.NewValidationError(
			fmt.Sprintf("%s.%s.%s", kind, name, field), value, "is required")
	}
	return nil
}

// normalizeDriftMode validates mode and returns its canonical form.
func normalizeDriftMode(kind EntryKind, name string, mode driftmode.Mode) (driftmode.Mode, error) {
	m, err := driftmode.Parse(string(mode))
	if err != nil {
		return "", invalidField(kind, name, "drift_mode", string(mode), "must be ignore, detect or correct")
	}
	return m, nil
}

func invalidField(kind EntryKind, name, field, value, message string) error {
	return infraerrors.NewValidationError(fmt.Sprintf("%s.%s.%s", kind, name, field), value, message)
}
