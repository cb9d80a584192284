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
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl"

	"github.com/panteparak/vault-config/api/v1alpha1"
)

// Subdirectories of the configuration directory, one per entry kind.
const (
	AuthDir   = "auth"
	SecretDir = "secret"
	PolicyDir = "policy"
	RoleDir   = "role"
)

type authFile struct {
	Auth []*v1alpha1.AuthMethod `hcl:"auth"`
}

type secretFile struct {
	Secret []*v1alpha1.SecretEngine `hcl:"secret"`
}

type roleFile struct {
	Role []*v1alpha1.Role `hcl:"role"`
}

// LoadDesired reads every *.hcl file under dir/{auth,secret,policy,role}.
// Missing subdirectories are treated as empty. The result is validated.
func LoadDesired(dir string) (*v1alpha1.DesiredConfig, error) {
	d := v1alpha1.NewDesiredConfig()

	err := eachFile(filepath.Join(dir, AuthDir), func(path string, data []byte) error {
		var f authFile
		if err := hcl.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, a := range f.Auth {
			if err := addEntry(d.AuthMethods, a.Name, a, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachFile(filepath.Join(dir, SecretDir), func(path string, data []byte) error {
		var f secretFile
		if err := hcl.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, s := range f.Secret {
			if err := addEntry(d.SecretEngines, s.Name, s, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachFile(filepath.Join(dir, PolicyDir), func(path string, data []byte) error {
		p := &v1alpha1.Policy{}
		if err := hcl.Unmarshal(data, p); err != nil {
			return err
		}
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return addEntry(d.Policies, p.Name, p, path)
	})
	if err != nil {
		return nil, err
	}

	err = eachFile(filepath.Join(dir, RoleDir), func(path string, data []byte) error {
		var f roleFile
		if err := hcl.Unmarshal(data, &f); err != nil {
			return err
		}
		for _, r := range f.Role {
			if err := addEntry(d.Roles, r.Name, r, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func addEntry[V any](m map[string]V, name string, entry V, path string) error {
	if _, ok := m[name]; ok {
		return fmt.Errorf("%s: duplicate entry %q", path, name)
	}
	m[name] = entry
	return nil
}

// eachFile calls fn for every *.hcl file in dir in lexical order.
func eachFile(dir string, fn func(path string, data []byte) error) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := fn(path, data); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return nil
}
