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
// Package binding builds the Vault API paths a declarative entry is bound
// to. Every path the reconciler writes or deletes is constructed here.
package binding

import (
	"fmt"
	"strings"
)

const (
	// DefaultKubernetesMount is the default Kubernetes auth mount path
	DefaultKubernetesMount = "kubernetes"

	// DefaultGithubMount is the default GitHub auth mount path
	DefaultGithubMount = "github"
)

func mount(path, fallback string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return fallback
	}
	return path
}

// PolicyPath returns the full Vault API path for an ACL policy.
// Example: PolicyPath("my-policy") returns "sys/policies/acl/my-policy"
func PolicyPath(policyName string) string {
	return fmt.Sprintf("sys/policies/acl/%s", policyName)
}

// AuthMountPath returns the sys path that enables an auth method.
// Example: AuthMountPath("github") returns "sys/auth/github"
func AuthMountPath(authMount string) string {
	return fmt.Sprintf("sys/auth/%s", strings.Trim(authMount, "/"))
}

// SecretMountPath returns the sys path that mounts a secrets engine.
// Example: SecretMountPath("kv") returns "sys/mounts/kv"
func SecretMountPath(mountPath string) string {
	return fmt.Sprintf("sys/mounts/%s", strings.Trim(mountPath, "/"))
}

// AuthConfigPath returns the config path of an auth method.
// Example: AuthConfigPath("github") returns "auth/github/config"
func AuthConfigPath(authMount string) string {
	return fmt.Sprintf("auth/%s/config", strings.Trim(authMount, "/"))
}

// RolePath returns the full Vault API path for a Kubernetes auth role.
// Example: RolePath("kubernetes", "my-role") returns "auth/kubernetes/role/my-role"
func RolePath(authMount, roleName string) string {
	return fmt.Sprintf("auth/%s/role/%s", mount(authMount, DefaultKubernetesMount), roleName)
}

// TeamMapPath returns the GitHub team to policy mapping path.
// Example: TeamMapPath("github", "dev") returns "auth/github/map/teams/dev"
func TeamMapPath(authMount, team string) string {
	return fmt.Sprintf("auth/%s/map/teams/%s", mount(authMount, DefaultGithubMount), team)
}

// LoginPath returns the login endpoint of an auth method.
// Example: LoginPath("kubernetes") returns "auth/kubernetes/login"
func LoginPath(authMount string) string {
	return fmt.Sprintf("auth/%s/login", mount(authMount, DefaultKubernetesMount))
}
