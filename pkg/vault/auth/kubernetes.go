package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultServiceAccountDir is the directory Kubernetes mounts service account credentials into
	DefaultServiceAccountDir = "/var/run/secrets/kubernetes.io/serviceaccount"

	// DefaultKubernetesAuthPath is the default mount path for Kubernetes auth in Vault
	DefaultKubernetesAuthPath = "kubernetes"

	// NamespaceEnvVar overrides the mounted namespace file
	NamespaceEnvVar = "KUBE_NAMESPACE"
)

// MountPaths locates the mounted service account files
type MountPaths struct {
	Token     string
	CACert    string
	Namespace string
}

// DefaultMountPaths returns the standard in-pod locations.
func DefaultMountPaths() MountPaths {
	return MountPathsIn(DefaultServiceAccountDir)
}

// MountPathsIn returns the file locations inside dir.
func MountPathsIn(dir string) MountPaths {
	return MountPaths{
		Token:     filepath.Join(dir, "token"),
		CACert:    filepath.Join(dir, "ca.crt"),
		Namespace: filepath.Join(dir, "namespace"),
	}
}

// MountedCredentials are the credentials read from a pod's service account mount
type MountedCredentials struct {
	Token     string
	CACert    string
	Namespace string
}

// ReadMounted reads the token, CA certificate and namespace. The token is
// required, the CA and namespace are optional.
func ReadMounted(paths MountPaths) (*MountedCredentials, error) {
	token, err := GetServiceAccountTokenFromPath(paths.Token)
	if err != nil {
		return nil, err
	}
	creds := &MountedCredentials{Token: strings.TrimSpace(token)}

	if ca, err := os.ReadFile(paths.CACert); err == nil {
		creds.CACert = string(ca)
	}
	if ns, err := GetCurrentNamespaceFrom(paths.Namespace); err == nil {
		creds.Namespace = ns
	}
	return creds, nil
}

// GetServiceAccountTokenFromPath reads a service account token from a custom path.
func GetServiceAccountTokenFromPath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read service account token from %s: %w", path, err)
	}
	return string(data), nil
}

// GetCurrentNamespace returns the namespace of the current pod.
// It first checks the KUBE_NAMESPACE environment variable,
// then falls back to the mounted namespace file.
func GetCurrentNamespace() (string, error) {
	return GetCurrentNamespaceFrom(DefaultMountPaths().Namespace)
}

// GetCurrentNamespaceFrom is GetCurrentNamespace with a custom namespace file.
func GetCurrentNamespaceFrom(path string) (string, error) {
	if ns := os.Getenv(NamespaceEnvVar); ns != "" {
		return ns, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read namespace from %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// GetKubernetesCACertFromPath reads the Kubernetes CA certificate.
// This is used when configuring Vault's Kubernetes auth backend.
func GetKubernetesCACertFromPath(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read CA cert from %s: %w", path, err)
	}
	return string(data), nil
}

// IsRunningInKubernetes checks if the code is running inside a Kubernetes pod
// by checking for the existence of the service account token file.
func IsRunningInKubernetes() bool {
	_, err := os.Stat(DefaultMountPaths().Token)
	return err == nil
}
