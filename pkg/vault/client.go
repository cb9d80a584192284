package vault

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

// Client wraps the Vault API client with session state
type Client struct {
	*api.Client
	httpClient    *http.Client
	authenticated bool
}

// ClientConfig holds configuration for creating a Vault client
type ClientConfig struct {
	Address    string
	TLSConfig  *TLSConfig
	Timeout    time.Duration
	MaxRetries *int
}

// TLSConfig holds TLS configuration for Vault client
type TLSConfig struct {
	CACert     string
	SkipVerify bool
}

// InitResult holds the material returned by initialization
type InitResult struct {
	Keys      []string
	RootToken string
}

// NewClient creates a new Vault client with the given configuration
func NewClient(cfg ClientConfig) (*Client, error) {
	config := api.DefaultConfig()
	config.Address = cfg.Address

	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries != nil {
		config.MaxRetries = *cfg.MaxRetries
	}

	if cfg.TLSConfig != nil {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.TLSConfig.SkipVerify,
		}

		if cfg.TLSConfig.CACert != "" {
			if err := config.ConfigureTLS(&api.TLSConfig{
				CACert:   cfg.TLSConfig.CACert,
				Insecure: cfg.TLSConfig.SkipVerify,
			}); err != nil {
				return nil, fmt.Errorf("failed to configure TLS: %w", err)
			}
		} else if cfg.TLSConfig.SkipVerify {
			config.HttpClient.Transport = &http.Transport{
				TLSClientConfig: tlsConfig,
			}
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	// Never pick up an ambient VAULT_TOKEN; credentials are set explicitly.
	client.ClearToken()

	return &Client{
		Client:     client,
		httpClient: config.HttpClient,
	}, nil
}

// IsAuthenticated returns whether the client has been authenticated
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

// SetAuthenticated marks the client as authenticated
func (c *Client) SetAuthenticated(auth bool) {
	c.authenticated = auth
}

// HTTPClient returns the HTTP client carrying the configured TLS settings,
// so readiness checks reach Vault the same way the API client does
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// IsHealthy checks if Vault is healthy and the client can connect
func (c *Client) IsHealthy(ctx context.Context) (bool, error) {
	health, err := c.Sys().HealthWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("vault health check failed: %w", err)
	}

	// Vault is healthy if initialized and unsealed
	return health.Initialized && !health.Sealed, nil
}

// GetVersion returns the Vault server version
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	health, err := c.Sys().HealthWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get vault version: %w", err)
	}
	return health.Version, nil
}

// InitStatus reports whether Vault has been initialized
func (c *Client) InitStatus(ctx context.Context) (bool, error) {
	initialized, err := c.Sys().InitStatusWithContext(ctx)
	if err != nil {
		return false, classify("read init status", err)
	}
	return initialized, nil
}

// Initialize initializes Vault with the given share count and threshold
func (c *Client) Initialize(ctx context.Context, shares, threshold int) (*InitResult, error) {
	resp, err := c.Sys().InitWithContext(ctx, &api.InitRequest{
		SecretShares:    shares,
		SecretThreshold: threshold,
	})
	if err != nil {
		return nil, classify("initialize", err)
	}
	return &InitResult{
		Keys:      resp.Keys,
		RootToken: resp.RootToken,
	}, nil
}

// SealStatus reports whether Vault is initialized and sealed
func (c *Client) SealStatus(ctx context.Context) (initialized, sealed bool, err error) {
	status, err := c.Sys().SealStatusWithContext(ctx)
	if err != nil {
		return false, false, classify("read seal status", err)
	}
	return status.Initialized, status.Sealed, nil
}

// Unseal submits a single unseal share and returns whether Vault is still sealed
func (c *Client) Unseal(ctx context.Context, key string) (bool, error) {
	status, err := c.Sys().UnsealWithContext(ctx, key)
	if err != nil {
		return true, classify("unseal", err)
	}
	return status.Sealed, nil
}

// VerifyAuthenticated looks up the current token and records the result
func (c *Client) VerifyAuthenticated(ctx context.Context) (bool, error) {
	if c.Token() == "" {
		c.authenticated = false
		return false, nil
	}
	secret, err := c.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		var respErr *api.ResponseError
		if errors.As(err, &respErr) && (respErr.StatusCode == http.StatusForbidden || respErr.StatusCode == http.StatusUnauthorized) {
			c.authenticated = false
			return false, nil
		}
		return false, classify("lookup token", err)
	}
	c.authenticated = secret != nil
	return c.authenticated, nil
}

// AuthenticateKubernetes authenticates using the Kubernetes auth method
func (c *Client) AuthenticateKubernetes(ctx context.Context, role, mountPath, jwt string) error {
	if mountPath == "" {
		mountPath = "kubernetes"
	}
	if jwt == "" {
		return fmt.Errorf("service account token cannot be empty")
	}

	path := fmt.Sprintf("auth/%s/login", mountPath)
	secret, err := c.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"role": role,
		"jwt":  jwt,
	})
	if err != nil {
		return fmt.Errorf("kubernetes auth failed: %w", err)
	}

	if secret == nil || secret.Auth == nil {
		return fmt.Errorf("kubernetes auth returned no token")
	}

	c.SetToken(secret.Auth.ClientToken)
	c.authenticated = true
	return nil
}

// AuthenticateToken authenticates using a static token
func (c *Client) AuthenticateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}
	c.SetToken(token)
	c.authenticated = true
	return nil
}

// Void drops the session credential
func (c *Client) Void() {
	c.ClearToken()
	c.authenticated = false
}

// Close voids the credential and releases idle transport connections
func (c *Client) Close() {
	c.Void()
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}

// ListAuthMethods returns enabled auth methods keyed by path (without trailing slash)
func (c *Client) ListAuthMethods(ctx context.Context) (map[string]string, error) {
	mounts, err := c.Sys().ListAuthWithContext(ctx)
	if err != nil {
		return nil, classify("list auth methods", err)
	}
	out := make(map[string]string, len(mounts))
	for path, mount := range mounts {
		out[strings.TrimSuffix(path, "/")] = mount.Type
	}
	return out, nil
}

// EnableAuthMethod enables an auth method at path
func (c *Client) EnableAuthMethod(ctx context.Context, path, methodType, description string) error {
	err := c.Sys().EnableAuthWithOptionsWithContext(ctx, path, &api.EnableAuthOptions{
		Type:        methodType,
		Description: description,
	})
	return classify("enable auth method", err)
}

// DisableAuthMethod disables the auth method at path
func (c *Client) DisableAuthMethod(ctx context.Context, path string) error {
	return classify("disable auth method", c.Sys().DisableAuthWithContext(ctx, path))
}

// ListSecretEngines returns mounted secret engines keyed by path (without trailing slash)
func (c *Client) ListSecretEngines(ctx context.Context) (map[string]string, error) {
	mounts, err := c.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return nil, classify("list secret engines", err)
	}
	out := make(map[string]string, len(mounts))
	for path, mount := range mounts {
		out[strings.TrimSuffix(path, "/")] = mount.Type
	}
	return out, nil
}

// MountSecretEngine mounts a secret engine at path
func (c *Client) MountSecretEngine(ctx context.Context, path, engineType, description string, options map[string]string) error {
	err := c.Sys().MountWithContext(ctx, path, &api.MountInput{
		Type:        engineType,
		Description: description,
		Options:     options,
	})
	return classify("mount secret engine", err)
}

// UnmountSecretEngine unmounts the secret engine at path
func (c *Client) UnmountSecretEngine(ctx context.Context, path string) error {
	return classify("unmount secret engine", c.Sys().UnmountWithContext(ctx, path))
}

// ListPolicies returns the sorted names of all ACL policies
func (c *Client) ListPolicies(ctx context.Context) ([]string, error) {
	policies, err := c.Sys().ListPoliciesWithContext(ctx)
	if err != nil {
		return nil, classify("list policies", err)
	}
	sort.Strings(policies)
	return policies, nil
}

// WritePolicy writes a policy to Vault
func (c *Client) WritePolicy(ctx context.Context, name, hcl string) error {
	return classify("write policy", c.Sys().PutPolicyWithContext(ctx, name, hcl))
}

// ReadPolicy reads a policy from Vault. A missing policy yields "".
func (c *Client) ReadPolicy(ctx context.Context, name string) (string, error) {
	rules, err := c.Sys().GetPolicyWithContext(ctx, name)
	if err != nil {
		return "", classify("read policy", err)
	}
	return rules, nil
}

// DeletePolicy deletes a policy from Vault
func (c *Client) DeletePolicy(ctx context.Context, name string) error {
	return classify("delete policy", c.Sys().DeletePolicyWithContext(ctx, name))
}

// PolicyExists checks if a policy exists in Vault
func (c *Client) PolicyExists(ctx context.Context, name string) (bool, error) {
	policies, err := c.ListPolicies(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range policies {
		if p == name {
			return true, nil
		}
	}
	return false, nil
}

// Read reads the data at path. A missing path yields nil data.
func (c *Client) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := c.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, classify("read "+path, err)
	}
	if secret == nil {
		return nil, nil
	}
	return secret.Data, nil
}

// Write writes data to path
func (c *Client) Write(ctx context.Context, path string, data map[string]interface{}) error {
	_, err := c.Logical().WriteWithContext(ctx, path, data)
	return classify("write "+path, err)
}

// Delete deletes path
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Logical().DeleteWithContext(ctx, path)
	return classify("delete "+path, err)
}

// classify wraps transport failures as TransientError and API rejections
// with the operation name.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var respErr *api.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode >= http.StatusInternalServerError {
			return infraerrors.NewTransientError(op, err)
		}
		return fmt.Errorf("vault %s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return infraerrors.NewTransientError(op, err)
}
