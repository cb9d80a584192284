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
// Package config loads process settings from the environment and the
// declarative configuration bundle from the HCL configuration directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/shared/controller/driftmode"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

// Defaults for process settings.
const (
	DefaultVaultAddr    = "http://127.0.0.1:8200"
	DefaultPingPath     = "/v1/sys/health?standbyok=true&uninitcode=200&sealedcode=200"
	DefaultWebAddr      = ":5000"
	DefaultWSAddr       = ":4000"
	DefaultKeyShares    = 2
	DefaultKeyThreshold = 2
	DefaultKubeRole     = "vault-config"
	DefaultKubeAuthPath = "kubernetes"

	// MaxKeyShares is the hard ceiling for shares and threshold.
	MaxKeyShares = 10
)

// Settings holds the process configuration.
type Settings struct {
	VaultAddr       string        `mapstructure:"vault_addr"`
	VaultPingPath   string        `mapstructure:"vault_ping_path"`
	VaultCACert     string        `mapstructure:"vault_cacert"`
	VaultSkipTLS    bool          `mapstructure:"vault_skip_verify"`
	VaultTimeout    time.Duration `mapstructure:"vault_timeout"`
	VaultToken      string        `mapstructure:"vault_token"`
	KeyShares       int           `mapstructure:"vault_key_shares"`
	KeyThreshold    int           `mapstructure:"vault_key_threshold"`
	RetainRootToken bool          `mapstructure:"retain_root_token"`
	DriftMode       string        `mapstructure:"drift_mode"`

	ConfigDir string `mapstructure:"config_dir"`
	WebAddr   string `mapstructure:"web_addr"`
	WSAddr    string `mapstructure:"ws_addr"`

	SlackBotToken          string `mapstructure:"slack_bot_token"`
	SlackChannelID         string `mapstructure:"slack_channel_id"`
	SlackVerificationToken string `mapstructure:"slack_verification_token"`

	KubeNamespace      string `mapstructure:"kube_namespace"`
	KubeRole           string `mapstructure:"kube_role"`
	KubeAuthPath       string `mapstructure:"kube_auth_path"`
	KubeServiceAccount string `mapstructure:"kube_service_account"`
	KubeHost           string `mapstructure:"kube_host"`
	KubeCACert         string `mapstructure:"kube_ca_cert"`

	ProbeFailureThreshold int           `mapstructure:"probe_failure_threshold"`
	ProbeSuccessThreshold int           `mapstructure:"probe_success_threshold"`
	ProbeInitialDelay     time.Duration `mapstructure:"probe_initial_delay"`
	ProbePeriod           time.Duration `mapstructure:"probe_period"`
	ProbeTimeout          time.Duration `mapstructure:"probe_timeout"`
}

// envBindings maps settings keys to environment variables.
var envBindings = map[string]string{
	"vault_addr":               "VAULT_ADDR",
	"vault_ping_path":          "VAULT_PING_PATH",
	"vault_cacert":             "VAULT_CACERT",
	"vault_skip_verify":        "VAULT_SKIP_VERIFY",
	"vault_timeout":            "VAULT_CLIENT_TIMEOUT",
	"vault_token":              "VAULT_TOKEN",
	"vault_key_shares":         "VAULT_KEY_SHARES",
	"vault_key_threshold":      "VAULT_KEY_THRESHOLD",
	"retain_root_token":        "RETAIN_ROOT_TOKEN",
	"drift_mode":               "DRIFT_MODE",
	"config_dir":               "CONFIG_DIR",
	"web_addr":                 "WEB_ADDR",
	"ws_addr":                  "WS_ADDR",
	"slack_bot_token":          "SLACK_BOT_TOKEN",
	"slack_channel_id":         "SLACK_CHANNEL_ID",
	"slack_verification_token": "SLACK_VERIFICATION_TOKEN",
	"kube_namespace":           "KUBE_NAMESPACE",
	"kube_role":                "KUBE_ROLE",
	"kube_auth_path":           "KUBE_AUTH_PATH",
	"kube_service_account":     "KUBE_SERVICE_ACCOUNT",
	"kube_host":                "KUBE_HOST",
	"kube_ca_cert":             "KUBE_CA_CERT",
	"probe_failure_threshold":  "PROBE_FAILURE_THRESHOLD",
	"probe_success_threshold":  "PROBE_SUCCESS_THRESHOLD",
	"probe_initial_delay":      "PROBE_INITIAL_DELAY",
	"probe_period":             "PROBE_PERIOD",
	"probe_timeout":            "PROBE_TIMEOUT",
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()

	home, _ := os.UserHomeDir()
	probeDefaults := probe.DefaultConfig()

	v.SetDefault("vault_addr", DefaultVaultAddr)
	v.SetDefault("vault_ping_path", DefaultPingPath)
	v.SetDefault("vault_timeout", 30*time.Second)
	v.SetDefault("vault_key_shares", DefaultKeyShares)
	v.SetDefault("vault_key_threshold", DefaultKeyThreshold)
	v.SetDefault("retain_root_token", false)
	v.SetDefault("drift_mode", string(driftmode.Default))
	v.SetDefault("config_dir", filepath.Join(home, "hcl"))
	v.SetDefault("web_addr", DefaultWebAddr)
	v.SetDefault("ws_addr", DefaultWSAddr)
	v.SetDefault("kube_role", DefaultKubeRole)
	v.SetDefault("kube_auth_path", DefaultKubeAuthPath)
	v.SetDefault("probe_failure_threshold", probeDefaults.FailureThreshold)
	v.SetDefault("probe_success_threshold", probeDefaults.SuccessThreshold)
	v.SetDefault("probe_initial_delay", probeDefaults.InitialDelay)
	v.SetDefault("probe_period", probeDefaults.Period)
	v.SetDefault("probe_timeout", probeDefaults.Timeout)

	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env)
	}
	return v
}

// LoadSettings reads settings from v, including an optional config file
// when one was set with SetConfigFile.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.VaultAddr = strings.TrimRight(s.VaultAddr, "/")

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks static invariants of the settings.
func (s *Settings) Validate() error {
	if err := ValidateShares(s.KeyShares, s.KeyThreshold); err != nil {
		return err
	}
	if s.VaultAddr == "" {
		return infraerrors.NewValidationError("vault_addr", "", "is required")
	}
	mode, err := driftmode.Parse(s.DriftMode)
	if err != nil {
		return infraerrors.NewValidationError("drift_mode", s.DriftMode, "must be ignore, detect or correct")
	}
	s.DriftMode = string(mode)
	if s.ProbeFailureThreshold < 1 {
		return infraerrors.NewValidationError("probe_failure_threshold",
			fmt.Sprint(s.ProbeFailureThreshold), "must be at least 1")
	}
	if s.ProbeSuccessThreshold < 1 {
		return infraerrors.NewValidationError("probe_success_threshold",
			fmt.Sprint(s.ProbeSuccessThreshold), "must be at least 1")
	}
	return nil
}

// ValidateShares checks the key share count and reconstruction threshold.
func ValidateShares(shares, threshold int) error {
	if shares < 1 || shares > MaxKeyShares {
		return infraerrors.NewValidationError("vault_key_shares", fmt.Sprint(shares),
			fmt.Sprintf("must be between 1 and %d", MaxKeyShares))
	}
	if threshold < 1 || threshold > MaxKeyShares {
		return infraerrors.NewValidationError("vault_key_threshold", fmt.Sprint(threshold),
			fmt.Sprintf("must be between 1 and %d", MaxKeyShares))
	}
	if threshold > shares {
		return infraerrors.NewValidationError("vault_key_threshold", fmt.Sprint(threshold),
			"must not exceed the number of shares")
	}
	return nil
}

// PingURL is the readiness endpoint polled by the health probe.
func (s *Settings) PingURL() string {
	return s.VaultAddr + s.VaultPingPath
}

// ProbeConfig returns the health probe configuration.
func (s *Settings) ProbeConfig() probe.Config {
	return probe.Config{
		FailureThreshold: s.ProbeFailureThreshold,
		SuccessThreshold: s.ProbeSuccessThreshold,
		InitialDelay:     s.ProbeInitialDelay,
		Period:           s.ProbePeriod,
		Timeout:          s.ProbeTimeout,
	}
}

// SlackEnabled reports whether the chat client is configured.
func (s *Settings) SlackEnabled() bool {
	return s.SlackBotToken != "" && s.SlackChannelID != ""
}
