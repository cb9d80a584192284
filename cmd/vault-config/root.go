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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/panteparak/vault-config/pkg/config"
	"github.com/panteparak/vault-config/pkg/logger"
)

var (
	cfgFile string
	zapOpts = zap.Options{}
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "vault-config",
	Short: "Bootstrap and configure a Vault server",
	Long: `vault-config brings a Vault server from empty to configured:

  init -> up -> auth -> secret -> policy -> role -> clean

Progress is served on the status page and broadcast over websocket.
Unseal key shares are delivered to the configured chat channel.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "settings file (yaml, json or toml)")
	flags.String("vault-addr", config.DefaultVaultAddr, "Vault server address")
	flags.String("config-dir", "", "directory of HCL configuration files (default $HOME/hcl)")
	bindZapFlags(flags)

	// BindPFlag only fails for a nil flag.
	_ = v.BindPFlag("vault_addr", flags.Lookup("vault-addr"))
	_ = v.BindPFlag("config_dir", flags.Lookup("config-dir"))

	rootCmd.AddCommand(serveCmd, reconcileCmd, unsealCmd)
}

// bindZapFlags exposes the zap logger flags (--zap-log-level and friends)
// on the cobra flag set.
func bindZapFlags(flags *pflag.FlagSet) {
	goflags := flag.NewFlagSet("zap", flag.ContinueOnError)
	zapOpts.BindFlags(goflags)
	flags.AddGoFlagSet(goflags)
}

// setup loads settings and builds the process logger.
func setup() (*config.Settings, logr.Logger, error) {
	log := logger.New(&zapOpts)
	ctrllog.SetLogger(log)

	settings, err := loadSettings(v, cfgFile)
	if err != nil {
		return nil, log, err
	}
	return settings, log, nil
}

func loadSettings(v *viper.Viper, file string) (*config.Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	return config.LoadSettings(v)
}

func printError(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
}
