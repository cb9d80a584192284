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
	"fmt"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/panteparak/vault-config/shared/events"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Apply the HCL configuration to an initialized, unsealed Vault",
	Long: `Runs one reconcile pass of secret engines, policies, auth methods and
roles, then exits. Vault must already be initialized and unsealed.

The pass authenticates with VAULT_TOKEN when set, otherwise with the local
service account through the kubernetes auth method.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		settings, log, err := setup()
		if err != nil {
			return err
		}
		ctx := ctrl.SetupSignalHandler()

		engine, client, err := newEngine(ctx, settings, events.NewEventBus(log), "", log)
		if err != nil {
			return err
		}
		defer engine.Close()

		if version, err := client.GetVersion(ctx); err == nil {
			log.Info("connected to vault", "version", version)
		}

		authenticated, err := engine.Authenticate(ctx)
		if err != nil {
			return err
		}
		if !authenticated {
			return fmt.Errorf("no usable credential: set VAULT_TOKEN or run inside the cluster")
		}

		ok, err := engine.Reconcile(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("reconcile did not complete")
		}
		log.Info("reconcile complete")
		return nil
	},
}
