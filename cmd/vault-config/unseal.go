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
)

var unsealCmd = &cobra.Command{
	Use:   "unseal KEY...",
	Short: "Submit unseal key shares to a sealed Vault",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, keys []string) error {
		settings, log, err := setup()
		if err != nil {
			return err
		}
		ctx := ctrl.SetupSignalHandler()

		engine, _, err := newEngine(ctx, settings, nil, "", log)
		if err != nil {
			return err
		}
		defer engine.Close()

		unsealed, err := engine.Unseal(ctx, keys)
		if err != nil {
			return err
		}
		if !unsealed {
			return fmt.Errorf("vault is still sealed after %d key(s)", len(keys))
		}
		log.Info("vault is unsealed")
		return nil
	},
}
