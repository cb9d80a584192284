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

// Package bootstrap drives the Vault bootstrap workflow.
//
// # Overview
//
// A workflow run walks seven steps in order:
//
//  1. init    initialize and unseal Vault (no-op when already initialized)
//  2. up      wait for the readiness endpoint and confirm Vault is running
//  3. auth    authenticate and reconcile auth backends
//  4. secret  reconcile secret engines
//  5. policy  reconcile policies
//  6. role    reconcile auth roles
//  7. clean   void the bootstrap credential unless it is retained
//
// Every run starts from a fresh step tracker. Each step is marked active,
// run, then marked finished; a snapshot of the tracker is published after
// every transition so observers can follow progress. The first failing step
// stops the run and is marked failed with a trace.
//
// # Usage
//
//	manager := NewManager(engine, bus, &Config{Readiness: call}, log)
//	result, err := manager.Run(ctx)
//	if err != nil {
//	    // result.FailedStep and result.Reason describe the failure
//	}
//
// # Run Flow
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                          Workflow Run                            │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│ For each step: active ─► publish ─► run ─► finished ─► publish    │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │ first rejection
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│ Error handler: mark last touched step failed with trace, publish │
//	└─────────────────────────────────────────────────────────────────┘
//	                              │
//	                              ▼
//	┌─────────────────────────────────────────────────────────────────┐
//	│ WorkflowFinished event, run metrics, duration log                │
//	└─────────────────────────────────────────────────────────────────┘
package bootstrap
