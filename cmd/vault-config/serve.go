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
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/panteparak/vault-config/internal/notify"
	chat "github.com/panteparak/vault-config/internal/slack"
	"github.com/panteparak/vault-config/internal/web"
	"github.com/panteparak/vault-config/pkg/config"
	"github.com/panteparak/vault-config/pkg/metrics"
	"github.com/panteparak/vault-config/pkg/probe"
	"github.com/panteparak/vault-config/pkg/vault/bootstrap"
	"github.com/panteparak/vault-config/shared/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bootstrap workflow and serve its progress (default)",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	settings, log, err := setup()
	if err != nil {
		return err
	}
	ctx := ctrl.SetupSignalHandler()
	return serve(ctx, settings, log)
}

func serve(ctx context.Context, s *config.Settings, log logr.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	if err := metrics.Register(ctrlmetrics.Registry); err != nil {
		return err
	}

	bus := events.NewEventBus(log)
	hub := notify.NewHub(log)
	defer hub.Close()
	defer hub.Subscribe(bus)()

	var deliveredTo string
	var claims web.ClaimHandler
	if s.SlackEnabled() {
		notifier := chat.NewNotifier(chat.NewClient(s.SlackBotToken), s.SlackChannelID, s.SlackVerificationToken, log)
		defer notifier.Subscribe(bus)()
		claims = notifier
		deliveredTo = notifier.Destination()
	} else {
		log.Info("slack is not configured, unseal shares generated by this process cannot be recovered")
	}

	engine, client, err := newEngine(ctx, s, bus, deliveredTo, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	manager := bootstrap.NewManager(engine, bus, &bootstrap.Config{
		RetainRootToken: s.RetainRootToken,
		Readiness:       probe.HTTPGet(client.HTTPClient(), s.PingURL()),
		Probe:           s.ProbeConfig(),
		Target:          s.PingURL(),
	}, log)

	server := web.NewServer(web.Options{
		Snapshots:  manager,
		Reconciler: engine,
		Claims:     claims,
		Gatherer:   ctrlmetrics.Registry,
	}, log)

	errCh := make(chan error, 2)
	go func() { errCh <- server.Run(ctx, s.WebAddr) }()
	go func() {
		log.Info("progress broadcast listening", "addr", s.WSAddr)
		errCh <- web.Serve(ctx, s.WSAddr, hub)
	}()

	go func() {
		result, err := manager.Run(ctx)
		if err != nil {
			failed := log
			if result != nil {
				failed = log.WithValues("failedStep", result.FailedStep)
			}
			failed.Error(err, "bootstrap workflow failed")
			return
		}
		log.Info("bootstrap workflow finished", "runID", result.RunID, "duration", result.Duration.String())
	}()

	for range 2 {
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
