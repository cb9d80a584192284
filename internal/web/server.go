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

// Package web serves the status page, the latest step snapshot, a manual
// reconcile trigger, metrics and the chat action callback.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"

	chat "github.com/panteparak/vault-config/internal/slack"
	infraerrors "github.com/panteparak/vault-config/shared/infrastructure/errors"
)

const shutdownTimeout = 5 * time.Second

// Snapshots returns the most recent step snapshot.
type Snapshots interface {
	Latest() []byte
}

// Reconciler runs the configured-phase operations on demand.
type Reconciler interface {
	Reconcile(ctx context.Context) (bool, error)
}

// ClaimHandler processes an unseal share claim from the chat client.
type ClaimHandler interface {
	HandleClaim(ctx context.Context, cb *slack.InteractionCallback) error
}

// Options wires the server to the rest of the process. Reconciler and
// Claims are optional; their routes answer 503 when unset.
type Options struct {
	Snapshots  Snapshots
	Reconciler Reconciler
	Claims     ClaimHandler
	Gatherer   prometheus.Gatherer
}

// Server is the status HTTP server.
type Server struct {
	router *gin.Engine
	opts   Options
	log    logr.Logger
}

// NewServer builds the router.
func NewServer(opts Options, log logr.Logger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router: gin.New(),
		opts:   opts,
		log:    log.WithName("web"),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.log))
	s.router.SetHTMLTemplate(statusTemplate)

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	s.router.GET("/", s.handleStatusPage)

	api := s.router.Group("/api")
	{
		api.GET("/steps", s.handleSteps)
		api.POST("/reconcile", s.handleReconcile)
	}
	s.router.POST("/slack/action", s.handleSlackAction)
	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.log.Info("status server listening", "addr", addr)
	return Serve(ctx, addr, s.router)
}

// Serve runs an HTTP server for handler on addr and shuts it down
// gracefully when ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleSteps(c *gin.Context) {
	latest := s.opts.Snapshots.Latest()
	if len(latest) == 0 {
		latest = []byte("{}")
	}
	c.Data(http.StatusOK, "application/json", latest)
}

func (s *Server) handleReconcile(c *gin.Context) {
	if s.opts.Reconciler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciler is not available"})
		return
	}

	ok, err := s.opts.Reconciler.Reconcile(c.Request.Context())
	switch {
	case infraerrors.IsNotAuthenticatedError(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Error(err, "manual reconcile failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": ok, "error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}

// handleSlackAction accepts the form-encoded interaction payload posted by
// the chat service.
func (s *Server) handleSlackAction(c *gin.Context) {
	if s.opts.Claims == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat client is not configured"})
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(c.PostForm("payload")), &cb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	err := s.opts.Claims.HandleClaim(c.Request.Context(), &cb)
	status := claimStatus(err)
	if err != nil {
		s.log.V(1).Info("share claim rejected", "status", status, "reason", err.Error())
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Status(status)
}

func claimStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chat.ErrInvalidToken):
		return http.StatusForbidden
	case errors.Is(err, chat.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUnknownShare), errors.Is(err, chat.ErrAlreadyClaimed), errors.Is(err, chat.ErrNoMessage):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func requestLogger(log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.V(1).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}
