/*
Copyright 2025.

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

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/chazu/lineage/pkg/source"
)

const (
	// DefaultBindAddress is the listen address when none is configured
	DefaultBindAddress = ":8080"

	// DefaultMaxUploadBytes bounds uploaded documents
	DefaultMaxUploadBytes int64 = 8 << 20

	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the settings of the API server
type Config struct {
	// BindAddress is the address the server listens on
	BindAddress string

	// MaxUploadBytes bounds the size of an uploaded document
	MaxUploadBytes int64

	// ResetRefs are the sources reloaded by a reset request
	ResetRefs []source.Ref

	// ShutdownTimeout bounds how long in-flight requests may finish on shutdown
	ShutdownTimeout time.Duration

	// Logger receives request and lifecycle logs
	Logger logr.Logger
}

// Server serves the dependency graph API
type Server struct {
	cfg    Config
	holder *Holder
	engine *gin.Engine
}

// New creates a server answering from holder. Uploads and resets are loaded
// through loader.
func New(cfg Config, loader *source.Loader, holder *Holder) *Server {
	if cfg.BindAddress == "" {
		cfg.BindAddress = DefaultBindAddress
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if len(cfg.ResetRefs) == 0 {
		cfg.ResetRefs = []source.Ref{{Type: source.TypeEmbedded, Ref: source.DefaultEmbeddedRef}}
	}

	h := NewHandlers(holder, loader, cfg.ResetRefs, cfg.MaxUploadBytes)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(cfg.Logger), pinSnapshot(holder))

	engine.GET("/healthz", h.HandleHealth)
	engine.GET("/readyz", h.HandleReady)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(crmetrics.Registry, promhttp.HandlerOpts{})))

	RegisterRoutes(engine.Group("/api/v1"), h)

	return &Server{cfg: cfg, holder: holder, engine: engine}
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("Starting server", "address", s.cfg.BindAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.cfg.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
