package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/api"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/config"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/core"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/factory"
	"github.com/hasirciogluhq/xtransform-server/cmd/server/internal/logger"
)

func main() {
	// Load configuration from environment; the first argument overrides the port
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		logger.Fatal("Server error", "error", err)
	}
	logger.Info("Server stopped")
}

// run serves until ctx is cancelled. Every resource it acquires is released
// before it returns.
func run(ctx context.Context, cfg *config.Config) error {
	logger.Info("Starting xtransform-server...",
		"addr", cfg.ListenAddr(),
		"transform", cfg.Transform,
		"status_interval", cfg.StatusInterval,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"tls_enabled", cfg.TLSEnabled)

	transform, err := factory.NewTransform(cfg.Transform)
	if err != nil {
		return fmt.Errorf("failed to create transform: %w", err)
	}

	// Start TCP listener
	listener, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to start listener on %s: %w", cfg.ListenAddr(), err)
	}

	if cfg.TLSEnabled {
		tlsConfig, release, err := setupTLS(ctx, cfg)
		if err != nil {
			listener.Close()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		defer release()
		listener = tls.NewListener(listener, tlsConfig)
		logger.Info("TLS enabled and configured", "mode", cfg.TLSMode)
	}
	logger.Info("Creating new server", "addr", listener.Addr().String())

	var healthServer *api.HealthServer
	var sinks []core.StatusSink
	if cfg.HealthEnabled {
		healthServer = api.NewHealthServer(":" + cfg.HealthServerPort)
		sinks = append(sinks, healthServer)
	}

	server := core.NewServer(listener, transform, core.Options{
		StatusInterval:  cfg.StatusInterval,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger.Default(),
		Sinks:           sinks,
	})

	if healthServer != nil {
		healthServer.SetStatusSource(server.Registry())
		healthServer.Start()
		healthServer.SetReady(true)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(server) })
	g.Go(func() error {
		<-gctx.Done()
		if healthServer != nil {
			healthServer.SetReady(false)
		}
		server.Shutdown()
		if healthServer != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthServer.Stop(stopCtx); err != nil {
				logger.Warn("Health server shutdown error", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// serve runs the accept loop. A server shut down before Serve got going is a
// clean stop, not a failure.
func serve(server *core.Server) error {
	if err := server.Serve(); err != nil && !errors.Is(err, core.ErrServerClosed) {
		return err
	}
	return nil
}

func setupTLS(ctx context.Context, cfg *config.Config) (*tls.Config, func(), error) {
	var clientset k8s.Interface
	if cfg.TLSMode == config.TLSModeKubernetes {
		var err error
		clientset, err = factory.NewKubeClientFactory(cfg).Create()
		if err != nil {
			return nil, nil, err
		}
	}

	tlsFactory := factory.NewTLSFactory(cfg)
	provider, err := tlsFactory.Create(clientset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create TLS provider: %w", err)
	}

	// Ensure certificate exists (load or generate)
	if err := tlsFactory.EnsureCertificate(ctx, provider); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure certificate: %w", err)
	}

	return tlsFactory.ServerConfig(ctx, provider, clientset)
}
