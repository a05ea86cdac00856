// ABOUTME: Long-running entry point that serves the control listener and HTTP endpoints
// ABOUTME: Coordinates listeners with errgroup and shuts everything down on cancel

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run starts the gateway and blocks until ctx is canceled or a server fails.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	if g.config.Tailscale.Enabled {
		if err := g.setupTailscale(ctx); err != nil {
			return err
		}
	}

	if !g.Start() {
		g.closeTailscale()
		return fmt.Errorf("starting control listener on port %d: %w", g.Port(), ErrNotRunning)
	}

	eg, ctx := errgroup.WithContext(ctx)

	var httpServer *http.Server
	if g.config.Server.HTTPAddr != "" {
		ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
		if err != nil {
			g.Close()
			g.closeTailscale()
			return fmt.Errorf("listening on HTTP address: %w", err)
		}
		httpServer = &http.Server{
			Handler:           g.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		eg.Go(func() error {
			g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.shutdown(httpServer)
	})

	return eg.Wait()
}

// shutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	g.Close()
	g.closeTailscale()
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	return errors.Join(errs...)
}
