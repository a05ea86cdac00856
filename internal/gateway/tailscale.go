// ABOUTME: Optional tailnet listener for the control port using tsnet
// ABOUTME: Agents on the tailnet dial <hostname>:<port> instead of a public address

package gateway

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/coven-control/internal/config"
)

// tailscaleStateFile is where tsnet persists node identity inside its state dir.
const tailscaleStateFile = "tailscaled.state"

// newTailscaleServer builds the tsnet node for cfg. Each hostname gets its own
// state directory under $XDG_DATA_HOME/coven-control/tailscale unless one is
// configured. An auth key (config, then TS_AUTHKEY) is only required for a
// node that has not joined the tailnet yet.
func newTailscaleServer(cfg config.TailscaleConfig) (*tsnet.Server, error) {
	dir := cfg.StateDir
	if dir == "" {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("locating tailscale state (set tailscale.state_dir): %w", err)
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dir = filepath.Join(dataDir, "coven-control", "tailscale", cfg.Hostname)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey := cfg.AuthKey
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		if _, err := os.Stat(filepath.Join(dir, tailscaleStateFile)); err != nil {
			return nil, fmt.Errorf("tailscale node %q has no state in %s: set tailscale.auth_key or TS_AUTHKEY", cfg.Hostname, dir)
		}
	}

	return &tsnet.Server{
		Hostname:  cfg.Hostname,
		Dir:       dir,
		Ephemeral: cfg.Ephemeral,
		AuthKey:   authKey,
	}, nil
}

// setupTailscale brings up a tsnet node and routes Start through it.
func (g *Gateway) setupTailscale(ctx context.Context) error {
	ts, err := newTailscaleServer(g.config.Tailscale)
	if err != nil {
		return err
	}

	g.logger.Info("starting tailscale node", "hostname", ts.Hostname, "state_dir", ts.Dir, "ephemeral", ts.Ephemeral)
	status, err := ts.Up(ctx)
	if err != nil {
		_ = ts.Close()
		return fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(ts.Hostname, status)

	g.mu.Lock()
	g.tsnetServer = ts
	g.listen = func(port int) (net.Listener, error) {
		return ts.Listen("tcp", ":"+strconv.Itoa(port))
	}
	g.mu.Unlock()
	return nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

func (g *Gateway) closeTailscale() {
	g.mu.Lock()
	ts := g.tsnetServer
	g.tsnetServer = nil
	g.listen = g.listenTCP
	g.mu.Unlock()

	if ts == nil {
		return
	}
	if err := ts.Close(); err != nil {
		g.logger.Warn("tailscale shutdown", "error", err)
	}
}
