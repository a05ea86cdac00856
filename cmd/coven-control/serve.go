// ABOUTME: The serve command: runs the control listener and the operator shell
// ABOUTME: Loads config, prints the startup banner and wires store, gateway and shell

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/gateway"
	"github.com/2389/coven-control/internal/logging"
	"github.com/2389/coven-control/internal/store"
)

var noShell bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control node and operator shell",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noShell, "no-shell", false, "run without the interactive operator shell")
}

func runServe(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(configPath)

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("Port:      %d\n", cfg.Server.Port)
	green.Print("    ▶ ")
	fmt.Printf("Key bits:  server %d, agent %d\n", cfg.Crypto.ServerKeyBits, cfg.Crypto.ClientKeyBits)
	if cfg.Server.HTTPAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Journal:   %s\n", cfg.Database.Path)
	}
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Logging.Debug {
		yellow.Println("    debug logging enabled")
	}
	fmt.Println()

	time.Sleep(cfg.UI.SleepTime)

	var opts []gateway.Option
	var st store.Store
	if cfg.Database.Path != "" {
		st, err = store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		opts = append(opts, gateway.WithStore(st))
	}

	kp, err := generateKey(cfg.Crypto.ServerKeyBits)
	if err != nil {
		closeStore(st)
		return err
	}
	opts = append(opts, gateway.WithKeyPair(kp))

	gw, err := gateway.New(cfg, logger, opts...)
	if err != nil {
		closeStore(st)
		return fmt.Errorf("creating gateway: %w", err)
	}

	logger.Info("starting coven-control",
		"config", path,
		"port", cfg.Server.Port,
		"http_addr", cfg.Server.HTTPAddr,
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.Run(ctx)
	})
	if !noShell {
		g.Go(func() error {
			return runShell(ctx, newShell(gw, os.Stdin, os.Stdout), cancel, logger)
		})
	}
	return g.Wait()
}

// runShell runs sh and stops the node when the operator exits. When stdin
// ends (a service manager attaching /dev/null, say) the node keeps serving.
func runShell(ctx context.Context, sh *shell, stop context.CancelFunc, logger *slog.Logger) error {
	err := sh.run(ctx)
	if errors.Is(err, io.EOF) {
		logger.Info("stdin closed, operator shell disabled")
		return nil
	}
	stop()
	return err
}

func closeStore(st store.Store) {
	if st != nil {
		_ = st.Close()
	}
}
