// ABOUTME: Agent run loop wiring config, logging and the uplink connection
// ABOUTME: Forwards stdin to the control node and prints what the operator sends

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/keys"
	"github.com/2389/coven-control/internal/logging"
	"github.com/2389/coven-control/internal/uplink"
)

func runAgent(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(configPath)
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.Setup(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("Control:   %s\n", cfg.DialAddr())
	green.Print("    ▶ ")
	fmt.Printf("Key bits:  %d\n\n", cfg.Crypto.ClientKeyBits)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cyan := color.New(color.FgCyan)
	conn := uplink.New(cfg, logger,
		uplink.WithMessageHandler(func(text string) {
			cyan.Print("operator> ")
			fmt.Println(text)
		}),
		uplink.WithStateHandler(func(s uplink.State) {
			if s == uplink.Ready {
				green.Println("connected, type a line to send it")
			}
		}),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runUplink(ctx, conn)
	})
	g.Go(func() error {
		return forwardLines(ctx, os.Stdin, conn.Send, os.Stderr)
	})
	return g.Wait()
}

// runUplink runs conn, starting over when the drawn primes are unusable.
func runUplink(ctx context.Context, conn *uplink.Conn) error {
	for {
		err := conn.Run(ctx)
		if !errors.Is(err, keys.ErrIncompatiblePublicExponent) {
			return err
		}
	}
}

// forwardLines sends each non-empty line of r until EOF or ctx ends.
// Lines typed before the handshake completes are reported to errOut and dropped.
func forwardLines(ctx context.Context, r io.Reader, send func(string) error, errOut io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	yellow := color.New(color.FgYellow)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-scanErr:
			return err
		case line := <-lines:
			if line == "" {
				continue
			}
			err := send(line)
			switch {
			case errors.Is(err, uplink.ErrNotReady):
				yellow.Fprintln(errOut, "not connected yet, line dropped")
			case err != nil:
				yellow.Fprintf(errOut, "send failed: %v\n", err)
			}
		}
	}
}
