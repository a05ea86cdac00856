// ABOUTME: Key generation helpers and the keygen subcommand
// ABOUTME: Retries incompatible prime pairs behind a spinner

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-control/internal/config"
	"github.com/2389/coven-control/internal/keys"
)

// maxKeygenAttempts bounds retries when e shares a factor with phi.
const maxKeygenAttempts = 32

var keygenBits int

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate and print an RSA key pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bits := keygenBits
		if bits == 0 {
			cfg, err := config.LoadOrDefault(config.ResolvePath(configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			bits = cfg.Crypto.ServerKeyBits
		}
		if bits < config.MinKeyBits {
			return fmt.Errorf("--bits must be at least %d, got %d", config.MinKeyBits, bits)
		}

		kp, err := generateKey(bits)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan)
		out := cmd.OutOrStdout()
		cyan.Fprint(out, "Fingerprint: ")
		fmt.Fprintln(out, kp.Public.Fingerprint())
		cyan.Fprint(out, "Bits:        ")
		fmt.Fprintln(out, kp.Public.Bits())
		cyan.Fprint(out, "e:           ")
		fmt.Fprintln(out, kp.Public.E)
		cyan.Fprint(out, "d:           ")
		fmt.Fprintln(out, kp.Private.D)
		cyan.Fprint(out, "n:           ")
		fmt.Fprintln(out, kp.Public.N)
		return nil
	},
}

func init() {
	keygenCmd.Flags().IntVarP(&keygenBits, "bits", "b", 0, "modulus size in bits (default crypto.server_key_bits)")
}

// generateKey generates a key pair, drawing fresh primes whenever the public
// exponent is not coprime with phi.
func generateKey(bits int) (*keys.KeyPair, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = fmt.Sprintf(" Generating %d-bit RSA key...", bits)
	_ = s.Color("cyan")
	s.Start()
	defer s.Stop()

	for attempt := 1; ; attempt++ {
		kp, err := keys.GenerateKeyPair(bits)
		if err == nil {
			s.FinalMSG = color.GreenString("✓") + fmt.Sprintf(" %d-bit RSA key ready\n", bits)
			return kp, nil
		}
		if !errors.Is(err, keys.ErrIncompatiblePublicExponent) || attempt >= maxKeygenAttempts {
			s.FinalMSG = color.RedString("✗") + " Key generation failed\n"
			return nil, fmt.Errorf("generating %d-bit key: %w", bits, err)
		}
	}
}
