// ABOUTME: Entry point for the coven-control node
// ABOUTME: Cobra root command with serve, keygen, health and agents subcommands

package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __         ___ ___  _ __ | |_ _ __ ___ | |
 / __/ _ \ \ / / _ \ '_ \ _____ / __/ _ \| '_ \| __| '__/ _ \| |
| (_| (_) \ V /  __/ | | |_____| (_| (_) | | | | |_| | | (_) | |
 \___\___/ \_/ \___|_| |_|      \___\___/|_| |_|\__|_|  \___/|_|
`

var configPath string

var rootCmd = &cobra.Command{
	Use:           "coven-control",
	Short:         "Control node for encrypted coven agents",
	Long:          "coven-control accepts agent connections, exchanges RSA keys with each agent and lets an operator talk to them from an interactive shell.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/coven/control.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(agentsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
