// ABOUTME: Entry point for the coven-agent node
// ABOUTME: Connects to the control node, answers pings and relays stdin lines

package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set by goreleaser at build time.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "coven-agent",
	Short:         "Agent node that connects to a coven control node",
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAgent,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/coven/control.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
