// ABOUTME: health and agents subcommands probing a running control node over HTTP
// ABOUTME: Reads server.http_addr from config and renders /health and /api/agents

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-control/internal/config"
)

const probeTimeout = 5 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running control node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := probeBaseURL()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()

		if err := checkHealth(ctx, http.DefaultClient, base); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "healthy")
		return nil
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents connected to a running control node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := probeBaseURL()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
		defer cancel()

		agents, err := fetchAgents(ctx, http.DefaultClient, base)
		if err != nil {
			return err
		}
		printAgents(cmd.OutOrStdout(), agents)
		return nil
	},
}

// remoteAgent mirrors the /api/agents JSON document.
type remoteAgent struct {
	Name        string    `json:"name"`
	SessionID   string    `json:"session_id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Fingerprint string    `json:"fingerprint"`
	KeyBits     int       `json:"key_bits"`
	Focused     bool      `json:"focused"`
}

func probeBaseURL() (string, error) {
	cfg, err := config.LoadOrDefault(config.ResolvePath(configPath))
	if err != nil {
		return "", fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.HTTPAddr == "" {
		return "", fmt.Errorf("server.http_addr is not configured")
	}
	return "http://" + cfg.Server.HTTPAddr, nil
}

func checkHealth(ctx context.Context, client *http.Client, base string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func fetchAgents(ctx context.Context, client *http.Client, base string) ([]remoteAgent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/agents", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agents request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listing agents: status %d: %s", resp.StatusCode, body)
	}

	var agents []remoteAgent
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		return nil, fmt.Errorf("decoding agents: %w", err)
	}
	return agents, nil
}

func printAgents(out io.Writer, agents []remoteAgent) {
	if len(agents) == 0 {
		color.New(color.FgYellow).Fprintln(out, "No agents connected")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tADDRESS\tBITS\tFINGERPRINT\tCONNECTED")
	fmt.Fprintln(w, "  ----\t-------\t----\t-----------\t---------")
	for _, a := range agents {
		marker := " "
		if a.Focused {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\t%d\t%s\t%s\n",
			marker, a.Name, a.RemoteAddr, a.KeyBits, a.Fingerprint, a.ConnectedAt.Local().Format("Jan 02 15:04:05"))
	}
	w.Flush()
}
