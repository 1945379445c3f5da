package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

type healthStatus struct {
	Status       string `json:"status"`
	Signer       string `json:"signer,omitempty"`
	ClaimHistory bool   `json:"claim_history"`
	Streaming    bool   `json:"streaming"`
	Claiming     bool   `json:"claiming"`
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set ATLASCLAIM_SERVER_URL env var or use --server-url)")
			}

			client := &http.Client{
				Timeout: c.Duration("timeout"),
			}

			resp, err := client.Get(serverURL + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
			}

			var health healthStatus
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return fmt.Errorf("failed to decode health response: %w", err)
			}

			return output(c, health, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Server is healthy (status: %d)\n", resp.StatusCode)
				fmt.Fprintf(w, "  URL:           %s\n", serverURL)
				signer := health.Signer
				if signer == "" {
					signer = "none (read-only)"
				}
				fmt.Fprintf(w, "  Signer:        %s\n", signer)
				fmt.Fprintf(w, "  Claim history: %s\n", enabled(health.ClaimHistory))
				fmt.Fprintf(w, "  Streaming:     %s\n", enabled(health.Streaming))
				if health.Claiming {
					fmt.Fprintln(w, "  A claim is in progress")
				}
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "atlasclaim CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
