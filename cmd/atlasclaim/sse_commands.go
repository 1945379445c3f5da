package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/atlasclaim/client"
	"github.com/urfave/cli/v2"
)

func sseCommands() *cli.Command {
	return &cli.Command{
		Name:  "sse",
		Usage: "Server-Sent Events (SSE) streaming commands",
		Subcommands: []*cli.Command{
			streamCommand(),
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream claim signature status changes via SSE (HTTP)",
		ArgsUsage: "[owner]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Replay retained events before live ones",
			},
		},
		Action: func(c *cli.Context) error {
			owner := c.Args().First()
			jsonOutput := c.Bool("json")

			ctx, cancel := interruptContext(c)
			defer cancel()

			if !jsonOutput {
				if owner != "" {
					fmt.Fprintf(os.Stderr, "Streaming signatures for owner: %s\n", owner)
				} else {
					fmt.Fprintf(os.Stderr, "Streaming signatures for all owners\n")
				}
				fmt.Fprintf(os.Stderr, "(Ctrl+C to stop)\n\n")
			}

			err := newAPIClient(c).StreamSignatures(ctx, owner, c.Bool("history"), func(e *client.SignatureEvent) error {
				return printSignatureEvent(c.App.Writer, e, jsonOutput)
			})
			if err != nil {
				return fmt.Errorf("signature stream failed: %w", err)
			}
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nDisconnected\n")
			}
			return nil
		},
	}
}

// printSignatureEvent prints one event as a JSON line or a short human line.
func printSignatureEvent(w io.Writer, e *client.SignatureEvent, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	line := fmt.Sprintf("%s  %-10s  %s  %s",
		e.PublishedAt.Format(time.RFC3339),
		e.Status,
		e.Signature,
		e.Owner,
	)
	if e.Error != nil {
		line += "  error: " + *e.Error
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// interruptContext returns a context cancelled on SIGINT or SIGTERM.
func interruptContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}
