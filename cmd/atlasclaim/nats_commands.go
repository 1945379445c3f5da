package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/brojonat/atlasclaim/client"
	natspkg "github.com/brojonat/atlasclaim/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand subscribes to claim signature events directly on NATS.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to claim signature events",
		ArgsUsage: "[owner]",
		Description: `Subscribe to signature status changes published to NATS JetStream.

Events are published to the subject: claims.{owner}. Without an owner
every owner's events are shown.

Example:
  atlasclaim nats subscribe 9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Replay retained events before live ones",
			},
		},
		Action: func(c *cli.Context) error {
			opts := natspkg.SubscribeOptions{
				Owner:      c.Args().First(),
				DeliverAll: c.Bool("history"),
			}
			jsonOutput := c.Bool("json")

			nc, err := natspkg.Connect(c.String("nats-url"), "atlasclaim-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			ctx, cancel := interruptContext(c)
			defer cancel()

			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Subscribed to %s (Ctrl+C to stop)\n\n", opts.FilterSubject())
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			return natspkg.Subscribe(ctx, js, opts, logger, func(e *natspkg.SignatureEvent) error {
				return printSignatureEvent(c.App.Writer, &client.SignatureEvent{
					Signature:   e.Signature,
					Owner:       e.Owner,
					BatchID:     e.BatchID,
					Status:      e.Status,
					Error:       e.Error,
					Slot:        e.Slot,
					PublishedAt: e.PublishedAt,
				}, jsonOutput)
			})
		},
	}
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the CLAIMS JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  atlasclaim nats inspect-stream`,
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "atlasclaim-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(info, "", "  ")
				fmt.Fprintln(c.App.Writer, string(data))
				return nil
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
