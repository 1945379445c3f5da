package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brojonat/atlasclaim/client"
	"github.com/urfave/cli/v2"
)

func fleetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "fleets",
		Usage: "Inspect and select staked fleets",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List an owner's fleet cards",
				Aliases:   []string{"ls"},
				ArgsUsage: "[owner]",
				Action: func(c *cli.Context) error {
					owner, err := ownerArg(c, 0)
					if err != nil {
						return err
					}
					fleets, err := newAPIClient(c).Fleets(c.Context, owner)
					if err != nil {
						return fmt.Errorf("failed to list fleets: %w", err)
					}
					return output(c, fleets, func(w io.Writer) { printFleets(w, fleets) })
				},
			},
			{
				Name:      "refresh",
				Usage:     "Reload an owner's fleets from chain",
				ArgsUsage: "[owner]",
				Action: func(c *cli.Context) error {
					owner, err := ownerArg(c, 0)
					if err != nil {
						return err
					}
					fleets, err := newAPIClient(c).Refresh(c.Context, owner)
					if err != nil {
						return fmt.Errorf("failed to refresh fleets: %w", err)
					}
					return output(c, fleets, func(w io.Writer) { printFleets(w, fleets) })
				},
			},
			{
				Name:      "toggle",
				Usage:     "Select or deselect a fleet for claiming",
				ArgsUsage: "<fleet-id> [owner]",
				Action: func(c *cli.Context) error {
					if c.NArg() < 1 {
						return fmt.Errorf("fleet ID is required")
					}
					owner, err := ownerArg(c, 1)
					if err != nil {
						return err
					}
					card, err := newAPIClient(c).Toggle(c.Context, owner, c.Args().First())
					if err != nil {
						return fmt.Errorf("failed to toggle fleet: %w", err)
					}
					return output(c, card, func(w io.Writer) {
						fmt.Fprintf(w, "%s\tselected: %v\n", card.Name, card.Selected)
					})
				},
			},
		},
	}
}

func rewardsCommand() *cli.Command {
	return &cli.Command{
		Name:      "rewards",
		Usage:     "Show an owner's pending and daily reward totals",
		ArgsUsage: "[owner]",
		Action: func(c *cli.Context) error {
			owner, err := ownerArg(c, 0)
			if err != nil {
				return err
			}
			totals, err := newAPIClient(c).Rewards(c.Context, owner)
			if err != nil {
				return fmt.Errorf("failed to get rewards: %w", err)
			}
			return output(c, totals, func(w io.Writer) {
				fmt.Fprintln(w, "\tATLAS\tUSD")
				fmt.Fprintf(w, "Pending\t%s\t%s\n", totals.PendingAtlas, totals.PendingFiat)
				fmt.Fprintf(w, "Per day\t%s\t%s\n", totals.PerDayAtlas, totals.PerDayFiat)
				if totals.Price != "" {
					fmt.Fprintf(w, "Price\t\t%s\n", totals.Price)
				}
			})
		},
	}
}

func claimCommand() *cli.Command {
	return &cli.Command{
		Name:  "claim",
		Usage: "Claim pending rewards with the server's wallet",
		Description: `Claims every fleet by default. Use --fleet to claim specific fleets or
--selected to claim the fleets toggled on the dashboard.

Example:
  atlasclaim claim --fleet <fleet-id> --fleet <fleet-id>`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "fleet",
				Aliases: []string{"f"},
				Usage:   "Fleet ID to claim (can be specified multiple times)",
			},
			&cli.BoolFlag{
				Name:  "selected",
				Usage: "Claim the currently selected fleets",
			},
		},
		Action: func(c *cli.Context) error {
			fleetIDs := c.StringSlice("fleet")
			if len(fleetIDs) > 0 && c.Bool("selected") {
				return fmt.Errorf("--fleet and --selected are mutually exclusive")
			}

			cl := newAPIClient(c)
			var (
				result *client.ClaimResult
				err    error
			)
			switch {
			case len(fleetIDs) > 0:
				result, err = cl.ClaimFleets(c.Context, fleetIDs)
			case c.Bool("selected"):
				result, err = cl.ClaimSelected(c.Context)
			default:
				result, err = cl.ClaimAll(c.Context)
			}
			if err != nil {
				return fmt.Errorf("failed to claim: %w", err)
			}

			return output(c, result, func(w io.Writer) {
				fmt.Fprintln(w, result.Message)
				for _, link := range result.Links {
					fmt.Fprintf(w, "  %s\n", link)
				}
			})
		},
	}
}

func claimsCommand() *cli.Command {
	return &cli.Command{
		Name:      "claims",
		Usage:     "List an owner's recorded claim transactions",
		ArgsUsage: "[owner]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of claims",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Skip this many claims",
			},
		},
		Action: func(c *cli.Context) error {
			owner, err := ownerArg(c, 0)
			if err != nil {
				return err
			}
			claims, err := newAPIClient(c).Claims(c.Context, owner, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return fmt.Errorf("failed to list claims: %w", err)
			}
			return output(c, claims, func(w io.Writer) {
				fmt.Fprintln(w, "SIGNATURE\tSTATUS\tBATCH\tCREATED")
				for _, cl := range claims {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						cl.Signature,
						cl.Status,
						cl.BatchID,
						cl.CreatedAt.Format(time.RFC3339),
					)
				}
			})
		},
	}
}

func signaturesCommand() *cli.Command {
	return &cli.Command{
		Name:  "signatures",
		Usage: "Show the signatures of the last claim",
		Subcommands: []*cli.Command{
			{
				Name:  "dismiss",
				Usage: "Dismiss the current claim notice",
				Action: func(c *cli.Context) error {
					if err := newAPIClient(c).DismissNotice(c.Context); err != nil {
						return fmt.Errorf("failed to dismiss notice: %w", err)
					}
					fmt.Fprintln(os.Stderr, "Notice dismissed")
					return nil
				},
			},
		},
		Action: func(c *cli.Context) error {
			sigs, err := newAPIClient(c).Signatures(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get signatures: %w", err)
			}
			return output(c, sigs, func(w io.Writer) {
				if sigs.Notice != nil {
					fmt.Fprintf(w, "%s: %s\n", strings.ToUpper(sigs.Notice.Kind), sigs.Notice.Message)
					for _, item := range sigs.Notice.List {
						fmt.Fprintf(w, "  %s\n", item)
					}
				}
				fmt.Fprintln(w, "SIGNATURE\tSTATUS")
				for _, s := range sigs.Signatures {
					fmt.Fprintf(w, "%s\t%s\n", s.Hash, s.Status)
				}
				if sigs.Loading {
					fmt.Fprintln(w, "(tracking in progress)")
				}
			})
		},
	}
}

func printFleets(w io.Writer, fleets *client.Fleets) {
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tTIME LEFT\tPENDING\tPER DAY\tSTATUS\tSELECTED")
	for _, f := range fleets.Fleets {
		selected := ""
		if f.Selected {
			selected = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			f.ID,
			f.Name,
			f.Size,
			f.Countdown,
			f.PendingRewards,
			f.RewardPerDay,
			f.Color,
			selected,
		)
	}
	if fleets.Refreshing {
		fmt.Fprintln(w, "(refresh in progress)")
	}
}

// ownerArg reads the owner from positional argument i, falling back to
// the --owner flag.
func ownerArg(c *cli.Context, i int) (string, error) {
	if owner := c.Args().Get(i); owner != "" {
		return owner, nil
	}
	if owner := c.String("owner"); owner != "" {
		return owner, nil
	}
	return "", fmt.Errorf("owner address is required (pass it as an argument, use --owner or set OWNER_ADDRESS)")
}

func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: 2 * time.Minute}, logger)
}
