package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brojonat/atlasclaim/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "✓ Schema applied")
			return nil
		},
	}
}

func listClaimsCommand() *cli.Command {
	return &cli.Command{
		Name:      "list-claims",
		Usage:     "List recorded claim transactions",
		Aliases:   []string{"ls"},
		ArgsUsage: "[owner]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "processing",
				Usage: "Only claims still awaiting a final status (all owners unless one is given)",
			},
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
			var (
				owner string
				err   error
			)
			if c.Bool("processing") {
				owner = c.Args().First()
			} else if owner, err = ownerArg(c, 0); err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			var claims []*db.Claim
			if c.Bool("processing") {
				claims, err = store.ListProcessingClaims(c.Context, owner)
			} else {
				claims, err = store.ListClaims(c.Context, db.ListClaimsParams{
					Owner:  owner,
					Limit:  int32(c.Int("limit")),
					Offset: int32(c.Int("offset")),
				})
			}
			if err != nil {
				return err
			}

			if err := output(c, claims, func(w io.Writer) {
				fmt.Fprintln(w, "SIGNATURE\tOWNER\tSTATUS\tSLOT\tCREATED\tUPDATED")
				for _, cl := range claims {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
						cl.Signature,
						cl.Owner,
						cl.Status,
						cl.Slot,
						cl.CreatedAt.Format(time.RFC3339),
						cl.UpdatedAt.Format(time.RFC3339),
					)
				}
			}); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\nTotal: %d claims\n", len(claims))
			return nil
		},
	}
}

func getClaimCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-claim",
		Usage:     "Get a claim by signature",
		Aliases:   []string{"get"},
		ArgsUsage: "<signature>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: signature")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			claim, err := store.GetClaim(c.Context, c.Args().First())
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("claim %s not found", c.Args().First())
			}
			if err != nil {
				return fmt.Errorf("failed to get claim: %w", err)
			}

			return output(c, claim, func(w io.Writer) {
				fmt.Fprintf(w, "Signature:\t%s\n", claim.Signature)
				fmt.Fprintf(w, "Owner:\t%s\n", claim.Owner)
				fmt.Fprintf(w, "Batch:\t%s\n", claim.BatchID)
				fmt.Fprintf(w, "Status:\t%s\n", claim.Status)
				if claim.Error != nil {
					fmt.Fprintf(w, "Error:\t%s\n", *claim.Error)
				}
				fmt.Fprintf(w, "Slot:\t%d\n", claim.Slot)
				fmt.Fprintf(w, "Created:\t%s\n", claim.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(w, "Updated:\t%s\n", claim.UpdatedAt.Format(time.RFC3339))
			})
		},
	}
}

func pruneClaimsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete settled claims older than a given age",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "older-than",
				Usage: "Minimum age of deleted claims",
				Value: 30 * 24 * time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			age := c.Duration("older-than")
			if age <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			n, err := store.DeleteClaimsBefore(c.Context, time.Now().Add(-age))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Deleted %d claims\n", n)
			return nil
		},
	}
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}
