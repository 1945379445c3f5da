package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/brojonat/atlasclaim/service/claim"
	"github.com/brojonat/atlasclaim/service/temporal"
	"github.com/brojonat/atlasclaim/service/units"
	"github.com/urfave/cli/v2"
)

func scheduleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "How often to harvest",
			EnvVars: []string{"HARVEST_INTERVAL"},
			Value:   24 * time.Hour,
		},
		&cli.StringFlag{
			Name:  "min-claim",
			Usage: "Skip the claim while fewer ATLAS than this are pending",
			Value: "0",
		},
	}
}

// scheduleRequest holds the validated arguments of a schedule command.
type scheduleRequest struct {
	owner    string
	interval time.Duration
	minClaim uint64
}

func parseScheduleRequest(c *cli.Context) (*scheduleRequest, error) {
	owner, err := ownerArg(c, 0)
	if err != nil {
		return nil, err
	}
	interval := c.Duration("interval")
	if interval < time.Minute {
		return nil, fmt.Errorf("--interval must be at least 1m, got %v", interval)
	}
	minClaim, err := units.ParseAtlas(c.String("min-claim"))
	if err != nil {
		return nil, fmt.Errorf("--min-claim: %w", err)
	}
	return &scheduleRequest{owner: owner, interval: interval, minClaim: minClaim}, nil
}

func listSchedulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-schedules",
		Usage:   "List harvest schedules",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			schedules, err := tc.ListHarvestSchedules(c.Context)
			if err != nil {
				return err
			}

			if err := output(c, schedules, func(w io.Writer) {
				fmt.Fprintln(w, "SCHEDULE ID\tOWNER\tINTERVAL\tPAUSED\tNEXT RUN")
				for _, s := range schedules {
					next := "-"
					if s.NextAction != nil {
						next = s.NextAction.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\n", s.ID, s.Owner, s.Interval, s.Paused, next)
				}
			}); err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "\nTotal: %d schedules\n", len(schedules))
			return nil
		},
	}
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "create-schedule",
		Usage:     "Create a harvest schedule for an owner",
		ArgsUsage: "[owner]",
		Flags:     scheduleFlags(),
		Action: func(c *cli.Context) error {
			req, err := parseScheduleRequest(c)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.CreateHarvestSchedule(c.Context, req.owner, req.interval, req.minClaim); err != nil {
				return err
			}
			fmt.Printf("✓ Created harvest schedule for %s (every %v)\n", req.owner, req.interval)
			return nil
		},
	}
}

func upsertScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "upsert-schedule",
		Usage:     "Create or update a harvest schedule for an owner",
		ArgsUsage: "[owner]",
		Flags:     scheduleFlags(),
		Action: func(c *cli.Context) error {
			req, err := parseScheduleRequest(c)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.UpsertHarvestSchedule(c.Context, req.owner, req.interval, req.minClaim); err != nil {
				return err
			}
			fmt.Printf("✓ Harvest schedule for %s runs every %v\n", req.owner, req.interval)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete-schedule",
		Usage:     "Delete an owner's harvest schedule",
		Aliases:   []string{"rm"},
		ArgsUsage: "[owner]",
		Action: func(c *cli.Context) error {
			owner, err := ownerArg(c, 0)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeleteHarvestSchedule(c.Context, owner); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted harvest schedule for %s\n", owner)
			return nil
		},
	}
}

func harvestCommand() *cli.Command {
	return &cli.Command{
		Name:      "harvest",
		Usage:     "Run one harvest workflow now",
		ArgsUsage: "[owner]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "min-claim",
				Usage: "Skip the claim while fewer ATLAS than this are pending",
				Value: "0",
			},
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the workflow to finish and print its result",
			},
		},
		Action: func(c *cli.Context) error {
			owner, err := ownerArg(c, 0)
			if err != nil {
				return err
			}
			minClaim, err := units.ParseAtlas(c.String("min-claim"))
			if err != nil {
				return fmt.Errorf("--min-claim: %w", err)
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			workflowID, runID, err := tc.StartHarvest(c.Context, owner, minClaim)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Started workflow %s (run %s)\n", workflowID, runID)
			if !c.Bool("wait") {
				return nil
			}

			ctx, cancel := interruptContext(c)
			defer cancel()

			var result temporal.HarvestResult
			if err := tc.SDKClient().GetWorkflow(ctx, workflowID, runID).Get(ctx, &result); err != nil {
				return fmt.Errorf("harvest workflow failed: %w", err)
			}
			return output(c, result, func(w io.Writer) { printHarvestResult(w, &result) })
		},
	}
}

func printHarvestResult(w io.Writer, r *temporal.HarvestResult) {
	fmt.Fprintf(w, "Owner:\t%s\n", r.Owner)
	fmt.Fprintf(w, "Fleets:\t%d\n", r.Fleets)
	fmt.Fprintf(w, "Pending:\t%s ATLAS\n", units.FormatAtlas(r.Pending))
	if !r.Claimed {
		fmt.Fprintf(w, "Skipped:\t%s\n", r.Skipped)
		return
	}
	fmt.Fprintf(w, "Batch:\t%s\n", r.BatchID)
	for _, sig := range r.Signatures {
		fmt.Fprintf(w, "\t%s\n", claim.SolscanURL(sig))
	}
	fmt.Fprintf(w, "Confirmed:\t%d\n", r.Confirmed)
	fmt.Fprintf(w, "Failed:\t%d\n", r.Failed)
	fmt.Fprintf(w, "Processing:\t%d\n", r.Processing)
}

// Helper function to connect to Temporal
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		logger,
	)
}
