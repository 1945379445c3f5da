package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "atlasclaim",
		Usage: "Star Atlas SCORE fleet reward CLI",
		Description: `A command-line tool for the atlasclaim service.

Use this CLI to inspect fleets and rewards, claim pending ATLAS, follow
claim signatures, and manage the database, NATS stream and Temporal
harvest schedules.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Client commands (HTTP API)
			fleetsCommand(),
			rewardsCommand(),
			claimCommand(),
			claimsCommand(),
			signaturesCommand(),
			priceCommand(),
			// SSE streaming commands
			sseCommands(),
			// Database commands
			{
				Name:  "db",
				Usage: "Database commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					listClaimsCommand(),
					getClaimCommand(),
					pruneClaimsCommand(),
				},
			},
			// Temporal schedule and workflow commands
			{
				Name:  "temporal",
				Usage: "Temporal harvest schedule commands",
				Subcommands: []*cli.Command{
					listSchedulesCommand(),
					createScheduleCommand(),
					upsertScheduleCommand(),
					deleteScheduleCommand(),
					harvestCommand(),
				},
			},
			// NATS signature streaming commands
			{
				Name:  "nats",
				Usage: "NATS signature streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: globalFlags(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server-url",
			Usage:   "atlasclaim server URL",
			EnvVars: []string{"ATLASCLAIM_SERVER_URL", "SERVER_URL"},
			Value:   "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:    "owner",
			Usage:   "Default wallet owner address",
			EnvVars: []string{"OWNER_ADDRESS"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "temporal-host",
			Usage:   "Temporal server address",
			EnvVars: []string{"TEMPORAL_HOST"},
			Value:   "localhost:7233",
		},
		&cli.StringFlag{
			Name:    "temporal-namespace",
			Usage:   "Temporal namespace",
			EnvVars: []string{"TEMPORAL_NAMESPACE"},
			Value:   "default",
		},
		&cli.StringFlag{
			Name:    "temporal-task-queue",
			Usage:   "Temporal task queue the harvest worker polls",
			EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
			Value:   "atlasclaim-harvest",
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Usage:   "NATS server URL",
			EnvVars: []string{"NATS_URL"},
			Value:   "nats://localhost:4222",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
		&cli.StringFlag{
			Name:  "jq",
			Usage: "jq expression applied to the JSON output",
		},
	}
}
