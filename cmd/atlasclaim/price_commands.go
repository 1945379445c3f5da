package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/atlasclaim/service/config"
	"github.com/brojonat/atlasclaim/service/price"
	"github.com/brojonat/atlasclaim/service/units"
	"github.com/urfave/cli/v2"
)

type priceOutput struct {
	Price string `json:"price"`
	Atlas string `json:"atlas,omitempty"`
	Fiat  string `json:"fiat,omitempty"`
}

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Fetch the ATLAS fiat price",
		Description: `Fetches the price directly from the price feed, without the server.

Example:
  atlasclaim price --amount 1500`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "price-url",
				Usage:   "Price endpoint",
				EnvVars: []string{"PRICE_URL"},
				Value:   config.DefaultPriceURL,
			},
			&cli.StringFlag{
				Name:    "price-query",
				Usage:   "jq query extracting the price from the response",
				EnvVars: []string{"PRICE_QUERY"},
				Value:   config.DefaultPriceQuery,
			},
			&cli.StringFlag{
				Name:  "amount",
				Usage: "ATLAS amount to convert to fiat",
			},
		},
		Action: func(c *cli.Context) error {
			var raw uint64
			if amount := c.String("amount"); amount != "" {
				var err error
				if raw, err = units.ParseAtlas(amount); err != nil {
					return err
				}
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
			}))
			feed, err := price.NewClient(c.String("price-url"), c.String("price-query"), nil, nil, logger)
			if err != nil {
				return err
			}
			p, err := feed.Fetch(c.Context)
			if err != nil {
				return fmt.Errorf("failed to fetch price: %w", err)
			}

			out := priceOutput{Price: p.String()}
			if c.String("amount") != "" {
				out.Atlas = units.FormatAtlas(raw)
				out.Fiat = units.Fiat(raw, p)
			}
			return output(c, out, func(w io.Writer) {
				fmt.Fprintf(w, "Price:\t%s\n", out.Price)
				if out.Atlas != "" {
					fmt.Fprintf(w, "%s ATLAS:\t%s\n", out.Atlas, out.Fiat)
				}
			})
		},
	}
}
