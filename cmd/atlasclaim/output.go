package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// output writes v as JSON when --json or --jq is set, and otherwise hands
// a tabwriter to table for the human-readable form.
func output(c *cli.Context, v interface{}, table func(w io.Writer)) error {
	if query := c.String("jq"); query != "" {
		return outputJQ(c.App.Writer, v, query)
	}
	if c.Bool("json") || table == nil {
		return outputJSON(c.App.Writer, v)
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJQ runs query against the JSON form of v and prints every result.
// String results are printed raw, everything else as compact JSON.
func outputJQ(w io.Writer, v interface{}, query string) error {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", query, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", query, err)
	}

	// gojq only understands the generic JSON types.
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to unmarshal output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter error: %w", err)
		}
		if s, isString := result.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		line, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(line))
	}
}
