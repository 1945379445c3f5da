package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/itchyny/gojq"
	"github.com/shopspring/decimal"
)

// Client fetches a token's fiat price from a JSON endpoint and extracts it
// with a jq query, so the same code serves any CoinGecko id or currency.
type Client struct {
	url        string
	code       *gojq.Code
	query      string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient compiles query and returns a client for url.
// If httpClient is nil, a client with a 10 second timeout is used.
func NewClient(url, query string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price query %q: %w", query, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile price query %q: %w", query, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		url:        url,
		code:       code,
		query:      query,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}, nil
}

// Fetch performs one request. There is no retry.
func (c *Client) Fetch(ctx context.Context) (decimal.Decimal, error) {
	p, err := c.fetch(ctx)
	if c.metrics != nil {
		status := "success"
		f, _ := p.Float64()
		if err != nil {
			status = "error"
		}
		c.metrics.RecordPriceFetch(status, f)
	}
	if err != nil {
		return decimal.Zero, err
	}
	c.logger.DebugContext(ctx, "fetched price", "price", p.String())
	return p, nil
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("price endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price response: %w", err)
	}

	iter := c.code.RunWithContext(ctx, doc)
	v, ok := iter.Next()
	if !ok {
		return decimal.Zero, fmt.Errorf("price query %q produced no result", c.query)
	}
	if err, isErr := v.(error); isErr {
		return decimal.Zero, fmt.Errorf("price query %q failed: %w", c.query, err)
	}

	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	default:
		return decimal.Zero, fmt.Errorf("price query %q returned %T, want a number", c.query, v)
	}
}
