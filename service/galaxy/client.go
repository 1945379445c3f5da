package galaxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Ship is the catalog entry for one ship NFT.
type Ship struct {
	Mint  string `json:"mint"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Client loads the Star Atlas NFT catalog once and serves lookups by mint.
// A failed load is retried on the next lookup.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	byMint map[string]Ship
}

func NewClient(url string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, httpClient: httpClient, logger: logger}
}

// Ship returns the catalog entry for mint. Unknown mints yield ok=false.
func (c *Client) Ship(ctx context.Context, mint string) (Ship, bool, error) {
	catalog, err := c.catalog(ctx)
	if err != nil {
		return Ship{}, false, err
	}
	s, ok := catalog[mint]
	return s, ok, nil
}

func (c *Client) catalog(ctx context.Context) (map[string]Ship, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byMint != nil {
		return c.byMint, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ship catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ship catalog returned status %d", resp.StatusCode)
	}

	var ships []Ship
	if err := json.NewDecoder(resp.Body).Decode(&ships); err != nil {
		return nil, fmt.Errorf("failed to decode ship catalog: %w", err)
	}

	byMint := make(map[string]Ship, len(ships))
	for _, s := range ships {
		if s.Mint != "" {
			byMint[s.Mint] = s
		}
	}
	c.byMint = byMint
	c.logger.InfoContext(ctx, "loaded ship catalog", "ships", len(byMint))
	return byMint, nil
}
