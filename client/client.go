package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FleetCard is one fleet as rendered by the server.
type FleetCard struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ImageURL       string `json:"image_url"`
	Size           uint64 `json:"size"`
	SecondsLeft    int64  `json:"seconds_left"`
	Countdown      string `json:"countdown"`
	TotalPaid      string `json:"total_paid"`
	PendingRewards string `json:"pending_rewards"`
	RewardPerDay   string `json:"reward_per_day"`
	Color          string `json:"color"` // on-track, warning, expired
	Selected       bool   `json:"selected"`
}

// Fleets is an owner's fleet list.
type Fleets struct {
	Owner      string      `json:"owner"`
	Fleets     []FleetCard `json:"fleets"`
	Count      int         `json:"count"`
	Refreshing bool        `json:"refreshing"`
}

// Totals is an owner's reward summary. Fiat fields read "n/a" when the
// server has no price.
type Totals struct {
	Owner        string `json:"owner"`
	Pending      uint64 `json:"pending_raw"`
	PerDay       uint64 `json:"per_day_raw"`
	PendingAtlas string `json:"pending_atlas"`
	PerDayAtlas  string `json:"per_day_atlas"`
	PendingFiat  string `json:"pending_fiat"`
	PerDayFiat   string `json:"per_day_fiat"`
	Price        string `json:"price,omitempty"`
}

// ClaimResult is the outcome of a submitted claim.
type ClaimResult struct {
	BatchID    string   `json:"batch_id"`
	Owner      string   `json:"owner"`
	Message    string   `json:"message"`
	Signatures []string `json:"signatures"`
	Links      []string `json:"links"`
}

// ClaimRecord is one stored claim transaction.
type ClaimRecord struct {
	Signature string    `json:"signature"`
	Owner     string    `json:"owner"`
	BatchID   string    `json:"batch_id"`
	Status    string    `json:"status"`
	Error     *string   `json:"error,omitempty"`
	Slot      uint64    `json:"slot,omitempty"`
	Link      string    `json:"link"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notice is the server's current user notice.
type Notice struct {
	Kind    string   `json:"kind"` // info or error
	Message string   `json:"message"`
	List    []string `json:"list,omitempty"`
}

// Signatures reports the signatures of the last claim.
type Signatures struct {
	Signatures []struct {
		Hash   string `json:"hash"`
		Status string `json:"status"`
	} `json:"signatures"`
	Loading bool    `json:"loading"`
	Notice  *Notice `json:"notice,omitempty"`
}

// SignatureEvent is a status change streamed by the server.
type SignatureEvent struct {
	Signature   string    `json:"signature"`
	Owner       string    `json:"owner"`
	BatchID     string    `json:"batch_id"`
	Status      string    `json:"status"`
	Error       *string   `json:"error,omitempty"`
	Slot        uint64    `json:"slot,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the atlasclaim server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new atlasclaim client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Fleets returns an owner's fleets. The server loads them on first use.
func (c *Client) Fleets(ctx context.Context, owner string) (*Fleets, error) {
	var out Fleets
	if err := c.do(ctx, "GET", "/api/v1/fleets/"+url.PathEscape(owner), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh reloads an owner's fleets from chain.
func (c *Client) Refresh(ctx context.Context, owner string) (*Fleets, error) {
	var out Fleets
	if err := c.do(ctx, "POST", "/api/v1/fleets/"+url.PathEscape(owner)+"/refresh", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Toggle flips a fleet's selection and returns the updated card.
func (c *Client) Toggle(ctx context.Context, owner, fleetID string) (*FleetCard, error) {
	var out FleetCard
	path := "/api/v1/fleets/" + url.PathEscape(owner) + "/" + url.PathEscape(fleetID) + "/toggle"
	if err := c.do(ctx, "POST", path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Rewards returns an owner's reward totals.
func (c *Client) Rewards(ctx context.Context, owner string) (*Totals, error) {
	var out Totals
	if err := c.do(ctx, "GET", "/api/v1/rewards/"+url.PathEscape(owner), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimAll claims every fleet of the server's wallet.
func (c *Client) ClaimAll(ctx context.Context) (*ClaimResult, error) {
	return c.claim(ctx, map[string]interface{}{})
}

// ClaimFleets claims only the given fleets.
func (c *Client) ClaimFleets(ctx context.Context, fleetIDs []string) (*ClaimResult, error) {
	if fleetIDs == nil {
		fleetIDs = []string{}
	}
	return c.claim(ctx, map[string]interface{}{"fleet_ids": fleetIDs})
}

// ClaimSelected claims the fleets selected on the server.
func (c *Client) ClaimSelected(ctx context.Context) (*ClaimResult, error) {
	return c.claim(ctx, map[string]interface{}{"selected": true})
}

func (c *Client) claim(ctx context.Context, body map[string]interface{}) (*ClaimResult, error) {
	var out ClaimResult
	if err := c.do(ctx, "POST", "/api/v1/claims", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("claim submitted", "batch_id", out.BatchID, "transactions", len(out.Signatures))
	return &out, nil
}

// Claims lists stored claims. An empty owner lists every owner's.
func (c *Client) Claims(ctx context.Context, owner string, limit, offset int) ([]ClaimRecord, error) {
	q := url.Values{}
	if owner != "" {
		q.Set("owner", owner)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/claims"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Claims []ClaimRecord `json:"claims"`
	}
	if err := c.do(ctx, "GET", path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Claims, nil
}

// Signatures returns the signatures of the last claim and the current notice.
func (c *Client) Signatures(ctx context.Context) (*Signatures, error) {
	var out Signatures
	if err := c.do(ctx, "GET", "/api/v1/signatures", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DismissNotice closes the server's current notice.
func (c *Client) DismissNotice(ctx context.Context) error {
	return c.do(ctx, "DELETE", "/api/v1/notice", nil, http.StatusNoContent, nil)
}

// StreamSignatures calls fn for every signature event until ctx is done,
// the server closes the stream, or fn returns an error. An empty owner
// streams every owner. With history set, retained events are replayed first.
func (c *Client) StreamSignatures(ctx context.Context, owner string, history bool, fn func(*SignatureEvent) error) error {
	path := "/api/v1/stream/signatures"
	if owner != "" {
		path += "/" + url.PathEscape(owner)
	}
	if history {
		path += "?history=true"
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream has no deadline; only ctx ends it.
	streamClient := *c.httpClient
	streamClient.Timeout = 0
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	var event string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch event {
			case "signature":
				var e SignatureEvent
				if err := json.Unmarshal([]byte(data), &e); err != nil {
					c.logger.Warn("skipping malformed event", "error", err)
					continue
				}
				if err := fn(&e); err != nil {
					return err
				}
			case "error":
				return fmt.Errorf("stream error: %s", data)
			}
		case line == "":
			event = ""
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out when it is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
