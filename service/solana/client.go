package solana

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/ratelimit"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)

	SendRawTransactionWithOpts(ctx context.Context, rawTx []byte, opts rpc.TransactionOpts) (solana.Signature, error)

	GetSignatureStatuses(
		ctx context.Context,
		searchTransactionHistory bool,
		signatures ...solana.Signature,
	) (*rpc.GetSignatureStatusesResult, error)

	GetProgramAccountsWithOpts(
		ctx context.Context,
		program solana.PublicKey,
		opts *rpc.GetProgramAccountsOpts,
	) (rpc.GetProgramAccountsResult, error)

	GetMultipleAccountsWithOpts(
		ctx context.Context,
		accounts []solana.PublicKey,
		opts *rpc.GetMultipleAccountsOpts,
	) (*rpc.GetMultipleAccountsResult, error)
}

// maxAttempts bounds retries of rate limited or failing read calls.
// Submissions are never retried here; a resend could double-spend fees.
const maxAttempts = 3

// Client wraps the RPC client with domain-specific operations,
// request pacing, retries and metrics.
type Client struct {
	rpc      RPCClient
	limiter  ratelimit.Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", "helius")
	backoff  func(attempt int, rateLimited bool) time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. A nil limiter means unlimited;
// a nil metrics disables recording.
func NewClient(rpcClient RPCClient, endpoint string, limiter ratelimit.Limiter, m *metrics.Metrics, logger *slog.Logger) *Client {
	if limiter == nil {
		limiter = ratelimit.NewUnlimited()
	}
	return &Client{
		rpc:      rpcClient,
		limiter:  limiter,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
		backoff:  defaultBackoff,
	}
}

// NewClientFromURLs picks one of the configured endpoints at random and
// builds a rate limited client for it. rps <= 0 disables pacing.
func NewClientFromURLs(urls []string, rps int, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	rpcURL, err := SelectRandomEndpoint(urls)
	if err != nil {
		return nil, err
	}

	var limiter ratelimit.Limiter
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}

	endpoint := EndpointLabel(rpcURL)
	logger.Info("initialized solana RPC client",
		"endpoint", endpoint,
		"total_endpoints", len(urls),
		"rate_limit", rps,
	)
	return NewClient(NewRPCClient(rpcURL), endpoint, limiter, m, logger), nil
}

func defaultBackoff(attempt int, rateLimited bool) time.Duration {
	if rateLimited {
		return time.Duration(2<<uint(attempt)) * time.Second // 2s, 4s, 8s
	}
	return time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s
}

// LatestBlockhash returns a recent finalized blockhash for building transactions.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := withRetry(ctx, c, "GetLatestBlockhash", func() (*rpc.GetLatestBlockhashResult, error) {
		return c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// SendTransaction serializes a signed transaction and submits it once.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	c.limiter.Take()
	start := time.Now()
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	c.record("SendRawTransaction", err, time.Since(start))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to send transaction", "error", err)
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.DebugContext(ctx, "transaction submitted", "signature", sig.String())
	return sig, nil
}

// SignatureStatuses looks up the current status of each signature,
// preserving input order. Unknown signatures are still processing.
func (c *Client) SignatureStatuses(ctx context.Context, signatures []solana.Signature) ([]SignatureStatus, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	out, err := withRetry(ctx, c, "GetSignatureStatuses", func() (*rpc.GetSignatureStatusesResult, error) {
		return c.rpc.GetSignatureStatuses(ctx, true, signatures...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get signature statuses: %w", err)
	}

	statuses := make([]SignatureStatus, len(signatures))
	for i, sig := range signatures {
		statuses[i] = SignatureStatus{Signature: sig.String(), Status: TxStatusProcessing}
		if out == nil || i >= len(out.Value) || out.Value[i] == nil {
			continue
		}
		statuses[i] = statusToDomain(sig, out.Value[i])
	}
	return statuses, nil
}

// ProgramAccounts returns all accounts owned by program matching the filters.
func (c *Client) ProgramAccounts(ctx context.Context, program solana.PublicKey, filters []rpc.RPCFilter) (rpc.GetProgramAccountsResult, error) {
	out, err := withRetry(ctx, c, "GetProgramAccounts", func() (rpc.GetProgramAccountsResult, error) {
		return c.rpc.GetProgramAccountsWithOpts(ctx, program, &rpc.GetProgramAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
			Filters:    filters,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get program accounts: %w", err)
	}

	c.logger.DebugContext(ctx, "fetched program accounts",
		"program", program.String(),
		"count", len(out),
	)
	return out, nil
}

// MultipleAccounts fetches raw account data, one entry per key. Missing
// accounts come back as nil entries.
func (c *Client) MultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	out, err := withRetry(ctx, c, "GetMultipleAccounts", func() (*rpc.GetMultipleAccountsResult, error) {
		return c.rpc.GetMultipleAccountsWithOpts(ctx, keys, &rpc.GetMultipleAccountsOpts{
			Commitment: rpc.CommitmentConfirmed,
			Encoding:   solana.EncodingBase64,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get multiple accounts: %w", err)
	}
	if out == nil {
		return make([]*rpc.Account, len(keys)), nil
	}
	return out.Value, nil
}

// withRetry paces, times and retries a read-only RPC call.
// Rate limit responses (429) back off longer than other errors.
func withRetry[T any](ctx context.Context, c *Client, method string, call func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := range maxAttempts {
		c.limiter.Take()
		start := time.Now()
		out, err = call()
		c.record(method, err, time.Since(start))
		if err == nil {
			return out, nil
		}
		if attempt == maxAttempts-1 {
			break
		}

		rateLimited := strings.Contains(err.Error(), "429")
		reason := "timeout_or_error"
		if rateLimited {
			reason = "rate_limit"
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method, reason)
		}

		backoff := c.backoff(attempt, rateLimited)
		c.logger.WarnContext(ctx, "rpc call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"reason", reason,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(backoff):
		}
	}

	c.logger.ErrorContext(ctx, "rpc call failed after retries", "method", method, "error", err)
	return out, err
}

func (c *Client) record(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, d.Seconds())
}

func statusToDomain(sig solana.Signature, res *rpc.SignatureStatusesResult) SignatureStatus {
	out := SignatureStatus{
		Signature: sig.String(),
		Status:    TxStatusProcessing,
		Slot:      res.Slot,
	}

	if res.Err != nil {
		msg := fmt.Sprintf("transaction failed: %v", res.Err)
		out.Err = &msg
		out.Status = TxStatusFailed
		return out
	}

	switch res.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		out.Status = TxStatusConfirmed
	}
	return out
}
