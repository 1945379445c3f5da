package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/brojonat/atlasclaim/service/state"
	"github.com/brojonat/atlasclaim/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// InstructionsPerTransaction is how many harvest instructions share one
// transaction.
const InstructionsPerTransaction = 2

// Notice texts shown to the user.
const (
	MsgSent       = "Transactions are Sent. Please track them with Solscan using the following links:"
	MsgSendFailed = "An error happened while sending transaction. Please try again later."
	MsgNothing    = "There are no pending rewards to claim."
)

var (
	// ErrClaimInProgress is returned when a claim is started while another
	// one holds the loading flag.
	ErrClaimInProgress = errors.New("a claim is already in progress")
	// ErrNoWallet is returned when no signer is configured.
	ErrNoWallet = errors.New("no wallet connected")
)

// InstructionSource builds unsigned harvest instructions.
type InstructionSource interface {
	HarvestInstructions(ctx context.Context, owner solanago.PublicKey, fleetIDs []string) ([]solanago.Instruction, error)
}

// Chain is the RPC surface the claim flow submits through.
type Chain interface {
	LatestBlockhash(ctx context.Context) (solanago.Hash, error)
	SendTransaction(ctx context.Context, tx *solanago.Transaction) (solanago.Signature, error)
}

// Recorder is notified of a submitted batch so it can persist and track it.
// It runs after the batch is reported to the user; failures are logged.
type Recorder interface {
	BatchSubmitted(ctx context.Context, batch Batch) error
}

// Batch is the result of one successful claim.
type Batch struct {
	ID         string
	Owner      string
	Signatures []string
}

// Claimer runs the claim-all flow: build harvests, pair them into
// transactions, sign once, submit in parallel, publish the signatures.
type Claimer struct {
	source   InstructionSource
	chain    Chain
	signer   wallet.Signer
	app      *state.AppStore
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	newID    func() string
}

// Deps bundles the collaborators of a Claimer. Recorder and Metrics are optional.
type Deps struct {
	Source   InstructionSource
	Chain    Chain
	Signer   wallet.Signer
	App      *state.AppStore
	Recorder Recorder
	Metrics  *metrics.Metrics
}

func NewClaimer(deps Deps, logger *slog.Logger) *Claimer {
	return &Claimer{
		source:   deps.Source,
		chain:    deps.Chain,
		signer:   deps.Signer,
		app:      deps.App,
		recorder: deps.Recorder,
		metrics:  deps.Metrics,
		logger:   logger,
		newID:    newBatchID,
	}
}

// Owner is the fee payer and reward recipient, or "" without a signer.
func (c *Claimer) Owner() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.PublicKey().String()
}

// ClaimAll harvests every fleet of the signer's wallet that has pending rewards.
func (c *Claimer) ClaimAll(ctx context.Context) (*Batch, error) {
	return c.claim(ctx, nil)
}

// ClaimFleets harvests only the given fleets, by staking account address.
// An empty selection claims nothing.
func (c *Claimer) ClaimFleets(ctx context.Context, fleetIDs []string) (*Batch, error) {
	if fleetIDs == nil {
		fleetIDs = []string{}
	}
	return c.claim(ctx, fleetIDs)
}

func (c *Claimer) claim(ctx context.Context, fleetIDs []string) (*Batch, error) {
	if c.signer == nil {
		return nil, ErrNoWallet
	}
	if !c.app.TryStartLoading() {
		return nil, ErrClaimInProgress
	}
	defer c.app.StopLoading()

	start := time.Now()
	owner := c.signer.PublicKey()
	batch := &Batch{ID: c.newID(), Owner: owner.String()}

	sigs, n, err := c.submit(ctx, owner, fleetIDs)
	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordClaimBatch(status, n, time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "claim failed",
			"owner", batch.Owner,
			"batch_id", batch.ID,
			"error", err,
		)
		c.app.ShowError(MsgSendFailed)
		return nil, err
	}

	if len(sigs) == 0 {
		c.logger.InfoContext(ctx, "nothing to claim", "owner", batch.Owner)
		c.app.ShowInfo(MsgNothing, nil)
		return batch, nil
	}

	batch.Signatures = sigs
	c.app.SetWaitingSignatures(sigs)
	c.app.ShowInfo(MsgSent, SolscanLinks(sigs))
	c.logger.InfoContext(ctx, "claim transactions sent",
		"owner", batch.Owner,
		"batch_id", batch.ID,
		"instructions", n,
		"transactions", len(sigs),
	)

	if c.recorder != nil {
		if err := c.recorder.BatchSubmitted(ctx, *batch); err != nil {
			c.logger.ErrorContext(ctx, "failed to record claim batch", "batch_id", batch.ID, "error", err)
		}
	}
	return batch, nil
}

// submit runs steps from instruction fetch to submission. It returns the
// signatures in transaction order and the instruction count.
func (c *Claimer) submit(ctx context.Context, owner solanago.PublicKey, fleetIDs []string) ([]string, int, error) {
	ixs, err := c.source.HarvestInstructions(ctx, owner, fleetIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build harvest instructions: %w", err)
	}
	groups := Chunk(ixs, InstructionsPerTransaction)
	if len(groups) == 0 {
		return nil, 0, nil
	}

	blockhash, err := c.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, len(ixs), err
	}

	txs, err := BuildTransactions(groups, blockhash, owner)
	if err != nil {
		return nil, len(ixs), err
	}

	signed, err := c.signer.SignAllTransactions(ctx, txs)
	if err != nil {
		return nil, len(ixs), fmt.Errorf("failed to sign transactions: %w", err)
	}
	if len(signed) != len(txs) {
		return nil, len(ixs), fmt.Errorf("wallet returned %d signed transactions, want %d", len(signed), len(txs))
	}

	sigs := make([]string, len(signed))
	g, gctx := errgroup.WithContext(ctx)
	for i, tx := range signed {
		g.Go(func() error {
			sig, err := c.chain.SendTransaction(gctx, tx)
			if c.metrics != nil {
				status := "success"
				if err != nil {
					status = "error"
				}
				c.metrics.RecordTransactionSubmitted(status)
			}
			if err != nil {
				return fmt.Errorf("transaction %d of %d: %w", i+1, len(signed), err)
			}
			sigs[i] = sig.String()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(ixs), err
	}
	return sigs, len(ixs), nil
}

// BuildTransactions makes one unsigned transaction per instruction group,
// all sharing blockhash and paid by payer.
func BuildTransactions(groups [][]solanago.Instruction, blockhash solanago.Hash, payer solanago.PublicKey) ([]*solanago.Transaction, error) {
	txs := make([]*solanago.Transaction, len(groups))
	for i, group := range groups {
		tx, err := solanago.NewTransaction(group, blockhash, solanago.TransactionPayer(payer))
		if err != nil {
			return nil, fmt.Errorf("failed to build transaction %d: %w", i+1, err)
		}
		txs[i] = tx
	}
	return txs, nil
}

// SolscanLinks turns signatures into explorer URLs.
func SolscanLinks(signatures []string) []string {
	links := make([]string, len(signatures))
	for i, sig := range signatures {
		links[i] = SolscanURL(sig)
	}
	return links
}

func SolscanURL(signature string) string {
	return "https://solscan.io/tx/" + signature
}

func newBatchID() string {
	return fmt.Sprintf("claim-%d", time.Now().UnixNano())
}
