package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/atlasclaim/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a claim does not exist.
var ErrNotFound = errors.New("claim not found")

// Claim statuses. They mirror the tracked transaction lifecycle.
const (
	StatusProcessing = "processing"
	StatusConfirmed  = "confirmed"
	StatusFailed     = "failed"
)

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Claim is one submitted harvest transaction and its latest known status.
type Claim struct {
	Signature string
	Owner     string
	BatchID   string
	Status    string
	Error     *string
	Slot      uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateClaimParams contains the parameters for recording a submitted claim.
type CreateClaimParams struct {
	Signature string
	Owner     string
	BatchID   string
}

// UpdateClaimStatusParams contains a status observation for a claim.
type UpdateClaimStatusParams struct {
	Signature string
	Status    string
	Error     *string
	Slot      uint64
}

// ListClaimsParams contains pagination parameters.
type ListClaimsParams struct {
	Owner  string
	Limit  int32
	Offset int32
}

const claimColumns = `signature, owner, batch_id, status, error, slot, created_at, updated_at`

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateClaims records a batch of submitted signatures as processing.
// Signatures already present are left untouched.
func (s *Store) CreateClaims(ctx context.Context, params []CreateClaimParams) error {
	if len(params) == 0 {
		return nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(
			`INSERT INTO claims (signature, owner, batch_id, status)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (signature) DO NOTHING`,
			p.Signature, p.Owner, p.BatchID, StatusProcessing,
		)
	}
	err := s.pool.SendBatch(ctx, batch).Close()
	s.record("create_claims", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert claims: %w", err)
	}
	return nil
}

// UpdateClaimStatus stores the latest status of a claim.
func (s *Store) UpdateClaimStatus(ctx context.Context, params UpdateClaimStatusParams) (*Claim, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx,
		`UPDATE claims
		 SET status = $2, error = $3, slot = $4, updated_at = now()
		 WHERE signature = $1
		 RETURNING `+claimColumns,
		params.Signature, params.Status, params.Error, int64(params.Slot),
	)
	claim, err := scanClaim(row)
	s.record("update_claim_status", start, err)
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// GetClaim retrieves a claim by signature.
func (s *Store) GetClaim(ctx context.Context, signature string) (*Claim, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE signature = $1`,
		signature,
	)
	claim, err := scanClaim(row)
	s.record("get_claim", start, err)
	return claim, err
}

// ListClaims returns an owner's claims, most recent first.
func (s *Store) ListClaims(ctx context.Context, params ListClaimsParams) ([]*Claim, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE owner = $1
		 ORDER BY created_at DESC, signature
		 LIMIT $2 OFFSET $3`,
		params.Owner, params.Limit, params.Offset,
	)
	if err != nil {
		s.record("list_claims", start, err)
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	claims, err := collectClaims(rows)
	s.record("list_claims", start, err)
	return claims, err
}

// ListProcessingClaims returns claims still awaiting a terminal status.
// An empty owner lists them for every owner.
func (s *Store) ListProcessingClaims(ctx context.Context, owner string) ([]*Claim, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE status = $1 AND ($2 = '' OR owner = $2)
		 ORDER BY created_at, signature`,
		StatusProcessing, owner,
	)
	if err != nil {
		s.record("list_processing_claims", start, err)
		return nil, fmt.Errorf("failed to list processing claims: %w", err)
	}
	claims, err := collectClaims(rows)
	s.record("list_processing_claims", start, err)
	return claims, err
}

// DeleteClaimsBefore removes terminal claims created before cutoff and
// returns how many were removed.
func (s *Store) DeleteClaimsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM claims WHERE created_at < $1 AND status <> $2`,
		cutoff, StatusProcessing,
	)
	s.record("delete_claims", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordDBQuery(operation, "claims", time.Since(start).Seconds(), err)
}

func scanClaim(row pgx.Row) (*Claim, error) {
	var (
		c    Claim
		slot int64
	)
	err := row.Scan(&c.Signature, &c.Owner, &c.BatchID, &c.Status, &c.Error, &slot, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan claim: %w", err)
	}
	c.Slot = uint64(slot)
	return &c, nil
}

func collectClaims(rows pgx.Rows) ([]*Claim, error) {
	defer rows.Close()

	claims := make([]*Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}
	return claims, nil
}
