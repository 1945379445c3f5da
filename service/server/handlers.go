package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/brojonat/atlasclaim/service/claim"
	"github.com/brojonat/atlasclaim/service/db"
	"github.com/brojonat/atlasclaim/service/fleet"
	"github.com/brojonat/atlasclaim/service/state"
)

const (
	maxRequestBodySize = 1 << 16 // a claim request is a short list of fleet ids
	maxAddressLength   = 100     // Solana addresses are 44 chars, give buffer
	maxClaimFleets     = 256
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

type fleetsResponse struct {
	Owner      string       `json:"owner"`
	Fleets     []fleet.Card `json:"fleets"`
	Count      int          `json:"count"`
	Refreshing bool         `json:"refreshing"`
}

func fleetsToResponse(owner string, fleets *state.FleetStore, app *state.AppStore) fleetsResponse {
	cards := fleet.Cards(fleets.Fleets(owner), app.IsSelected)
	return fleetsResponse{
		Owner:      owner,
		Fleets:     cards,
		Count:      len(cards),
		Refreshing: app.Refreshing(),
	}
}

// handleListFleets returns a handler that lists an owner's fleets as cards.
// GET /api/v1/fleets/{owner}
// The first request for an owner loads their fleets from chain.
func handleListFleets(fleets *state.FleetStore, app *state.AppStore, refresher FleetRefresher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		if err := validateAddress(owner); err != nil {
			logger.Debug("invalid address", "address", owner, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if !fleets.Has(owner) {
			if err := refresher.Refresh(r.Context(), owner); err != nil {
				logger.ErrorContext(r.Context(), "failed to load fleets", "owner", owner, "error", err)
				writeError(w, "failed to load fleets", http.StatusBadGateway)
				return
			}
		}

		writeJSON(w, fleetsToResponse(owner, fleets, app), http.StatusOK)
	})
}

// handleRefreshFleets returns a handler that reloads an owner's fleets.
// POST /api/v1/fleets/{owner}/refresh
// On failure the previously loaded fleets stay in place.
func handleRefreshFleets(fleets *state.FleetStore, app *state.AppStore, refresher FleetRefresher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		if err := validateAddress(owner); err != nil {
			logger.Debug("invalid address", "address", owner, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := refresher.Refresh(r.Context(), owner); err != nil {
			logger.ErrorContext(r.Context(), "failed to refresh fleets", "owner", owner, "error", err)
			writeError(w, "failed to refresh fleets", http.StatusBadGateway)
			return
		}

		writeJSON(w, fleetsToResponse(owner, fleets, app), http.StatusOK)
	})
}

// handleToggleFleet returns a handler that flips a fleet's selection.
// POST /api/v1/fleets/{owner}/{fleet}/toggle
func handleToggleFleet(fleets *state.FleetStore, app *state.AppStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		id := r.PathValue("fleet")
		for _, addr := range []string{owner, id} {
			if err := validateAddress(addr); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		f, ok := fleets.Fleet(owner, id)
		if !ok {
			writeError(w, "fleet not found", http.StatusNotFound)
			return
		}

		fleet.Toggle(app.IsSelected(id),
			func() { app.Select(id) },
			func() { app.Unselect(id) },
		)
		logger.Debug("fleet selection toggled", "owner", owner, "fleet", id, "selected", app.IsSelected(id))

		writeJSON(w, fleet.NewCard(f, app.IsSelected(id)), http.StatusOK)
	})
}

// handleGetRewards returns a handler that reports an owner's reward totals.
// GET /api/v1/rewards/{owner}
func handleGetRewards(totals TotalsSource, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := r.PathValue("owner")
		if err := validateAddress(owner); err != nil {
			logger.Debug("invalid address", "address", owner, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, totals.Totals(owner), http.StatusOK)
	})
}

type claimRequest struct {
	// FleetIDs limits the claim to these fleets. Absent means all fleets.
	FleetIDs []string `json:"fleet_ids"`
	// Selected claims the fleets currently selected on the dashboard.
	Selected bool `json:"selected"`
}

type claimResponse struct {
	BatchID    string   `json:"batch_id"`
	Owner      string   `json:"owner"`
	Message    string   `json:"message"`
	Signatures []string `json:"signatures"`
	Links      []string `json:"links"`
}

// handleClaim returns a handler that claims pending rewards for the
// configured wallet.
// POST /api/v1/claims
// An empty body claims every fleet.
func handleClaim(claimer ClaimRunner, app *state.AppStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req claimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, "request body too large", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if len(req.FleetIDs) > maxClaimFleets {
			writeError(w, fmt.Sprintf("at most %d fleet_ids per claim", maxClaimFleets), http.StatusBadRequest)
			return
		}
		for _, id := range req.FleetIDs {
			if err := validateAddress(id); err != nil {
				writeError(w, "invalid fleet_ids: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		var (
			batch *claim.Batch
			err   error
		)
		switch {
		case req.Selected:
			batch, err = claimer.ClaimFleets(r.Context(), app.Selected())
		case req.FleetIDs != nil:
			batch, err = claimer.ClaimFleets(r.Context(), req.FleetIDs)
		default:
			batch, err = claimer.ClaimAll(r.Context())
		}

		switch {
		case errors.Is(err, claim.ErrClaimInProgress):
			writeError(w, err.Error(), http.StatusConflict)
			return
		case errors.Is(err, claim.ErrNoWallet):
			writeError(w, err.Error(), http.StatusServiceUnavailable)
			return
		case err != nil:
			logger.ErrorContext(r.Context(), "claim failed", "error", err)
			writeError(w, claim.MsgSendFailed, http.StatusBadGateway)
			return
		}

		if req.Selected {
			app.ClearSelection()
		}

		resp := claimResponse{
			BatchID:    batch.ID,
			Owner:      batch.Owner,
			Message:    claim.MsgNothing,
			Signatures: batch.Signatures,
			Links:      claim.SolscanLinks(batch.Signatures),
		}
		if len(batch.Signatures) > 0 {
			resp.Message = claim.MsgSent
		} else {
			resp.Signatures = []string{}
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

type signaturesResponse struct {
	Signatures []state.WaitingSignature `json:"signatures"`
	Loading    bool                     `json:"loading"`
	Notice     *state.Modal             `json:"notice,omitempty"`
}

// handleGetSignatures returns a handler that reports the signatures of the
// last claim, the loading flag and the current notice.
// GET /api/v1/signatures
func handleGetSignatures(app *state.AppStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := signaturesResponse{
			Signatures: app.WaitingSignatures(),
			Loading:    app.Loading(),
		}
		if m, ok := app.Modal(); ok {
			resp.Notice = &m
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// handleDismissNotice returns a handler that closes the current notice.
// DELETE /api/v1/notice
func handleDismissNotice(app *state.AppStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.DismissModal()
		w.WriteHeader(http.StatusNoContent)
	})
}

// claimRecordResponse is the JSON response format for a stored claim.
type claimRecordResponse struct {
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

func claimToResponse(c *db.Claim) claimRecordResponse {
	return claimRecordResponse{
		Signature: c.Signature,
		Owner:     c.Owner,
		BatchID:   c.BatchID,
		Status:    c.Status,
		Error:     c.Error,
		Slot:      c.Slot,
		Link:      claim.SolscanURL(c.Signature),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// handleListClaims returns a handler that lists claim history.
// GET /api/v1/claims?owner=ADDRESS&limit=N&offset=N
func handleListClaims(claims ClaimLister, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		owner := query.Get("owner")

		if owner != "" {
			if err := validateAddress(owner); err != nil {
				logger.Debug("invalid address", "address", owner, "error", err)
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		// Parse limit (default 100, max 1000)
		limit := int32(100)
		if limitStr := query.Get("limit"); limitStr != "" {
			var parsedLimit int
			if _, err := fmt.Sscanf(limitStr, "%d", &parsedLimit); err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedLimit < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsedLimit > 1000 {
				writeError(w, "limit cannot exceed 1000", http.StatusBadRequest)
				return
			}
			limit = int32(parsedLimit)
		}

		// Parse offset (default 0)
		offset := int32(0)
		if offsetStr := query.Get("offset"); offsetStr != "" {
			var parsedOffset int
			if _, err := fmt.Sscanf(offsetStr, "%d", &parsedOffset); err != nil {
				writeError(w, "invalid offset parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsedOffset < 0 {
				writeError(w, "offset cannot be negative", http.StatusBadRequest)
				return
			}
			offset = int32(parsedOffset)
		}

		records, err := claims.ListClaims(r.Context(), db.ListClaimsParams{
			Owner:  owner,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list claims", "owner", owner, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]claimRecordResponse, len(records))
		for i := range records {
			resp[i] = claimToResponse(records[i])
		}

		writeJSON(w, map[string]interface{}{
			"claims": resp,
			"count":  len(resp),
			"limit":  limit,
			"offset": offset,
		}, http.StatusOK)
	})
}

type healthResponse struct {
	Status       string `json:"status"`
	Signer       string `json:"signer,omitempty"`
	ClaimHistory bool   `json:"claim_history"`
	Streaming    bool   `json:"streaming"`
	Claiming     bool   `json:"claiming"`
}

// handleHealth reports liveness and which optional collaborators are wired.
func handleHealth(d Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:       "ok",
			ClaimHistory: d.Claims != nil,
			Streaming:    d.Stream != nil,
			Claiming:     d.App.Loading(),
		}
		if d.Claimer != nil {
			resp.Signer = d.Claimer.Owner()
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a base58 account address for security and format.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}

	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
