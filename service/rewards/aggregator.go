package rewards

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brojonat/atlasclaim/service/state"
	"github.com/brojonat/atlasclaim/service/units"
	"github.com/shopspring/decimal"
)

// NotPriced is shown in place of a fiat amount when no price is known.
const NotPriced = "n/a"

// Sums computes the raw totals for an owner.
type Sums interface {
	PendingAtlas(owner string) uint64
	RewardPerDay(owner string) uint64
}

// PriceFetcher returns the current fiat price of one ATLAS.
type PriceFetcher interface {
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// Totals is the pending reward summary for one owner.
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

// Aggregator caches per-owner reward totals, recomputing all of them
// whenever the fleet store changes.
type Aggregator struct {
	fleets *state.FleetStore
	sums   Sums
	logger *slog.Logger

	mu     sync.RWMutex
	raw    map[string][2]uint64
	price  decimal.Decimal
	priced bool
}

func NewAggregator(fleets *state.FleetStore, sums Sums, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		fleets: fleets,
		sums:   sums,
		logger: logger,
		raw:    make(map[string][2]uint64),
	}
}

// LoadPrice fetches the price once. A failure is logged and leaves totals
// un-priced; there is no retry.
func (a *Aggregator) LoadPrice(ctx context.Context, fetcher PriceFetcher) {
	p, err := fetcher.Fetch(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "price fetch failed, fiat totals unavailable", "error", err)
		return
	}
	a.SetPrice(p)
}

// SetPrice stores the unit price used for fiat amounts.
func (a *Aggregator) SetPrice(p decimal.Decimal) {
	a.mu.Lock()
	a.price = p
	a.priced = true
	a.mu.Unlock()
}

// Recompute rebuilds every owner's totals from scratch.
func (a *Aggregator) Recompute() {
	raw := make(map[string][2]uint64)
	for _, owner := range a.fleets.Owners() {
		raw[owner] = [2]uint64{a.sums.PendingAtlas(owner), a.sums.RewardPerDay(owner)}
	}

	a.mu.Lock()
	a.raw = raw
	a.mu.Unlock()
}

// Run recomputes on every fleet store change until ctx is done.
func (a *Aggregator) Run(ctx context.Context) {
	changes, cancel := a.fleets.Subscribe()
	defer cancel()

	a.Recompute()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			a.Recompute()
		}
	}
}

// Totals returns the cached totals for owner. An owner loaded since the
// last recompute is summed directly from the fleets. Owners with no fleets
// get zeros.
func (a *Aggregator) Totals(owner string) Totals {
	a.mu.RLock()
	r, ok := a.raw[owner]
	price, priced := a.price, a.priced
	a.mu.RUnlock()

	if !ok {
		r = [2]uint64{a.sums.PendingAtlas(owner), a.sums.RewardPerDay(owner)}
	}

	t := Totals{
		Owner:        owner,
		Pending:      r[0],
		PerDay:       r[1],
		PendingAtlas: units.FormatAtlas(r[0]),
		PerDayAtlas:  units.FormatAtlas(r[1]),
		PendingFiat:  NotPriced,
		PerDayFiat:   NotPriced,
	}
	if priced {
		t.Price = price.String()
		t.PendingFiat = units.Fiat(r[0], price)
		t.PerDayFiat = units.Fiat(r[1], price)
	}
	return t
}
