package rewards

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/brojonat/atlasclaim/service/state"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeSums sums straight from the fleet store.
type storeSums struct{ fleets *state.FleetStore }

func (s storeSums) PendingAtlas(owner string) uint64 {
	var total uint64
	for _, f := range s.fleets.Fleets(owner) {
		total += f.PendingRewards
	}
	return total
}

func (s storeSums) RewardPerDay(owner string) uint64 {
	var total uint64
	for _, f := range s.fleets.Fleets(owner) {
		total += f.RewardPerDay
	}
	return total
}

type fixedPrice struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fixedPrice) Fetch(ctx context.Context) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func newTestAggregator() (*Aggregator, *state.FleetStore) {
	fleets := state.NewFleetStore()
	return NewAggregator(fleets, storeSums{fleets}, slog.New(slog.NewTextHandler(io.Discard, nil))), fleets
}

func TestTotals_SumOfFleets(t *testing.T) {
	agg, fleets := newTestAggregator()
	fleets.Replace("owner", []state.Fleet{
		{ID: "a", PendingRewards: 100000000, RewardPerDay: 50000000},
		{ID: "b", PendingRewards: 250000000, RewardPerDay: 50000000},
		{ID: "c", PendingRewards: 0, RewardPerDay: 0},
	})
	agg.Recompute()

	totals := agg.Totals("owner")
	assert.Equal(t, uint64(350000000), totals.Pending)
	assert.Equal(t, uint64(100000000), totals.PerDay)
	assert.Equal(t, "3.5", totals.PendingAtlas)
	assert.Equal(t, "1", totals.PerDayAtlas)
}

func TestTotals_NoFleets(t *testing.T) {
	agg, fleets := newTestAggregator()
	fleets.Replace("owner", nil)
	agg.Recompute()

	for _, owner := range []string{"owner", "unknown"} {
		totals := agg.Totals(owner)
		assert.Equal(t, uint64(0), totals.Pending)
		assert.Equal(t, "0", totals.PendingAtlas)
	}
}

func TestTotals_BeforeRecompute(t *testing.T) {
	agg, fleets := newTestAggregator()
	agg.Recompute()

	// fleets loaded after the last recompute, as on a first dashboard visit
	fleets.Replace("owner", []state.Fleet{
		{ID: "a", PendingRewards: 300000000, RewardPerDay: 100000000},
	})

	totals := agg.Totals("owner")
	assert.Equal(t, uint64(300000000), totals.Pending)
	assert.Equal(t, uint64(100000000), totals.PerDay)
	assert.Equal(t, "3", totals.PendingAtlas)
}

func TestRun_RecomputesOnEveryChange(t *testing.T) {
	agg, fleets := newTestAggregator()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Run(ctx)

	fleets.Replace("owner", []state.Fleet{{ID: "a", PendingRewards: 1}})
	require.Eventually(t, func() bool { return agg.Totals("owner").Pending == 1 }, time.Second, time.Millisecond)

	// full replacement, not an incremental add
	fleets.Replace("owner", []state.Fleet{{ID: "b", PendingRewards: 7}})
	require.Eventually(t, func() bool { return agg.Totals("owner").Pending == 7 }, time.Second, time.Millisecond)
}

func TestFiatOverlay(t *testing.T) {
	agg, fleets := newTestAggregator()
	// 12,345.6789 ATLAS pending, 100 ATLAS per day
	fleets.Replace("owner", []state.Fleet{{ID: "a", PendingRewards: 1234567890000, RewardPerDay: 10000000000}})
	agg.Recompute()

	price := &fixedPrice{price: decimal.RequireFromString("0.0123")}
	agg.LoadPrice(context.Background(), price)

	totals := agg.Totals("owner")
	// 12345.6789 * 0.0123 = 151.85185047
	assert.Equal(t, "151.852", totals.PendingFiat)
	assert.Equal(t, "1.230", totals.PerDayFiat)
	assert.Equal(t, "0.0123", totals.Price)
	assert.Equal(t, 1, price.calls)
}

func TestFiatOverlay_PriceFailure(t *testing.T) {
	agg, fleets := newTestAggregator()
	fleets.Replace("owner", []state.Fleet{{ID: "a", PendingRewards: 100000000}})
	agg.Recompute()

	agg.LoadPrice(context.Background(), &fixedPrice{err: errors.New("coingecko down")})

	totals := agg.Totals("owner")
	assert.Equal(t, NotPriced, totals.PendingFiat)
	assert.Equal(t, NotPriced, totals.PerDayFiat)
	assert.Empty(t, totals.Price)
	assert.Equal(t, "1", totals.PendingAtlas, "token totals still render")
}
