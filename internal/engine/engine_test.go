package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/executor"
	"github.com/mkarlsen/polyarb/internal/ledger"
	"github.com/mkarlsen/polyarb/internal/normalize"
	"github.com/mkarlsen/polyarb/internal/store/memory"
	"github.com/mkarlsen/polyarb/internal/strategy"
)

// stubSource serves canned markets and quotes for one venue.
type stubSource struct {
	venue   domain.Venue
	markets []domain.Market
	quotes  []domain.RawQuote
}

func (s *stubSource) Venue() domain.Venue { return s.venue }

func (s *stubSource) FetchMarkets(ctx context.Context) ([]domain.Market, error) {
	return s.markets, nil
}

func (s *stubSource) FetchQuotes(ctx context.Context) ([]domain.RawQuote, error) {
	return s.quotes, nil
}

// arbSource returns one market whose YES and NO sum to 0.95.
func arbSource() *stubSource {
	now := time.Now()
	return &stubSource{
		venue: domain.VenuePolymarket,
		markets: []domain.Market{{
			Venue: domain.VenuePolymarket, ID: "m1",
			Question: "test market", Active: true,
			ResolvesAt: now.Add(72 * time.Hour),
		}},
		quotes: []domain.RawQuote{
			{Venue: domain.VenuePolymarket, MarketID: "m1", Outcome: "YES", Price: 0.40, Liquidity: 1000, Timestamp: now},
			{Venue: domain.VenuePolymarket, MarketID: "m1", Outcome: "NO", Price: 0.55, Liquidity: 1000, Timestamp: now},
		},
	}
}

func testEngine(store *memory.LedgerStore, locker domain.CycleLocker, src domain.QuoteSource) *Engine {
	logger := slog.Default()
	limits := domain.RiskLimits{
		PerTradeFrac:  0.10,
		MaxExposure:   0.70,
		DailyLossFrac: 0.15,
		KellyFraction: 0.25,
		MinEdge:       0.02,
		MinTradeUSD:   0.50,
	}
	return New(
		Params{
			LockStaleAfter: 30 * time.Minute,
			MaxSignals:     5,
			ScanWorkers:    4,
			Limits:         limits,
		},
		Deps{
			Store:    store,
			Locker:   locker,
			Sources:  []domain.QuoteSource{src},
			Norm:     normalize.New(5*time.Minute, logger),
			CrossArb: strategy.NewCrossArbDetector(strategy.CrossArbParams{MinEdge: 0.02}, logger),
			Executor: executor.New(true, nil, logger),
			Ledger:   ledger.New(logger),
		},
		logger,
	)
}

func TestRunCycleExecutesAndCommits(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	e := testEngine(store, memory.NewCycleLock(), arbSource())

	summary, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 1, summary.Signals)
	require.Len(t, summary.Trades, 2) // both legs of the pair
	for _, tr := range summary.Trades {
		assert.Equal(t, domain.TradeSimulated, tr.Status)
	}

	state, open, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 90.0, state.Available, 1e-9) // per-trade cap on $100
	assert.Len(t, open, 2)

	trades, err := store.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestRunCycleLockHeldSkipsCleanly(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	lock := memory.NewCycleLock()
	lock.Hold("other-cycle", 0)

	e := testEngine(store, lock, arbSource())
	summary, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Empty(t, summary.Trades)

	trades, err := store.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRunCycleStoreFailureFailsSafe(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	store.SnapshotErr = domain.ErrStoreCorrupt

	e := testEngine(store, memory.NewCycleLock(), arbSource())
	summary, err := e.RunCycle(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreCorrupt)
	assert.True(t, summary.FailSafe)
	assert.Empty(t, summary.Trades)
}

// Commit failure surfaces as an error and leaves the pre-cycle snapshot in
// place for the next run.
func TestRunCycleCommitFailureLeavesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	store.CommitErr = domain.ErrStoreCorrupt

	e := testEngine(store, memory.NewCycleLock(), arbSource())
	_, err := e.RunCycle(ctx)
	require.Error(t, err)

	store.CommitErr = nil
	state, open, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.0, state.Available)
	assert.Empty(t, open)
}

func TestRunCycleHaltedDayProducesNoTrades(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	day := time.Now().UTC().Format(time.DateOnly)
	require.NoError(t, store.CommitCycle(ctx, domain.CycleCommit{
		CycleID: "seed",
		Capital: domain.CapitalState{
			Capital: 80, Available: 80, DayStartCapital: 100,
			DailyRealizedPnL: -20, TradingDay: day,
		},
	}))

	e := testEngine(store, memory.NewCycleLock(), arbSource())
	summary, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Trades)
	assert.True(t, summary.Capital.Halted)
	assert.Equal(t, domain.HaltDailyLoss, summary.Capital.HaltReason)
}

// stubCache holds one canned pair set per venue.
type stubCache struct {
	pairs map[domain.Venue][]domain.QuotePair
	put   [][]domain.QuotePair
}

func (c *stubCache) PutPairs(ctx context.Context, pairs []domain.QuotePair) error {
	c.put = append(c.put, pairs)
	return nil
}

func (c *stubCache) GetPairs(ctx context.Context, venue domain.Venue) ([]domain.QuotePair, error) {
	p, ok := c.pairs[venue]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func TestRunCycleFallsBackToCachedPairs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)

	// Venue is up for markets but delivers no quotes this cycle.
	src := arbSource()
	src.quotes = nil

	cache := &stubCache{pairs: map[domain.Venue][]domain.QuotePair{
		domain.VenuePolymarket: {cachedPair(time.Now())},
	}}

	e := testEngine(store, memory.NewCycleLock(), src)
	e.deps.Cache = cache

	summary, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Signals)
	assert.Len(t, summary.Trades, 2)
	assert.Empty(t, cache.put) // nothing fresh to write back
}

// cachedPair is the m1 arb pair with both legs quoted at ts.
func cachedPair(ts time.Time) domain.QuotePair {
	return domain.QuotePair{
		Venue:    domain.VenuePolymarket,
		MarketID: "m1",
		Yes:      domain.Quote{Venue: domain.VenuePolymarket, MarketID: "m1", Outcome: domain.OutcomeYes, Price: 0.40, Liquidity: 1000, Timestamp: ts},
		No:       domain.Quote{Venue: domain.VenuePolymarket, MarketID: "m1", Outcome: domain.OutcomeNo, Price: 0.55, Liquidity: 1000, Timestamp: ts},
	}
}

func TestRunCycleRejectsStaleCachedPairs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)

	src := arbSource()
	src.quotes = nil

	// Cached quotes an hour old, far past the 5-minute bound.
	cache := &stubCache{pairs: map[domain.Venue][]domain.QuotePair{
		domain.VenuePolymarket: {cachedPair(time.Now().Add(-time.Hour))},
	}}

	e := testEngine(store, memory.NewCycleLock(), src)
	e.deps.Cache = cache

	summary, err := e.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Signals)
	assert.Empty(t, summary.Trades)

	trades, err := store.RecentTrades(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRunCycleZeroScanWorkers(t *testing.T) {
	store := memory.NewLedgerStore(100)
	e := testEngine(store, memory.NewCycleLock(), arbSource())
	e.params.ScanWorkers = 0

	summary, err := e.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Signals)
	assert.Len(t, summary.Trades, 2)
}

func TestRunCycleCachesFreshPairs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewLedgerStore(100)
	cache := &stubCache{}

	e := testEngine(store, memory.NewCycleLock(), arbSource())
	e.deps.Cache = cache

	_, err := e.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, cache.put, 1)
	assert.Len(t, cache.put[0], 1)
}
