// Package engine runs one full detect-and-execute cycle: fence, snapshot,
// gather, detect, rank, govern, execute, settle, commit, publish. Cycles are
// discrete; nothing carries over between runs except what the store holds.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mkarlsen/polyarb/internal/dashboard"
	"github.com/mkarlsen/polyarb/internal/domain"
	"github.com/mkarlsen/polyarb/internal/executor"
	"github.com/mkarlsen/polyarb/internal/ledger"
	"github.com/mkarlsen/polyarb/internal/normalize"
	"github.com/mkarlsen/polyarb/internal/notify"
	"github.com/mkarlsen/polyarb/internal/risk"
	"github.com/mkarlsen/polyarb/internal/strategy"
)

// Params collects the engine's cycle-level settings.
type Params struct {
	LockStaleAfter time.Duration
	MaxSignals     int
	ScanWorkers    int
	Limits         domain.RiskLimits
}

// Deps are the engine's collaborators. Weather, CrossArb, Cache, Publisher,
// and Notifier may be nil; the matching cycle steps are skipped.
type Deps struct {
	Store     domain.LedgerStore
	Locker    domain.CycleLocker
	Sources   []domain.QuoteSource
	Forecasts domain.ForecastSource
	Cities    []strategy.City
	Norm      *normalize.Normalizer
	Weather   *strategy.WeatherDetector
	CrossArb  *strategy.CrossArbDetector
	Executor  *executor.Executor
	Ledger    *ledger.Ledger
	Cache     domain.QuoteCache
	Dashboard *dashboard.Builder
	Publisher dashboard.Publisher
	Notifier  *notify.Notifier
}

// Summary is what one cycle did.
type Summary struct {
	CycleID  string
	Signals  int
	Trades   []domain.Trade
	Closed   []domain.PositionClose
	Capital  domain.CapitalState
	Skipped  bool // lock contention, nothing ran
	FailSafe bool // store failure, halted cycle with zero mutations
}

// Engine executes cycles.
type Engine struct {
	params Params
	deps   Deps
	logger *slog.Logger
}

// New creates an engine.
func New(params Params, deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		params: params,
		deps:   deps,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// RunCycle executes one full cycle. Lock contention is a clean no-trade
// outcome, not an error. A store that cannot deliver a coherent snapshot
// fails the cycle safe: halted, zero mutations.
func (e *Engine) RunCycle(ctx context.Context) (Summary, error) {
	cycleID := uuid.NewString()
	now := time.Now().UTC()
	logger := e.logger.With(slog.String("cycle_id", cycleID))

	release, err := e.deps.Locker.Acquire(ctx, cycleID, e.params.LockStaleAfter)
	if errors.Is(err, domain.ErrLockHeld) {
		logger.Info("cycle lock held elsewhere, skipping")
		return Summary{CycleID: cycleID, Skipped: true}, nil
	}
	if err != nil {
		return Summary{CycleID: cycleID}, fmt.Errorf("engine: acquire lock: %w", err)
	}
	defer release()

	state, open, err := e.deps.Store.Snapshot(ctx)
	if err != nil {
		logger.Error("state unreadable, failing safe", slog.String("error", err.Error()))
		e.notifyHalt(domain.HaltFailSafe, err.Error())
		return Summary{CycleID: cycleID, FailSafe: true}, fmt.Errorf("engine: snapshot: %w", err)
	}
	state = state.RolloverTo(now)

	gathered := e.gather(ctx, logger)
	pairs := e.deps.Norm.Pairs(gathered.quotes, now)
	if e.deps.Cache != nil {
		if len(pairs) > 0 {
			if err := e.deps.Cache.PutPairs(ctx, pairs); err != nil {
				logger.Warn("quote cache update failed", slog.String("error", err.Error()))
			}
		}
		pairs = e.fillFromCache(ctx, pairs, now, logger)
	}

	closes := e.deps.Ledger.Resolve(open, gathered.resolutions, gathered.markets, now)
	state = e.deps.Ledger.ApplyCloses(state, open, closes)

	governor := risk.NewGovernor(e.params.Limits, state, logger)
	halted, haltReason := governor.Halted()
	if halted && haltReason == domain.HaltDailyLoss && !state.Halted {
		e.notifyHalt(haltReason, fmt.Sprintf("daily realized P&L %.2f", state.DailyRealizedPnL))
	}

	var trades []domain.Trade
	var opened []domain.Position
	signalCount := 0
	if !halted {
		signals := e.detect(gathered, pairs, now)
		ranked := strategy.Rank(signals, e.params.Limits.MinEdge, e.params.MaxSignals)
		signalCount = len(ranked)

		decisions := make([]risk.Decision, 0, len(ranked))
		for _, sig := range ranked {
			decisions = append(decisions, governor.Approve(sig))
		}

		result := e.deps.Executor.Execute(ctx, cycleID, decisions, now)
		trades = result.Trades
		opened = result.Opened
		state = e.deps.Ledger.ApplyTrades(governor.State(), trades)
		e.notifyTrades(trades)
	} else {
		logger.Warn("cycle halted, no signals sized", slog.String("reason", string(haltReason)))
		state = governor.State()
	}

	commit := domain.CycleCommit{
		CycleID: cycleID,
		Trades:  trades,
		Opened:  opened,
		Closed:  closes,
		Capital: state,
	}
	if err := e.deps.Store.CommitCycle(ctx, commit); err != nil {
		logger.Error("cycle commit failed, store keeps pre-cycle snapshot",
			slog.String("error", err.Error()))
		if e.deps.Notifier != nil {
			e.deps.Notifier.Notify(notify.EventCycleError, "Cycle commit failed",
				fmt.Sprintf("cycle %s discarded: %s", cycleID, err))
		}
		return Summary{CycleID: cycleID}, fmt.Errorf("engine: commit cycle: %w", err)
	}
	release()

	e.publish(ctx, cycleID, now, logger)

	logger.Info("cycle complete",
		slog.Int("signals", signalCount),
		slog.Int("trades", len(trades)),
		slog.Int("closed", len(closes)),
		slog.Float64("capital", state.Capital),
		slog.Bool("halted", state.Halted),
	)
	return Summary{
		CycleID: cycleID,
		Signals: signalCount,
		Trades:  trades,
		Closed:  closes,
		Capital: state,
	}, nil
}

// gathered is everything the venues and the forecast provider delivered for
// one cycle.
type gathered struct {
	markets     []domain.Market
	quotes      []domain.RawQuote
	resolutions []domain.Resolution
	forecasts   map[string]domain.RawForecast
}

// gather pulls markets, quotes, resolutions, and forecasts concurrently. A
// failed source logs and contributes nothing; detectors treat the missing
// data as no-signal.
func (e *Engine) gather(ctx context.Context, logger *slog.Logger) gathered {
	var g gathered
	g.forecasts = make(map[string]domain.RawForecast, len(e.deps.Cities))

	workers := e.params.ScanWorkers
	if workers < 1 {
		workers = 1
	}
	var grp errgroup.Group
	grp.SetLimit(workers)
	grpCtx := ctx

	type venueData struct {
		markets     []domain.Market
		quotes      []domain.RawQuote
		resolutions []domain.Resolution
	}
	venueResults := make([]venueData, len(e.deps.Sources))

	for i, src := range e.deps.Sources {
		i, src := i, src
		grp.Go(func() error {
			markets, err := src.FetchMarkets(grpCtx)
			if err != nil {
				logger.Warn("market fetch failed",
					slog.String("venue", string(src.Venue())),
					slog.String("error", err.Error()))
			}
			quotes, err := src.FetchQuotes(grpCtx)
			if err != nil {
				logger.Warn("quote fetch failed",
					slog.String("venue", string(src.Venue())),
					slog.String("error", err.Error()))
			}
			var resolutions []domain.Resolution
			if rs, ok := src.(domain.ResolutionSource); ok {
				resolutions, err = rs.FetchResolutions(grpCtx)
				if err != nil {
					logger.Warn("resolution fetch failed",
						slog.String("venue", string(src.Venue())),
						slog.String("error", err.Error()))
				}
			}
			venueResults[i] = venueData{markets: markets, quotes: quotes, resolutions: resolutions}
			return nil
		})
	}

	forecastResults := make([]domain.RawForecast, len(e.deps.Cities))
	if e.deps.Forecasts != nil {
		for i, city := range e.deps.Cities {
			i, city := i, city
			grp.Go(func() error {
				raw, err := e.deps.Forecasts.FetchForecast(grpCtx, city.Name, city.Lat, city.Lon)
				if err != nil {
					logger.Warn("forecast fetch failed",
						slog.String("city", city.Name),
						slog.String("error", err.Error()))
					return nil
				}
				forecastResults[i] = raw
				return nil
			})
		}
	}
	_ = grp.Wait()

	for _, vd := range venueResults {
		g.markets = append(g.markets, vd.markets...)
		g.quotes = append(g.quotes, vd.quotes...)
		g.resolutions = append(g.resolutions, vd.resolutions...)
	}
	for _, raw := range forecastResults {
		if raw.City != "" {
			g.forecasts[raw.City] = raw
		}
	}
	return g
}

// fillFromCache backfills pairs for venues whose live fetch came back empty
// with the last cached set. Cached pairs pass the same staleness bound as
// live quotes; a stale cache entry is data unavailable, not a price.
func (e *Engine) fillFromCache(ctx context.Context, pairs []domain.QuotePair, now time.Time, logger *slog.Logger) []domain.QuotePair {
	live := make(map[domain.Venue]bool, len(pairs))
	for _, p := range pairs {
		live[p.Venue] = true
	}
	for _, src := range e.deps.Sources {
		venue := src.Venue()
		if live[venue] {
			continue
		}
		cached, err := e.deps.Cache.GetPairs(ctx, venue)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			logger.Warn("quote cache read failed",
				slog.String("venue", string(venue)),
				slog.String("error", err.Error()))
			continue
		}
		fresh := e.deps.Norm.FreshPairs(cached, now)
		if len(fresh) == 0 {
			logger.Debug("cached pairs all past staleness bound",
				slog.String("venue", string(venue)),
				slog.Int("cached", len(cached)))
			continue
		}
		logger.Info("venue quotes missing, using cached pairs",
			slog.String("venue", string(venue)),
			slog.Int("pairs", len(fresh)))
		pairs = append(pairs, fresh...)
	}
	return pairs
}

// detect runs the enabled detectors over the gathered data.
func (e *Engine) detect(g gathered, pairs []domain.QuotePair, now time.Time) []domain.Signal {
	var signals []domain.Signal
	if e.deps.Weather != nil {
		signals = append(signals, e.deps.Weather.Evaluate(g.markets, pairs, g.forecasts, now)...)
	}
	if e.deps.CrossArb != nil {
		signals = append(signals, e.deps.CrossArb.Evaluate(pairs, now)...)
	}
	return signals
}

// publish builds and exports the dashboard snapshot. Best-effort only.
func (e *Engine) publish(ctx context.Context, cycleID string, now time.Time, logger *slog.Logger) {
	if e.deps.Dashboard == nil || e.deps.Publisher == nil {
		return
	}
	snap, err := e.deps.Dashboard.Build(ctx, cycleID, now)
	if err != nil {
		logger.Warn("dashboard snapshot build failed", slog.String("error", err.Error()))
		return
	}
	if err := e.deps.Publisher.Publish(ctx, snap); err != nil {
		logger.Warn("dashboard snapshot publish failed", slog.String("error", err.Error()))
	}
}

func (e *Engine) notifyTrades(trades []domain.Trade) {
	if e.deps.Notifier == nil {
		return
	}
	for _, t := range trades {
		switch t.Status {
		case domain.TradeFilled, domain.TradeSimulated:
			e.deps.Notifier.Notify(notify.EventTradeExecuted, "Trade executed",
				fmt.Sprintf("%s %s %s @ %.3f for $%.2f (%s)",
					t.Venue, t.Direction, t.MarketID, t.Price, t.Size, t.Status))
		case domain.TradeFailedPartial:
			e.deps.Notifier.Notify(notify.EventPartialFill, "Partial fill",
				fmt.Sprintf("%s %s leg group %s: %s", t.Venue, t.MarketID, t.LegGroupID, t.Reason))
		}
	}
}

func (e *Engine) notifyHalt(reason domain.HaltReason, detail string) {
	if e.deps.Notifier == nil {
		return
	}
	e.deps.Notifier.Notify(notify.EventHalt, "Trading halted",
		fmt.Sprintf("reason=%s %s", reason, detail))
}
