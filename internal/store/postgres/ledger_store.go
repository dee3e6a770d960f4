package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// LedgerStore implements domain.LedgerStore on PostgreSQL.
type LedgerStore struct {
	pool           *pgxpool.Pool
	initialCapital float64
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a LedgerStore. initialCapital seeds the capital
// state the first time the store is used.
func NewLedgerStore(pool *pgxpool.Pool, initialCapital float64) *LedgerStore {
	return &LedgerStore{pool: pool, initialCapital: initialCapital}
}

// Snapshot reads the capital state and open positions. An empty store
// bootstraps a fresh state from the initial capital; a store that reads
// incoherently reports ErrStoreCorrupt so the cycle can fail safe.
func (s *LedgerStore) Snapshot(ctx context.Context) (domain.CapitalState, []domain.Position, error) {
	var state domain.CapitalState
	var haltReason string
	err := s.pool.QueryRow(ctx, `
		SELECT capital, available, day_start_capital, daily_realized_pnl, trading_day, halted, halt_reason
		FROM capital_state WHERE id = 1`,
	).Scan(&state.Capital, &state.Available, &state.DayStartCapital,
		&state.DailyRealizedPnL, &state.TradingDay, &state.Halted, &haltReason,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		state = domain.CapitalState{
			Capital:         s.initialCapital,
			Available:       s.initialCapital,
			DayStartCapital: s.initialCapital,
		}
	case err != nil:
		return domain.CapitalState{}, nil, fmt.Errorf("postgres: read capital state: %w: %w", domain.ErrStoreCorrupt, err)
	default:
		state.HaltReason = domain.HaltReason(haltReason)
		if state.Capital < 0 || state.Available < 0 || state.Available > state.Capital+1e-6 {
			return domain.CapitalState{}, nil, fmt.Errorf("postgres: capital state incoherent (capital=%f available=%f): %w",
				state.Capital, state.Available, domain.ErrStoreCorrupt)
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, venue, market_id, outcome, direction, strategy, entry_price, size, leg_group_id, status, opened_at
		FROM positions WHERE status = $1 ORDER BY opened_at`,
		string(domain.PositionOpen),
	)
	if err != nil {
		return domain.CapitalState{}, nil, fmt.Errorf("postgres: read open positions: %w: %w", domain.ErrStoreCorrupt, err)
	}
	defer rows.Close()

	var open []domain.Position
	for rows.Next() {
		var p domain.Position
		var venue, outcome, direction, strategy, status string
		if err := rows.Scan(&p.ID, &venue, &p.MarketID, &outcome, &direction,
			&strategy, &p.EntryPrice, &p.Size, &p.LegGroupID, &status, &p.OpenedAt,
		); err != nil {
			return domain.CapitalState{}, nil, fmt.Errorf("postgres: scan position: %w: %w", domain.ErrStoreCorrupt, err)
		}
		p.Venue = domain.Venue(venue)
		p.Outcome = domain.Outcome(outcome)
		p.Direction = domain.Direction(direction)
		p.Strategy = domain.StrategyKind(strategy)
		p.Status = domain.PositionStatus(status)
		open = append(open, p)
	}
	if err := rows.Err(); err != nil {
		return domain.CapitalState{}, nil, fmt.Errorf("postgres: read open positions: %w: %w", domain.ErrStoreCorrupt, err)
	}
	return state, open, nil
}

// CommitCycle applies one cycle's mutations in a single transaction.
func (s *LedgerStore) CommitCycle(ctx context.Context, commit domain.CycleCommit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	state := commit.Capital
	_, err = tx.Exec(ctx, `
		INSERT INTO capital_state (id, capital, available, day_start_capital, daily_realized_pnl, trading_day, halted, halt_reason, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			capital = EXCLUDED.capital,
			available = EXCLUDED.available,
			day_start_capital = EXCLUDED.day_start_capital,
			daily_realized_pnl = EXCLUDED.daily_realized_pnl,
			trading_day = EXCLUDED.trading_day,
			halted = EXCLUDED.halted,
			halt_reason = EXCLUDED.halt_reason,
			updated_at = NOW()`,
		state.Capital, state.Available, state.DayStartCapital,
		state.DailyRealizedPnL, state.TradingDay, state.Halted, string(state.HaltReason),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert capital state: %w", err)
	}

	committed := 0
	for _, t := range commit.Trades {
		if t.Committed() {
			committed++
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO trades (id, cycle_id, strategy, venue, market_id, outcome, direction, price, size, edge, status, leg_group_id, order_id, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			t.ID, t.CycleID, string(t.Strategy), string(t.Venue), t.MarketID,
			string(t.Outcome), string(t.Direction), t.Price, t.Size, t.Edge,
			string(t.Status), t.LegGroupID, t.OrderID, t.Reason, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
		}
	}

	for _, p := range commit.Opened {
		_, err = tx.Exec(ctx, `
			INSERT INTO positions (id, venue, market_id, outcome, direction, strategy, entry_price, size, leg_group_id, status, opened_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.ID, string(p.Venue), p.MarketID, string(p.Outcome), string(p.Direction),
			string(p.Strategy), p.EntryPrice, p.Size, p.LegGroupID, string(p.Status), p.OpenedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert position %s: %w", p.ID, err)
		}
	}

	for _, c := range commit.Closed {
		tag, err := tx.Exec(ctx, `
			UPDATE positions SET status = $2, realized_pnl = $3, close_reason = $4, closed_at = $5
			WHERE id = $1 AND status = $6`,
			c.PositionID, string(c.Status), c.PnL, c.Reason, c.ClosedAt, string(domain.PositionOpen),
		)
		if err != nil {
			return fmt.Errorf("postgres: close position %s: %w", c.PositionID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: close position %s: %w", c.PositionID, domain.ErrNotFound)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO capital_history (day, start_capital, realized_pnl, trade_count, halted, halt_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (day) DO UPDATE SET
			realized_pnl = EXCLUDED.realized_pnl,
			trade_count = capital_history.trade_count + $4,
			halted = EXCLUDED.halted,
			halt_reason = EXCLUDED.halt_reason`,
		state.TradingDay, state.DayStartCapital, state.DailyRealizedPnL,
		committed, state.Halted, string(state.HaltReason),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert capital history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit cycle %s: %w", commit.CycleID, err)
	}
	return nil
}

// RecentTrades returns the newest trades, most recent first.
func (s *LedgerStore) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, cycle_id, strategy, venue, market_id, outcome, direction, price, size, edge, status, leg_group_id, order_id, reason, created_at
		FROM trades ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var strategy, venue, outcome, direction, status string
		if err := rows.Scan(&t.ID, &t.CycleID, &strategy, &venue, &t.MarketID,
			&outcome, &direction, &t.Price, &t.Size, &t.Edge, &status,
			&t.LegGroupID, &t.OrderID, &t.Reason, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Strategy = domain.StrategyKind(strategy)
		t.Venue = domain.Venue(venue)
		t.Outcome = domain.Outcome(outcome)
		t.Direction = domain.Direction(direction)
		t.Status = domain.TradeStatus(status)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CapitalHistory returns up to days of daily rows, oldest first.
func (s *LedgerStore) CapitalHistory(ctx context.Context, days int) ([]domain.CapitalDay, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := s.pool.Query(ctx, `
		SELECT day, start_capital, realized_pnl, trade_count, halted, halt_reason
		FROM (
			SELECT * FROM capital_history ORDER BY day DESC LIMIT $1
		) recent ORDER BY day ASC`, days)
	if err != nil {
		return nil, fmt.Errorf("postgres: list capital history: %w", err)
	}
	defer rows.Close()

	var history []domain.CapitalDay
	for rows.Next() {
		var d domain.CapitalDay
		var haltReason string
		if err := rows.Scan(&d.Day, &d.StartCapital, &d.RealizedPnL, &d.TradeCount, &d.Halted, &haltReason); err != nil {
			return nil, fmt.Errorf("postgres: scan capital day: %w", err)
		}
		d.HaltReason = domain.HaltReason(haltReason)
		history = append(history, d)
	}
	return history, rows.Err()
}
