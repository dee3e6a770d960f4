// Package memory is an in-process ledger store and cycle lock. It backs
// dry-run mode when no database is configured and gives tests a store with
// injectable failures.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mkarlsen/polyarb/internal/domain"
)

// LedgerStore implements domain.LedgerStore in memory.
type LedgerStore struct {
	mu        sync.Mutex
	state     domain.CapitalState
	seeded    bool
	initial   float64
	positions map[string]domain.Position
	trades    []domain.Trade
	history   map[string]domain.CapitalDay

	// SnapshotErr and CommitErr, when set, are returned by the matching
	// operation. Tests use them to simulate a corrupt or failing store.
	SnapshotErr error
	CommitErr   error
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates an empty store seeded with initialCapital.
func NewLedgerStore(initialCapital float64) *LedgerStore {
	return &LedgerStore{
		initial:   initialCapital,
		positions: make(map[string]domain.Position),
		history:   make(map[string]domain.CapitalDay),
	}
}

// Snapshot returns the capital state and open positions.
func (s *LedgerStore) Snapshot(ctx context.Context) (domain.CapitalState, []domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SnapshotErr != nil {
		return domain.CapitalState{}, nil, s.SnapshotErr
	}
	if !s.seeded {
		s.state = domain.CapitalState{
			Capital:         s.initial,
			Available:       s.initial,
			DayStartCapital: s.initial,
		}
		s.seeded = true
	}

	var open []domain.Position
	for _, p := range s.positions {
		if p.Open() {
			open = append(open, p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return s.state, open, nil
}

// CommitCycle applies the commit, or none of it when CommitErr is set.
func (s *LedgerStore) CommitCycle(ctx context.Context, commit domain.CycleCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CommitErr != nil {
		return s.CommitErr
	}

	s.state = commit.Capital
	s.seeded = true
	s.trades = append(s.trades, commit.Trades...)
	for _, p := range commit.Opened {
		s.positions[p.ID] = p
	}
	for _, c := range commit.Closed {
		p, ok := s.positions[c.PositionID]
		if !ok {
			continue
		}
		p.Status = c.Status
		pnl := c.PnL
		p.RealizedPnL = &pnl
		closedAt := c.ClosedAt
		p.ClosedAt = &closedAt
		s.positions[c.PositionID] = p
	}

	day := s.history[commit.Capital.TradingDay]
	day.Day = commit.Capital.TradingDay
	day.StartCapital = commit.Capital.DayStartCapital
	day.RealizedPnL = commit.Capital.DailyRealizedPnL
	day.Halted = commit.Capital.Halted
	day.HaltReason = commit.Capital.HaltReason
	for _, t := range commit.Trades {
		if t.Committed() {
			day.TradeCount++
		}
	}
	s.history[commit.Capital.TradingDay] = day
	return nil
}

// RecentTrades returns the newest trades, most recent first.
func (s *LedgerStore) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades := make([]domain.Trade, len(s.trades))
	copy(trades, s.trades)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].CreatedAt.After(trades[j].CreatedAt)
	})
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

// CapitalHistory returns up to days of daily rows, oldest first.
func (s *LedgerStore) CapitalHistory(ctx context.Context, days int) ([]domain.CapitalDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]domain.CapitalDay, 0, len(s.history))
	for _, d := range s.history {
		history = append(history, d)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Day < history[j].Day })
	if days > 0 && len(history) > days {
		history = history[len(history)-days:]
	}
	return history, nil
}

// CycleLock implements domain.CycleLocker in memory.
type CycleLock struct {
	mu         sync.Mutex
	token      string
	acquiredAt time.Time
}

var _ domain.CycleLocker = (*CycleLock)(nil)

// NewCycleLock creates an unheld lock.
func NewCycleLock() *CycleLock {
	return &CycleLock{}
}

// Acquire claims the lock, taking over a stale holder.
func (l *CycleLock) Acquire(ctx context.Context, token string, staleAfter time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" && time.Since(l.acquiredAt) < staleAfter {
		return nil, domain.ErrLockHeld
	}
	l.token = token
	l.acquiredAt = time.Now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.token == token {
				l.token = ""
			}
		})
	}
	return release, nil
}

// Hold forces the lock into a held state for tests. age backdates the
// acquisition so staleness takeover can be exercised.
func (l *CycleLock) Hold(token string, age time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.token = token
	l.acquiredAt = time.Now().Add(-age)
}
