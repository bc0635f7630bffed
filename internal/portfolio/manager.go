// Package portfolio owns the persisted holdings and trade ledger. It is the
// only writer of either.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/chain"
	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

const (
	basePositionShare = 0.10
	minPositionShare  = 0.02
	maxPositionShare  = 0.15

	// Amount drift tolerated before the chain balance overrides ours.
	reconcileTolerance = 1e-4
)

// Store persists the portfolio document together with its trade history.
type Store interface {
	Load(ctx context.Context) (*models.Portfolio, []models.TradeRecord, error)
	Save(ctx context.Context, p *models.Portfolio, trades []models.TradeRecord) error
}

// Chain is the subset of the gateway used for balances.
type Chain interface {
	WalletAddress() (string, bool)
	WalletBalance(ctx context.Context) (float64, error)
	TokenBalance(ctx context.Context, token, owner string) float64
}

type Options struct {
	// StartingBalance fixes the drawdown baseline. Zero captures the first
	// synced total instead.
	StartingBalance float64
}

type ReconcileReport struct {
	Checked   int      `json:"checked"`
	Skipped   []string `json:"skipped,omitempty"`
	Recreated []string `json:"recreated,omitempty"`
	Corrected []string `json:"corrected,omitempty"`
	// Empty lists holdings whose on-chain balance reads zero. They are kept
	// until PruneEmptyHoldings is called.
	Empty []string `json:"empty,omitempty"`
}

type Manager struct {
	store Store
	chain Chain
	opts  Options
	now   func() time.Time
	log   zerolog.Logger

	mu        sync.RWMutex
	portfolio *models.Portfolio
	trades    []models.TradeRecord
}

func NewManager(store Store, ch Chain, opts Options) *Manager {
	return &Manager{
		store:     store,
		chain:     ch,
		opts:      opts,
		now:       time.Now,
		log:       logging.Component("portfolio"),
		portfolio: models.NewPortfolio(),
	}
}

// WithClock replaces the clock used for timestamps.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Load replaces in-memory state with the stored one.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

func (m *Manager) loadLocked(ctx context.Context) error {
	p, trades, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if p.Holdings == nil {
		p.Holdings = make(map[string]models.PortfolioHolding)
	}
	m.portfolio = p
	m.trades = capTrades(trades)
	return nil
}

// stamp is the current time at the precision Postgres stores, so a saved
// ledger loads back identical.
func (m *Manager) stamp() time.Time {
	return m.now().Truncate(time.Microsecond)
}

func (m *Manager) persistLocked(ctx context.Context) error {
	m.portfolio.UpdatedAt = m.stamp()
	if err := m.store.Save(ctx, m.portfolio, m.trades); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// CalculatePositionSize scales a 10% base position by confidence, bounded
// to 2-15% of the total balance.
func (m *Manager) CalculatePositionSize(confidence float64) float64 {
	m.mu.RLock()
	total := m.portfolio.TotalBalance
	m.mu.RUnlock()

	size := total * basePositionShare * confidence
	return math.Max(total*minPositionShare, math.Min(total*maxPositionShare, size))
}

// AvailableBalance is the uninvested part of the total, never negative.
func (m *Manager) AvailableBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return math.Max(0, m.portfolio.TotalBalance-m.portfolio.InvestedValue())
}

func (m *Manager) TotalValue() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portfolio.TotalBalance
}

func (m *Manager) StartingBalance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portfolio.StartingBalance
}

func (m *Manager) Holdings() map[string]models.PortfolioHolding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portfolio.Clone().Holdings
}

func (m *Manager) Holding(address string) (models.PortfolioHolding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.portfolio.Holdings[address]
	return h, ok
}

func (m *Manager) Snapshot() *models.Portfolio {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.portfolio.Clone()
}

// RecentTrades returns up to n trades, newest first.
func (m *Manager) RecentTrades(n int) []models.TradeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.trades) {
		n = len(m.trades)
	}
	out := make([]models.TradeRecord, 0, n)
	for i := len(m.trades) - 1; i >= len(m.trades)-n; i-- {
		out = append(out, m.trades[i])
	}
	return out
}

// CountToday counts ledger entries since midnight UTC.
func (m *Manager) CountToday(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	midnight := m.now().UTC().Truncate(24 * time.Hour)
	n := 0
	for _, t := range m.trades {
		if !t.Timestamp.Before(midnight) {
			n++
		}
	}
	return n, nil
}

// SyncWithWallet reloads stored state, reconciles holdings against the chain
// and recomputes the total as live wallet balance plus invested value.
func (m *Manager) SyncWithWallet(ctx context.Context) error {
	lg := logging.Ctx(ctx, m.log)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		lg.Warn().Err(err).Msg("reload failed, continuing with in-memory state")
	}

	live, err := m.chain.WalletBalance(ctx)
	if err != nil {
		live = math.Max(0, m.portfolio.TotalBalance-m.portfolio.InvestedValue())
		lg.Warn().Err(err).Float64("cash", live).Msg("wallet balance unavailable, keeping last known cash")
	}

	if _, ok := m.chain.WalletAddress(); ok {
		m.reconcileLocked(ctx)
	}

	p := m.portfolio
	p.TotalBalance = live + p.InvestedValue()
	switch {
	case m.opts.StartingBalance > 0:
		p.StartingBalance = m.opts.StartingBalance
	case p.StartingBalance == 0 && p.TotalBalance > 0:
		p.StartingBalance = p.TotalBalance
		lg.Info().Float64("starting_balance", p.StartingBalance).Msg("baseline captured")
	}

	lg.Debug().Float64("wallet", live).Float64("total", p.TotalBalance).
		Int("holdings", len(p.Holdings)).Msg("synced with wallet")
	return m.persistLocked(ctx)
}

// Reconcile checks every address in the trade history against its on-chain
// balance and persists any correction.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chain.WalletAddress(); !ok {
		return ReconcileReport{}, chain.ErrNoWallet
	}
	rep := m.reconcileLocked(ctx)
	return rep, m.persistLocked(ctx)
}

// reconcileLocked treats the chain as truth for quantity and local state as
// truth for cost basis. A failed balance read leaves the address untouched,
// and a zero balance never deletes a holding.
func (m *Manager) reconcileLocked(ctx context.Context) ReconcileReport {
	lg := logging.Ctx(ctx, m.log)
	var rep ReconcileReport
	owner, _ := m.chain.WalletAddress()

	for _, addr := range m.tradedAddresses() {
		rep.Checked++
		bal := m.chain.TokenBalance(ctx, addr, owner)
		if bal == chain.BalanceQueryFailed {
			rep.Skipped = append(rep.Skipped, addr)
			lg.Warn().Str("token", addr).Msg("balance read failed, skipping reconciliation")
			continue
		}

		h, held := m.portfolio.Holdings[addr]
		switch {
		case !held && bal > models.DustThreshold:
			last, _ := m.lastTrade(addr)
			m.portfolio.Holdings[addr] = models.PortfolioHolding{
				Symbol:    last.Symbol,
				Amount:    bal,
				AvgPrice:  last.Price,
				Timestamp: last.Timestamp,
				Pool:      last.Pool,
			}
			rep.Recreated = append(rep.Recreated, addr)
			lg.Info().Str("symbol", last.Symbol).Float64("amount", bal).
				Float64("avg_price", last.Price).Msg("holding recreated from chain")

		case held && bal <= models.DustThreshold:
			rep.Empty = append(rep.Empty, addr)
			lg.Warn().Str("symbol", h.Symbol).Float64("recorded", h.Amount).
				Msg("on-chain balance is zero, holding kept")

		case held && math.Abs(h.Amount-bal) > reconcileTolerance:
			lg.Info().Str("symbol", h.Symbol).Float64("recorded", h.Amount).
				Float64("onchain", bal).Msg("holding amount corrected")
			h.Amount = bal
			m.portfolio.Holdings[addr] = h
			rep.Corrected = append(rep.Corrected, addr)
		}
	}
	return rep
}

// PruneEmptyHoldings removes holdings whose on-chain balance reads a
// legitimate zero. Failed reads are never pruned.
func (m *Manager) PruneEmptyHoldings(ctx context.Context) ([]string, error) {
	lg := logging.Ctx(ctx, m.log)
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, ok := m.chain.WalletAddress()
	if !ok {
		return nil, chain.ErrNoWallet
	}

	var removed []string
	for _, addr := range sortedKeys(m.portfolio.Holdings) {
		bal := m.chain.TokenBalance(ctx, addr, owner)
		if bal == chain.BalanceQueryFailed || bal > models.DustThreshold {
			continue
		}
		lg.Info().Str("symbol", m.portfolio.Holdings[addr].Symbol).Msg("pruning empty holding")
		delete(m.portfolio.Holdings, addr)
		removed = append(removed, addr)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, m.persistLocked(ctx)
}

// Update applies a filled trade. BUY merges into the holding at a weighted
// average price; SELL decrements and closes below dust. Selling a token
// that is not held changes nothing.
func (m *Manager) Update(ctx context.Context, token models.Token, action models.Action, amount, price float64, txHash string) error {
	if amount <= 0 {
		return nil
	}
	lg := logging.Ctx(ctx, m.log)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.stamp()
	holdings := m.portfolio.Holdings

	switch action {
	case models.ActionBuy:
		h, ok := holdings[token.Address]
		if !ok {
			h = models.PortfolioHolding{
				Symbol:    token.Symbol,
				Name:      token.Name,
				Amount:    amount,
				AvgPrice:  price,
				Timestamp: now,
				Pool:      token.Pool,
			}
		} else {
			cost := h.Amount*h.AvgPrice + amount*price
			h.Amount += amount
			h.AvgPrice = cost / h.Amount
			if h.Pool == "" {
				h.Pool = token.Pool
			}
			if h.Name == "" {
				h.Name = token.Name
			}
		}
		holdings[token.Address] = h
		lg.Info().Str("symbol", token.Symbol).Float64("amount", amount).
			Float64("price", price).Msg("holding increased")

	case models.ActionSell:
		h, ok := holdings[token.Address]
		if !ok {
			lg.Debug().Str("symbol", token.Symbol).Msg("sell of unheld token ignored")
			return nil
		}
		h.Amount -= amount
		if h.Amount < models.DustThreshold {
			delete(holdings, token.Address)
			lg.Info().Str("symbol", token.Symbol).Msg("position closed")
		} else {
			holdings[token.Address] = h
			lg.Info().Str("symbol", token.Symbol).Float64("remaining", h.Amount).Msg("holding reduced")
		}

	default:
		return fmt.Errorf("update: unsupported action %q", action)
	}

	m.trades = capTrades(append(m.trades, models.TradeRecord{
		Timestamp: now,
		Action:    action,
		Symbol:    token.Symbol,
		Address:   token.Address,
		Amount:    amount,
		Price:     price,
		TxHash:    txHash,
		Pool:      token.Pool,
	}))

	return m.persistLocked(ctx)
}

// tradedAddresses lists every address in the ledger once, in first-seen order.
func (m *Manager) tradedAddresses() []string {
	seen := make(map[string]struct{}, len(m.trades))
	var out []string
	for _, t := range m.trades {
		if _, ok := seen[t.Address]; ok {
			continue
		}
		seen[t.Address] = struct{}{}
		out = append(out, t.Address)
	}
	return out
}

func (m *Manager) lastTrade(address string) (models.TradeRecord, bool) {
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].Address == address {
			return m.trades[i], true
		}
	}
	return models.TradeRecord{}, false
}

// capTrades keeps the newest MaxTradeHistory entries.
func capTrades(trades []models.TradeRecord) []models.TradeRecord {
	if len(trades) <= models.MaxTradeHistory {
		return trades
	}
	return append([]models.TradeRecord(nil), trades[len(trades)-models.MaxTradeHistory:]...)
}

func sortedKeys(m map[string]models.PortfolioHolding) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
