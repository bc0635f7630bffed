// Package risk watches open positions for exit conditions, checks portfolio
// concentration and drawdown, and gates new buys.
package risk

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

// PriceSource returns a token's current price, or 0 when unknown.
type PriceSource interface {
	TokenPrice(ctx context.Context, token string) float64
}

// Policy holds the position and portfolio thresholds. Percentages are
// signed: StopLossPercent -20 closes a position at a 20% loss.
type Policy struct {
	StopLossPercent         float64
	TakeProfitPercent       float64
	MaxPositionAge          time.Duration
	MaxDrawdownPercent      float64
	MaxPositionSharePercent float64
}

func DefaultPolicy() Policy {
	return Policy{
		StopLossPercent:         -20,
		TakeProfitPercent:       50,
		MaxPositionAge:          72 * time.Hour,
		MaxDrawdownPercent:      -30,
		MaxPositionSharePercent: 20,
	}
}

type PositionStatus struct {
	Address      string                  `json:"address"`
	Holding      models.PortfolioHolding `json:"holding"`
	CurrentPrice float64                 `json:"currentPrice"`
	EntryPrice   float64                 `json:"entryPrice"`
	PnLPercent   float64                 `json:"pnlPercent"`
	AgeHours     float64                 `json:"ageHours"`
	ShouldClose  bool                    `json:"shouldClose"`
	Reason       string                  `json:"reason,omitempty"`
}

type Health struct {
	Healthy    bool    `json:"healthy"`
	Drawdown   float64 `json:"drawdown"`
	ShouldHalt bool    `json:"shouldHalt"`
}

type Manager struct {
	prices PriceSource
	policy Policy
	now    func() time.Time
	log    zerolog.Logger
}

func NewManager(prices PriceSource, policy Policy) *Manager {
	return &Manager{
		prices: prices,
		policy: policy,
		now:    time.Now,
		log:    logging.Component("risk"),
	}
}

// WithClock replaces the clock used for position age.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) Policy() Policy { return m.policy }

// EvaluatePosition decides whether one holding should be closed. A failed
// or nonsensical price read falls back to the entry price, so it can never
// trigger a price-based exit.
func (m *Manager) EvaluatePosition(ctx context.Context, address string, h models.PortfolioHolding) PositionStatus {
	st := PositionStatus{
		Address:      address,
		Holding:      h,
		EntryPrice:   h.AvgPrice,
		CurrentPrice: h.AvgPrice,
	}

	if h.Pool == "" {
		st.Reason = "No pool address (legacy position)"
		return st
	}

	price := m.prices.TokenPrice(ctx, address)
	if price > 0 && !math.IsNaN(price) && !math.IsInf(price, 0) {
		st.CurrentPrice = price
	} else {
		lg := logging.Ctx(ctx, m.log)
		lg.Warn().Str("symbol", h.Symbol).Str("token", address).
			Msg("price unavailable, using entry price")
	}

	if st.EntryPrice > 0 {
		st.PnLPercent = (st.CurrentPrice - st.EntryPrice) / st.EntryPrice * 100
	}
	st.AgeHours = m.now().Sub(h.Timestamp).Hours()

	switch {
	case st.PnLPercent <= m.policy.StopLossPercent:
		st.ShouldClose = true
		st.Reason = fmt.Sprintf("Stop-loss triggered: %.1f%% loss", st.PnLPercent)
	case st.PnLPercent >= m.policy.TakeProfitPercent:
		st.ShouldClose = true
		st.Reason = fmt.Sprintf("Take-profit triggered: %.1f%% gain", st.PnLPercent)
	case m.policy.MaxPositionAge > 0 && st.AgeHours >= m.policy.MaxPositionAge.Hours():
		st.ShouldClose = true
		st.Reason = fmt.Sprintf("Position too old: %.1f hours", st.AgeHours)
	}
	return st
}

// CheckPositions evaluates every holding, ordered by address.
func (m *Manager) CheckPositions(ctx context.Context, holdings map[string]models.PortfolioHolding) []PositionStatus {
	lg := logging.Ctx(ctx, m.log)
	addrs := make([]string, 0, len(holdings))
	for a := range holdings {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	out := make([]PositionStatus, 0, len(addrs))
	for _, a := range addrs {
		st := m.EvaluatePosition(ctx, a, holdings[a])
		if st.ShouldClose {
			lg.Warn().Str("symbol", st.Holding.Symbol).Str("reason", st.Reason).
				Msg("position should be closed")
		}
		out = append(out, st)
	}
	return out
}

// CheckRebalanceNeeded reports whether any single holding is worth more than
// the configured share of totalValue.
func (m *Manager) CheckRebalanceNeeded(holdings map[string]models.PortfolioHolding, totalValue float64) bool {
	if len(holdings) == 0 || totalValue <= 0 {
		return false
	}
	for _, h := range holdings {
		share := h.Value() / totalValue * 100
		if share > m.policy.MaxPositionSharePercent {
			m.log.Warn().Str("symbol", h.Symbol).Float64("share_pct", share).
				Float64("max_pct", m.policy.MaxPositionSharePercent).
				Msg("position exceeds portfolio share")
			return true
		}
	}
	return false
}

// CheckPortfolioHealth measures drawdown from the starting value. Without a
// baseline there is nothing to measure and the portfolio counts as healthy.
func (m *Manager) CheckPortfolioHealth(totalValue, startingValue float64) Health {
	if startingValue <= 0 {
		return Health{Healthy: true}
	}
	dd := (totalValue - startingValue) / startingValue * 100
	h := Health{
		Healthy:    dd > m.policy.MaxDrawdownPercent,
		Drawdown:   dd,
		ShouldHalt: dd <= m.policy.MaxDrawdownPercent,
	}
	if h.ShouldHalt {
		m.log.Error().Float64("drawdown_pct", dd).Float64("limit_pct", m.policy.MaxDrawdownPercent).
			Msg("portfolio drawdown exceeds limit")
	}
	return h
}
