package models

import "time"

// DustThreshold is the quantity below which a holding is considered closed.
const DustThreshold = 1e-6

// MaxTradeHistory caps the persisted trade ledger.
const MaxTradeHistory = 100

type PortfolioHolding struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name,omitempty"`
	Amount    float64   `json:"amount"`
	AvgPrice  float64   `json:"avgPrice"`
	Timestamp time.Time `json:"timestamp"`
	Pool      string    `json:"pool,omitempty"`
}

func (h PortfolioHolding) Value() float64 { return h.Amount * h.AvgPrice }

type Portfolio struct {
	Holdings        map[string]PortfolioHolding `json:"holdings"`
	TotalBalance    float64                     `json:"totalBalance"`
	StartingBalance float64                     `json:"startingBalance,omitempty"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}

func NewPortfolio() *Portfolio {
	return &Portfolio{Holdings: make(map[string]PortfolioHolding)}
}

// InvestedValue is the cost basis of all open holdings.
func (p *Portfolio) InvestedValue() float64 {
	var sum float64
	for _, h := range p.Holdings {
		sum += h.Value()
	}
	return sum
}

// Clone returns a deep copy safe to hand to readers.
func (p *Portfolio) Clone() *Portfolio {
	out := &Portfolio{
		Holdings:        make(map[string]PortfolioHolding, len(p.Holdings)),
		TotalBalance:    p.TotalBalance,
		StartingBalance: p.StartingBalance,
		UpdatedAt:       p.UpdatedAt,
	}
	for k, v := range p.Holdings {
		out.Holdings[k] = v
	}
	return out
}
