package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolio_JSONRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	p := &Portfolio{
		Holdings: map[string]PortfolioHolding{
			"0xaaa": {Symbol: "CAT", Amount: 150, AvgPrice: 0.002, Timestamp: ts, Pool: "0xpool"},
			"0xbbb": {Symbol: "DOG", Amount: 1.5, AvgPrice: 0.3, Timestamp: ts.Add(time.Hour)},
		},
		TotalBalance:    42.75,
		StartingBalance: 40,
		UpdatedAt:       ts,
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var back Portfolio
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, p.TotalBalance, back.TotalBalance)
	assert.Equal(t, p.StartingBalance, back.StartingBalance)
	assert.True(t, p.UpdatedAt.Equal(back.UpdatedAt))
	require.Len(t, back.Holdings, 2)
	for addr, h := range p.Holdings {
		got := back.Holdings[addr]
		assert.Equal(t, h.Symbol, got.Symbol)
		assert.Equal(t, h.Amount, got.Amount)
		assert.Equal(t, h.AvgPrice, got.AvgPrice)
		assert.Equal(t, h.Pool, got.Pool)
		assert.True(t, h.Timestamp.Equal(got.Timestamp))
	}
}

func TestTradeHistory_JSONRoundTripKeepsOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := []TradeRecord{
		{Timestamp: base, Action: ActionBuy, Symbol: "A", Address: "0x1", Amount: 10, Price: 0.1, TxHash: "0xh1", Pool: "0xp"},
		{Timestamp: base.Add(time.Minute), Action: ActionSell, Symbol: "A", Address: "0x1", Amount: 10, Price: 0.2},
		{Timestamp: base.Add(2 * time.Minute), Action: ActionBuy, Symbol: "B", Address: "0x2", Amount: 3, Price: 1},
	}

	raw, err := json.Marshal(trades)
	require.NoError(t, err)

	var back []TradeRecord
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back, len(trades))
	for i := range trades {
		assert.Equal(t, trades[i].Action, back[i].Action)
		assert.Equal(t, trades[i].Address, back[i].Address)
		assert.Equal(t, trades[i].Amount, back[i].Amount)
		assert.Equal(t, trades[i].Price, back[i].Price)
		assert.Equal(t, trades[i].TxHash, back[i].TxHash)
		assert.Equal(t, trades[i].Pool, back[i].Pool)
		assert.True(t, trades[i].Timestamp.Equal(back[i].Timestamp))
	}
}

func TestPortfolio_InvestedValueAndClone(t *testing.T) {
	p := NewPortfolio()
	p.Holdings["0x1"] = PortfolioHolding{Amount: 100, AvgPrice: 0.5}
	p.Holdings["0x2"] = PortfolioHolding{Amount: 10, AvgPrice: 2}
	assert.InDelta(t, 70.0, p.InvestedValue(), 1e-9)

	c := p.Clone()
	c.Holdings["0x3"] = PortfolioHolding{Amount: 1, AvgPrice: 1}
	assert.Len(t, p.Holdings, 2, "clone must not share the holdings map")
}
