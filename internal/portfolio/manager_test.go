package portfolio

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/scout-backend/internal/chain"
	"github.com/kjannette/scout-backend/internal/models"
	"github.com/kjannette/scout-backend/internal/repository/memory"
)

const wallet = "0x00000000000000000000000000000000000000aa"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, ch Chain) (*Manager, *memory.PortfolioStore) {
	t.Helper()
	store := memory.NewPortfolioStore()
	m := NewManager(store, ch, Options{}).WithClock(func() time.Time { return testNow })
	require.NoError(t, m.Load(context.Background()))
	return m, store
}

func tok(addr, symbol string) models.Token {
	return models.Token{Address: addr, Symbol: symbol, Name: symbol, Pool: "0xpool" + symbol}
}

// seed stores a portfolio and ledger and reloads the manager from it.
func seed(t *testing.T, m *Manager, store *memory.PortfolioStore, p *models.Portfolio, trades []models.TradeRecord) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), p, trades))
	require.NoError(t, m.Load(context.Background()))
}

func TestCalculatePositionSize(t *testing.T) {
	m, store := newTestManager(t, chain.NewFixture("", false))
	p := models.NewPortfolio()
	p.TotalBalance = 100
	seed(t, m, store, p, nil)

	assert.InDelta(t, 5.0, m.CalculatePositionSize(0.5), 1e-9)
	assert.InDelta(t, 2.0, m.CalculatePositionSize(0.1), 1e-9, "floor at 2%")
	assert.InDelta(t, 15.0, m.CalculatePositionSize(2), 1e-9, "cap at 15%")
}

func TestAvailableBalance_NeverNegative(t *testing.T) {
	m, store := newTestManager(t, chain.NewFixture("", false))
	p := models.NewPortfolio()
	p.TotalBalance = 1
	p.Holdings["0xa"] = models.PortfolioHolding{Amount: 10, AvgPrice: 1}
	seed(t, m, store, p, nil)

	assert.Equal(t, 0.0, m.AvailableBalance())
}

func TestUpdate_WeightedAverage(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, chain.NewFixture("", false))
	a := tok("0xa", "AAA")

	require.NoError(t, m.Update(ctx, a, models.ActionBuy, 100, 0.01, "0x1"))
	require.NoError(t, m.Update(ctx, a, models.ActionBuy, 300, 0.02, "0x2"))

	h, ok := m.Holding("0xa")
	require.True(t, ok)
	assert.InDelta(t, 400.0, h.Amount, 1e-9)
	assert.InDelta(t, (100*0.01+300*0.02)/400, h.AvgPrice, 1e-12)
	assert.Equal(t, "0xpoolAAA", h.Pool)
	assert.Equal(t, testNow, h.Timestamp)
	assert.Equal(t, 2, store.Saves())
}

func TestUpdate_StampsAtStoredPrecision(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPortfolioStore()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	m := NewManager(store, chain.NewFixture("", false), Options{}).WithClock(func() time.Time { return clock })

	require.NoError(t, m.Update(ctx, tok("0xa", "AAA"), models.ActionBuy, 100, 0.01, "0x1"))

	want := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	p, trades, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, want, trades[0].Timestamp)
	assert.Equal(t, want, p.Holdings["0xa"].Timestamp)
	assert.Equal(t, want, p.UpdatedAt)
	assert.Equal(t, "AAA", p.Holdings["0xa"].Name)
}

func TestUpdate_SellToDustClosesAndRepeatIsNoop(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, chain.NewFixture("", false))
	a := tok("0xa", "AAA")

	require.NoError(t, m.Update(ctx, a, models.ActionBuy, 10, 1, ""))
	require.NoError(t, m.Update(ctx, a, models.ActionSell, 4, 1.2, ""))
	h, ok := m.Holding("0xa")
	require.True(t, ok)
	assert.InDelta(t, 6.0, h.Amount, 1e-9)
	assert.Equal(t, 1.0, h.AvgPrice, "sells keep the cost basis")

	require.NoError(t, m.Update(ctx, a, models.ActionSell, 6-1e-7, 1.2, ""))
	_, ok = m.Holding("0xa")
	assert.False(t, ok, "remainder below dust closes the position")

	require.NoError(t, m.Update(ctx, a, models.ActionSell, 5, 1.2, ""))
	require.NoError(t, m.Update(ctx, tok("0xb", "BBB"), models.ActionSell, 5, 1, ""))
	assert.Len(t, m.RecentTrades(0), 3)
}

func TestUpdate_IgnoresEmptyFill(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, chain.NewFixture("", false))

	require.NoError(t, m.Update(ctx, tok("0xa", "AAA"), models.ActionBuy, 0, 0, ""))
	assert.Empty(t, m.Holdings())
	assert.Empty(t, m.RecentTrades(0))
	assert.Zero(t, store.Saves())
}

func TestUpdate_RejectsHold(t *testing.T) {
	m, _ := newTestManager(t, chain.NewFixture("", false))
	err := m.Update(context.Background(), tok("0xa", "AAA"), models.ActionHold, 1, 1, "")
	assert.Error(t, err)
}

func TestTradeHistoryCap(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(t, chain.NewFixture("", false))

	for i := 0; i <= models.MaxTradeHistory; i++ {
		require.NoError(t, m.Update(ctx, tok(fmt.Sprintf("0x%03d", i), fmt.Sprintf("T%03d", i)), models.ActionBuy, 1, 1, ""))
	}

	trades := m.RecentTrades(0)
	require.Len(t, trades, models.MaxTradeHistory)
	assert.Equal(t, "T100", trades[0].Symbol, "newest first")
	assert.Equal(t, "T001", trades[len(trades)-1].Symbol, "oldest dropped")

	_, stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, models.MaxTradeHistory)
	assert.Equal(t, "T100", stored[len(stored)-1].Symbol, "newest appended last")
}

func TestRecentTrades_Limit(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, chain.NewFixture("", false))
	for _, s := range []string{"A", "B", "C"} {
		require.NoError(t, m.Update(ctx, tok("0x"+s, s), models.ActionBuy, 1, 1, ""))
	}

	got := m.RecentTrades(2)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].Symbol)
	assert.Equal(t, "B", got[1].Symbol)
}

func TestSync_RecreatesHoldingFromHistory(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture(wallet, true)
	fx.Native = 10
	fx.SetBalance("0xd", 150)
	m, store := newTestManager(t, fx)

	seed(t, m, store, models.NewPortfolio(), []models.TradeRecord{
		{Timestamp: testNow.Add(-time.Hour), Action: models.ActionBuy, Symbol: "DDD", Address: "0xd", Amount: 150, Price: 0.002, Pool: "0xpd"},
	})

	require.NoError(t, m.SyncWithWallet(ctx))

	h, ok := m.Holding("0xd")
	require.True(t, ok)
	assert.Equal(t, 150.0, h.Amount)
	assert.Equal(t, 0.002, h.AvgPrice)
	assert.Equal(t, "DDD", h.Symbol)
	assert.Equal(t, "0xpd", h.Pool)
	assert.InDelta(t, 10+150*0.002, m.TotalValue(), 1e-9)
}

func TestSync_FailedBalanceReadLeavesHolding(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture(wallet, true)
	fx.FailBalance["0xa"] = true
	m, store := newTestManager(t, fx)

	p := models.NewPortfolio()
	p.Holdings["0xa"] = models.PortfolioHolding{Symbol: "AAA", Amount: 50, AvgPrice: 0.1, Pool: "0xp"}
	seed(t, m, store, p, []models.TradeRecord{{Action: models.ActionBuy, Symbol: "AAA", Address: "0xa", Amount: 50, Price: 0.1}})

	rep, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa"}, rep.Skipped)

	h, ok := m.Holding("0xa")
	require.True(t, ok)
	assert.Equal(t, 50.0, h.Amount)
}

func TestReconcile_CorrectsDrift(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture(wallet, true)
	fx.SetBalance("0xa", 90)
	fx.SetBalance("0xb", 20.00005)
	m, store := newTestManager(t, fx)

	p := models.NewPortfolio()
	p.Holdings["0xa"] = models.PortfolioHolding{Symbol: "AAA", Amount: 100, AvgPrice: 0.1}
	p.Holdings["0xb"] = models.PortfolioHolding{Symbol: "BBB", Amount: 20, AvgPrice: 0.1}
	seed(t, m, store, p, []models.TradeRecord{
		{Action: models.ActionBuy, Address: "0xa", Symbol: "AAA"},
		{Action: models.ActionBuy, Address: "0xb", Symbol: "BBB"},
	})

	rep, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa"}, rep.Corrected)
	assert.Equal(t, 2, rep.Checked)

	a, _ := m.Holding("0xa")
	assert.Equal(t, 90.0, a.Amount)
	assert.Equal(t, 0.1, a.AvgPrice, "cost basis is kept")
	b, _ := m.Holding("0xb")
	assert.Equal(t, 20.0, b.Amount, "within tolerance")
}

func TestReconcile_ZeroBalanceKeepsHoldingUntilPruned(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture(wallet, true)
	fx.SetBalance("0xa", 0)
	fx.FailBalance["0xb"] = true
	m, store := newTestManager(t, fx)

	p := models.NewPortfolio()
	p.Holdings["0xa"] = models.PortfolioHolding{Symbol: "AAA", Amount: 100, AvgPrice: 0.1}
	p.Holdings["0xb"] = models.PortfolioHolding{Symbol: "BBB", Amount: 5, AvgPrice: 0.1}
	seed(t, m, store, p, []models.TradeRecord{{Action: models.ActionBuy, Address: "0xa", Symbol: "AAA"}})

	rep, err := m.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa"}, rep.Empty)
	_, ok := m.Holding("0xa")
	assert.True(t, ok)

	removed, err := m.PruneEmptyHoldings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa"}, removed)
	_, ok = m.Holding("0xa")
	assert.False(t, ok)
	_, ok = m.Holding("0xb")
	assert.True(t, ok, "failed read is never pruned")
}

func TestReconcile_RequiresWallet(t *testing.T) {
	m, _ := newTestManager(t, chain.NewFixture("", false))
	_, err := m.Reconcile(context.Background())
	assert.ErrorIs(t, err, chain.ErrNoWallet)

	_, err = m.PruneEmptyHoldings(context.Background())
	assert.ErrorIs(t, err, chain.ErrNoWallet)
}

func TestSync_TotalAndBaseline(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture(wallet, true)
	fx.Native = 8
	fx.SetBalance("0xa", 100)
	m, store := newTestManager(t, fx)

	p := models.NewPortfolio()
	p.Holdings["0xa"] = models.PortfolioHolding{Symbol: "AAA", Amount: 100, AvgPrice: 0.02}
	seed(t, m, store, p, []models.TradeRecord{{Action: models.ActionBuy, Address: "0xa", Symbol: "AAA"}})

	require.NoError(t, m.SyncWithWallet(ctx))
	assert.InDelta(t, 10.0, m.TotalValue(), 1e-9)
	assert.InDelta(t, 10.0, m.StartingBalance(), 1e-9)

	fx.Native = 3
	require.NoError(t, m.SyncWithWallet(ctx))
	assert.InDelta(t, 5.0, m.TotalValue(), 1e-9)
	assert.InDelta(t, 10.0, m.StartingBalance(), 1e-9, "baseline is captured once")

	stored, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, stored.TotalBalance, 1e-9)
	assert.Equal(t, testNow, stored.UpdatedAt)
}

func TestSync_ConfiguredBaseline(t *testing.T) {
	fx := chain.NewFixture(wallet, true)
	fx.Native = 4
	store := memory.NewPortfolioStore()
	m := NewManager(store, fx, Options{StartingBalance: 50})

	require.NoError(t, m.SyncWithWallet(context.Background()))
	assert.Equal(t, 50.0, m.StartingBalance())
}

func TestSync_ReadOnlySkipsReconcile(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture("", false)
	m, store := newTestManager(t, fx)

	p := models.NewPortfolio()
	p.TotalBalance = 7
	p.Holdings["0xa"] = models.PortfolioHolding{Symbol: "AAA", Amount: 100, AvgPrice: 0.02}
	seed(t, m, store, p, []models.TradeRecord{{Action: models.ActionBuy, Address: "0xa", Symbol: "AAA"}})

	require.NoError(t, m.SyncWithWallet(ctx))
	h, _ := m.Holding("0xa")
	assert.Equal(t, 100.0, h.Amount)
	assert.InDelta(t, 2.0, m.TotalValue(), 1e-9, "no wallet reads as zero cash")
}

type flakyWallet struct{ *chain.Fixture }

func (flakyWallet) WalletBalance(context.Context) (float64, error) {
	return 0, errors.New("rpc timeout")
}

func TestSync_WalletErrorKeepsCash(t *testing.T) {
	ctx := context.Background()
	fx := chain.NewFixture(wallet, true)
	fx.SetBalance("0xa", 100)
	m, store := newTestManager(t, flakyWallet{fx})

	p := models.NewPortfolio()
	p.TotalBalance = 9
	p.Holdings["0xa"] = models.PortfolioHolding{Symbol: "AAA", Amount: 100, AvgPrice: 0.02}
	seed(t, m, store, p, []models.TradeRecord{{Action: models.ActionBuy, Address: "0xa", Symbol: "AAA"}})

	require.NoError(t, m.SyncWithWallet(ctx))
	assert.InDelta(t, 9.0, m.TotalValue(), 1e-9)
}

func TestCountToday(t *testing.T) {
	m, store := newTestManager(t, chain.NewFixture("", false))
	seed(t, m, store, models.NewPortfolio(), []models.TradeRecord{
		{Timestamp: testNow.Add(-36 * time.Hour), Action: models.ActionBuy},
		{Timestamp: testNow.Add(-time.Hour), Action: models.ActionBuy},
		{Timestamp: testNow, Action: models.ActionSell},
	})

	n, err := m.CountToday(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
