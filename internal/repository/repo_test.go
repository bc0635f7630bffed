package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/scout-backend/internal/models"
	"github.com/kjannette/scout-backend/internal/portfolio"
	"github.com/kjannette/scout-backend/internal/repository"
	"github.com/kjannette/scout-backend/internal/testutil"
)

// ---------- PortfolioRepo ----------

func TestPortfolioRepo_EmptyDatabase(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPortfolioRepo(pool)

	p, trades, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, p.Holdings)
	assert.Zero(t, p.TotalBalance)
	assert.Empty(t, trades)
}

func TestPortfolioRepo_SaveLoad(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPortfolioRepo(pool)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Microsecond)
	p := models.NewPortfolio()
	p.TotalBalance = 12.5
	p.StartingBalance = 10
	p.UpdatedAt = ts
	p.Holdings["0xaaa"] = models.PortfolioHolding{
		Symbol: "AAA", Amount: 1500, AvgPrice: 0.0004, Timestamp: ts, Pool: "0xpool",
	}

	trades := []models.TradeRecord{
		{Timestamp: ts.Add(-time.Minute), Action: models.ActionBuy, Symbol: "AAA", Address: "0xaaa", Amount: 1500, Price: 0.0004, TxHash: "0x01", Pool: "0xpool"},
		{Timestamp: ts, Action: models.ActionSell, Symbol: "BBB", Address: "0xbbb", Amount: 10, Price: 0.2},
	}
	require.NoError(t, repo.Save(ctx, p, trades))

	got, gotTrades, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12.5, got.TotalBalance)
	assert.Equal(t, 10.0, got.StartingBalance)
	assert.True(t, ts.Equal(got.UpdatedAt))
	require.Contains(t, got.Holdings, "0xaaa")
	assert.Equal(t, 1500.0, got.Holdings["0xaaa"].Amount)
	assert.Equal(t, "0xpool", got.Holdings["0xaaa"].Pool)

	require.Len(t, gotTrades, 2)
	assert.Equal(t, "AAA", gotTrades[0].Symbol)
	assert.Equal(t, models.ActionSell, gotTrades[1].Action)
	assert.Empty(t, gotTrades[1].TxHash)
}

func TestPortfolioRepo_SaveReplacesHistory(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPortfolioRepo(pool)
	ctx := context.Background()

	first := []models.TradeRecord{
		{Timestamp: time.Now(), Action: models.ActionBuy, Symbol: "A", Address: "0xa", Amount: 1, Price: 1},
		{Timestamp: time.Now(), Action: models.ActionBuy, Symbol: "B", Address: "0xb", Amount: 1, Price: 1},
	}
	require.NoError(t, repo.Save(ctx, models.NewPortfolio(), first))
	require.NoError(t, repo.Save(ctx, models.NewPortfolio(), first[1:]))

	_, trades, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "B", trades[0].Symbol)

	n, err := repo.CountToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPortfolioRepo_ManagerLedgerRoundTrips(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewPortfolioRepo(pool)
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	pm := portfolio.NewManager(repo, nil, portfolio.Options{}).WithClock(func() time.Time { return clock })
	cat := models.Token{Address: "0xcat", Symbol: "CAT", Name: "Cat Coin", Pool: "0xpool"}
	require.NoError(t, pm.Update(ctx, cat, models.ActionBuy, 500, 0.01, "0x01"))
	clock = clock.Add(time.Minute + 987*time.Nanosecond)
	require.NoError(t, pm.Update(ctx, cat, models.ActionSell, 200, 0.02, "0x02"))

	_, stored, err := repo.Load(ctx)
	require.NoError(t, err)
	inMemory := pm.RecentTrades(0)
	require.Len(t, stored, 2)
	require.Len(t, inMemory, 2)
	for i, tr := range stored {
		mem := inMemory[len(inMemory)-1-i]
		assert.True(t, mem.Timestamp.Equal(tr.Timestamp), "trade %d: %s vs %s", i, mem.Timestamp, tr.Timestamp)
		assert.Equal(t, mem.TxHash, tr.TxHash)
	}

	reloaded := portfolio.NewManager(repo, nil, portfolio.Options{})
	require.NoError(t, reloaded.Load(ctx))
	h, ok := reloaded.Holding("0xcat")
	require.True(t, ok)
	want, _ := pm.Holding("0xcat")
	assert.True(t, want.Timestamp.Equal(h.Timestamp))
	assert.Equal(t, "Cat Coin", h.Name)
	assert.InDelta(t, 300.0, h.Amount, 1e-9)
}

// ---------- SeenTokenRepo ----------

func TestSeenTokenRepo(t *testing.T) {
	pool := testutil.SetupPool(t)
	repo := repository.NewSeenTokenRepo(pool)
	ctx := context.Background()

	require.NoError(t, repo.MarkSeen(ctx, "0xABC", "0xdef"))
	require.NoError(t, repo.MarkSeen(ctx, "0xabc"))
	require.NoError(t, repo.MarkSeen(ctx))

	got, err := repo.LoadSeen(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0xabc", "0xdef"}, got)
}
