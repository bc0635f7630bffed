package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixture_SellBeyondBalanceReverts(t *testing.T) {
	const token = "0x00000000000000000000000000000000000000Aa"
	fx := NewFixture("0xwallet", true)
	fx.Native = 1
	fx.SetPrice(token, 0.5)
	fx.SetRawBalance(token, big.NewInt(1000))

	out, err := fx.Sell(context.Background(), token, big.NewInt(1001))
	require.NoError(t, err)
	assert.True(t, out.Reverted)
	assert.Equal(t, big.NewInt(1000), fx.Balance(token), "a reverted sell moves nothing")
	assert.Equal(t, 1.0, fx.Native)

	out, err = fx.Sell(context.Background(), token, big.NewInt(1000))
	require.NoError(t, err)
	assert.False(t, out.Reverted)
	assert.Zero(t, fx.Balance(token).Sign())
	assert.Equal(t, []string{"sell:" + key(token), "sell:" + key(token)}, fx.CallLog())
}

func TestFixture_BuyCreditsBalance(t *testing.T) {
	const token = "0x00000000000000000000000000000000000000bb"
	fx := NewFixture("0xwallet", true)
	fx.Native = 10
	fx.SetPrice(token, 0.01)

	_, err := fx.Buy(context.Background(), token, ToWei(1))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, fx.TokenBalance(context.Background(), token, "0xwallet"), 1e-9)
	assert.InDelta(t, 9.0, fx.Native, 1e-12)
}
