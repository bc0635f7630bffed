// Package trading submits buys and sells through the router and reports the
// realized fill.
package trading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/chain"
	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

var (
	ErrNoPool        = errors.New("no pool address")
	ErrInvalidAction = errors.New("invalid action")
	ErrInvalidSize   = errors.New("trade size must be positive")
	ErrNoBalance     = errors.New("no token balance to sell")
)

// Gateway is the subset of the chain gateway used for trading.
type Gateway interface {
	CanSign() bool
	RawTokenBalance(ctx context.Context, token string) (*big.Int, error)
	NativeBalanceWei(ctx context.Context) (*big.Int, error)
	Buy(ctx context.Context, token string, value *big.Int) (*chain.TxOutcome, error)
	Approve(ctx context.Context, token string, amount *big.Int) (*chain.TxOutcome, error)
	Sell(ctx context.Context, token string, amount *big.Int) (*chain.TxOutcome, error)
}

type Executor struct {
	gw  Gateway
	log zerolog.Logger
}

func NewExecutor(gw Gateway) *Executor {
	return &Executor{gw: gw, log: logging.Component("trading")}
}

// Execute carries out decision for token. size is the base-asset amount to
// spend on a BUY and the token quantity to sell on a SELL. Without a signer
// nothing is sent and an empty successful fill is reported. Failures are
// returned in the result, never as a panic or error.
func (e *Executor) Execute(ctx context.Context, decision models.InvestmentDecision, token models.Token, size float64) models.TradeResult {
	lg := logging.Ctx(ctx, e.log).With().Str("symbol", token.Symbol).Str("action", string(decision.Action)).Logger()

	if !e.gw.CanSign() {
		lg.Warn().Float64("size", size).Float64("confidence", decision.Confidence).
			Msg("read-only mode, trade simulated")
		return models.TradeResult{Success: true}
	}

	var (
		res models.TradeResult
		err error
	)
	switch decision.Action {
	case models.ActionBuy:
		res, err = e.buy(ctx, token, size)
	case models.ActionSell:
		res, err = e.sell(ctx, lg, token, size)
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidAction, decision.Action)
	}

	if err != nil {
		lg.Error().Err(err).Msg("trade failed")
		res.Success = false
		res.Error = err.Error()
		return res
	}
	lg.Info().Float64("amount", res.Amount).Float64("price", res.Price).Str("tx", res.TxHash).
		Msg("trade filled")
	return res
}

// buy spends monAmount and measures the fill from the token balance delta.
func (e *Executor) buy(ctx context.Context, token models.Token, monAmount float64) (models.TradeResult, error) {
	if !token.Tradable() {
		return models.TradeResult{}, ErrNoPool
	}
	if monAmount <= 0 || math.IsNaN(monAmount) {
		return models.TradeResult{}, ErrInvalidSize
	}

	before, err := e.gw.RawTokenBalance(ctx, token.Address)
	if err != nil {
		return models.TradeResult{}, fmt.Errorf("balance before buy: %w", err)
	}

	out, err := e.gw.Buy(ctx, token.Address, chain.ToWei(monAmount))
	if err != nil {
		return models.TradeResult{}, err
	}
	if out.Reverted {
		return models.TradeResult{TxHash: out.Hash}, errors.New("transaction reverted")
	}

	after, err := e.gw.RawTokenBalance(ctx, token.Address)
	if err != nil {
		return models.TradeResult{TxHash: out.Hash}, fmt.Errorf("balance after buy: %w", err)
	}

	received := chain.FromWei(new(big.Int).Sub(after, before))
	res := models.TradeResult{Success: true, Amount: received, TxHash: out.Hash}
	if received > 0 {
		res.Price = monAmount / received
	}
	return res, nil
}

// sell approves the router, waits for that to confirm, then sells
// tokenAmount and measures proceeds from the native balance delta. The
// quantity sent is capped at the wallet's raw balance: a recorded float
// amount converted back to wei can land a few units above what is held,
// and the router reverts any sell larger than the balance.
func (e *Executor) sell(ctx context.Context, lg zerolog.Logger, token models.Token, tokenAmount float64) (models.TradeResult, error) {
	if !token.Tradable() {
		return models.TradeResult{}, ErrNoPool
	}
	if tokenAmount <= 0 || math.IsNaN(tokenAmount) {
		return models.TradeResult{}, ErrInvalidSize
	}

	held, err := e.gw.RawTokenBalance(ctx, token.Address)
	if err != nil {
		return models.TradeResult{}, fmt.Errorf("token balance before sell: %w", err)
	}
	if held == nil {
		held = new(big.Int)
	}
	amount := chain.ToWei(tokenAmount)
	if amount.Cmp(held) > 0 {
		lg.Debug().Str("requested", amount.String()).Str("held", held.String()).Msg("sell clamped to balance")
		amount = new(big.Int).Set(held)
	}
	if amount.Sign() <= 0 {
		return models.TradeResult{}, ErrNoBalance
	}
	sold := chain.FromWei(amount)

	before, err := e.gw.NativeBalanceWei(ctx)
	if err != nil {
		return models.TradeResult{}, fmt.Errorf("native balance before sell: %w", err)
	}

	appr, err := e.gw.Approve(ctx, token.Address, amount)
	if err != nil {
		return models.TradeResult{}, err
	}
	if appr.Reverted {
		return models.TradeResult{TxHash: appr.Hash}, errors.New("approve reverted")
	}

	out, err := e.gw.Sell(ctx, token.Address, amount)
	if err != nil {
		return models.TradeResult{}, err
	}
	if out.Reverted {
		return models.TradeResult{TxHash: out.Hash}, errors.New("sell reverted")
	}

	res := models.TradeResult{Success: true, Amount: sold, TxHash: out.Hash}
	after, err := e.gw.NativeBalanceWei(ctx)
	if err != nil {
		// the sell is final; report it without a price
		lg.Warn().Err(err).Msg("native balance after sell unavailable")
		return res, nil
	}
	received := math.Max(0, chain.FromWei(new(big.Int).Sub(after, before)))
	res.Price = received / sold
	return res, nil
}
