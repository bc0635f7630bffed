package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/kjannette/scout-backend/internal/models"
)

// Fixture is a deterministic in-memory chain. Buys and sells settle
// instantly at the configured price. Token balances are held in wei and a
// sell larger than the balance reverts, as the token's transferFrom would.
// It serves tests and offline runs.
type Fixture struct {
	mu sync.Mutex

	Wallet   string
	Signer   bool
	Native   float64
	Events   []models.CreationEvent
	Prices   map[string]float64
	Curves   map[string]*models.CurveState
	Blocks   map[uint64]time.Time

	// Failure injection, keyed by lowercase token address.
	FailBalance map[string]bool
	FailTrade   error
	RevertBuy   bool
	RevertSell  bool
	RevertAppr  bool

	Calls []string
	txSeq int

	balances map[string]*big.Int
}

func NewFixture(wallet string, signer bool) *Fixture {
	return &Fixture{
		Wallet:      wallet,
		Signer:      signer,
		Prices:      make(map[string]float64),
		balances:    make(map[string]*big.Int),
		Curves:      make(map[string]*models.CurveState),
		Blocks:      make(map[uint64]time.Time),
		FailBalance: make(map[string]bool),
	}
}

func key(addr string) string { return strings.ToLower(addr) }

func (f *Fixture) SetPrice(token string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Prices[key(token)] = price
}

func (f *Fixture) SetBalance(token string, amount float64) {
	f.SetRawBalance(token, ToWei(amount))
}

func (f *Fixture) SetRawBalance(token string, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[key(token)] = new(big.Int).Set(wei)
}

// Balance returns the token balance in wei, zero when never set.
func (f *Fixture) Balance(token string) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balanceLocked(token))
}

func (f *Fixture) balanceLocked(token string) *big.Int {
	if b, ok := f.balances[key(token)]; ok {
		return b
	}
	return new(big.Int)
}

func (f *Fixture) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fixture) CanSign() bool { return f.Signer }

func (f *Fixture) WalletAddress() (string, bool) { return f.Wallet, f.Wallet != "" }

func (f *Fixture) BlockNumber(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tip uint64
	for _, ev := range f.Events {
		if ev.BlockNumber > tip {
			tip = ev.BlockNumber
		}
	}
	return tip, nil
}

func (f *Fixture) BlockTime(_ context.Context, block uint64) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts, ok := f.Blocks[block]
	if !ok {
		return time.Time{}, fmt.Errorf("block %d not found", block)
	}
	return ts, nil
}

func (f *Fixture) CreationEvents(_ context.Context, limit int) []models.CreationEvent {
	f.mu.Lock()
	events := append([]models.CreationEvent(nil), f.Events...)
	f.mu.Unlock()

	SortNewestFirst(events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (f *Fixture) CurveState(_ context.Context, token string) *models.CurveState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Curves[key(token)]
}

func (f *Fixture) TokenPrice(_ context.Context, token string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Prices[key(token)]
}

func (f *Fixture) TokenBalance(_ context.Context, token, _ string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBalance[key(token)] {
		return BalanceQueryFailed
	}
	return FromWei(f.balanceLocked(token))
}

func (f *Fixture) RawTokenBalance(_ context.Context, token string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailBalance[key(token)] {
		return nil, errors.New("balance read failed")
	}
	return new(big.Int).Set(f.balanceLocked(token)), nil
}

func (f *Fixture) WalletBalance(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Wallet == "" {
		return 0, nil
	}
	return f.Native, nil
}

func (f *Fixture) NativeBalanceWei(_ context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ToWei(f.Native), nil
}

func (f *Fixture) Buy(_ context.Context, token string, value *big.Int) (*TxOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "buy:"+key(token))
	if f.FailTrade != nil {
		return nil, f.FailTrade
	}
	out := f.nextTx(f.RevertBuy)
	if out.Reverted {
		return out, nil
	}

	spent := FromWei(value)
	price := f.Prices[key(token)]
	if price > 0 {
		f.balances[key(token)] = new(big.Int).Add(f.balanceLocked(token), ToWei(spent/price))
	}
	f.Native -= spent
	return out, nil
}

func (f *Fixture) Approve(_ context.Context, token string, _ *big.Int) (*TxOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "approve:"+key(token))
	if f.FailTrade != nil {
		return nil, f.FailTrade
	}
	return f.nextTx(f.RevertAppr), nil
}

func (f *Fixture) Sell(_ context.Context, token string, amount *big.Int) (*TxOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "sell:"+key(token))
	if f.FailTrade != nil {
		return nil, f.FailTrade
	}
	held := f.balanceLocked(token)
	out := f.nextTx(f.RevertSell || amount.Cmp(held) > 0)
	if out.Reverted {
		return out, nil
	}

	f.balances[key(token)] = new(big.Int).Sub(held, amount)
	f.Native += FromWei(amount) * f.Prices[key(token)]
	return out, nil
}

func (f *Fixture) nextTx(reverted bool) *TxOutcome {
	f.txSeq++
	return &TxOutcome{Hash: fmt.Sprintf("0xfixture%04d", f.txSeq), Reverted: reverted}
}
