package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
	"github.com/kjannette/scout-backend/internal/models"
)

// BalanceQueryFailed is returned by TokenBalance when the read itself failed.
// It is never a legitimate balance.
const BalanceQueryFailed = -1.0

// Backend is the subset of Client the gateway drives.
type Backend interface {
	CanSign() bool
	HasWallet() bool
	Wallet() common.Address
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderTime(ctx context.Context, block uint64) (time.Time, error)
	NativeBalance(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type GatewayOptions struct {
	Router      string
	Lens        string
	Curve       string
	ChunkBlocks uint64
	WindowBlock uint64
	TxDeadline  time.Duration
	ExplorerURL string
}

// TxOutcome is the confirmed result of a submitted transaction.
type TxOutcome struct {
	Hash     string
	Reverted bool
	GasUsed  uint64
	Block    uint64
}

// Gateway exposes bonding-curve reads and router trades over a Backend.
type Gateway struct {
	backend     Backend
	router      common.Address
	lens        common.Address
	curve       common.Address
	chunk       uint64
	window      uint64
	deadline    time.Duration
	explorer    string
	routerABI   abi.ABI
	lensABI     abi.ABI
	curveABI    abi.ABI
	erc20ABI    abi.ABI
	createTopic common.Hash
	onChunkErr  func(from, to uint64, err error)
	log         zerolog.Logger
}

func NewGateway(backend Backend, opts GatewayOptions) (*Gateway, error) {
	rABI, err := abi.JSON(routerABIJSON())
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}
	lABI, err := abi.JSON(lensABIJSON())
	if err != nil {
		return nil, fmt.Errorf("parse lens ABI: %w", err)
	}
	cABI, err := abi.JSON(curveABIJSON())
	if err != nil {
		return nil, fmt.Errorf("parse curve ABI: %w", err)
	}
	eABI, err := abi.JSON(erc20ABIJSON())
	if err != nil {
		return nil, fmt.Errorf("parse ERC20 ABI: %w", err)
	}

	g := &Gateway{
		backend:     backend,
		router:      common.HexToAddress(opts.Router),
		lens:        common.HexToAddress(opts.Lens),
		curve:       common.HexToAddress(opts.Curve),
		chunk:       opts.ChunkBlocks,
		window:      opts.WindowBlock,
		deadline:    opts.TxDeadline,
		explorer:    opts.ExplorerURL,
		routerABI:   rABI,
		lensABI:     lABI,
		curveABI:    cABI,
		erc20ABI:    eABI,
		createTopic: cABI.Events["CurveCreate"].ID,
		log:         logging.Component("chain"),
	}
	if g.chunk == 0 {
		g.chunk = 1000
	}
	if g.window == 0 {
		g.window = 10000
	}
	if g.deadline <= 0 {
		g.deadline = 5 * time.Minute
	}
	return g, nil
}

// OnChunkError registers a hook called for every failed scan chunk.
func (g *Gateway) OnChunkError(fn func(from, to uint64, err error)) { g.onChunkErr = fn }

func (g *Gateway) CanSign() bool { return g.backend.CanSign() }

// WalletAddress returns the configured wallet, if any.
func (g *Gateway) WalletAddress() (string, bool) {
	if !g.backend.HasWallet() {
		return "", false
	}
	return g.backend.Wallet().Hex(), true
}

func (g *Gateway) ExplorerURL(txHash string) string {
	if g.explorer == "" {
		return txHash
	}
	return g.explorer + txHash
}

func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	return g.backend.BlockNumber(ctx)
}

func (g *Gateway) BlockTime(ctx context.Context, block uint64) (time.Time, error) {
	return g.backend.HeaderTime(ctx, block)
}

// --- reads ---

// CurveState reads the lens. Any failure yields nil, which callers must treat
// as unknown rather than empty.
func (g *Gateway) CurveState(ctx context.Context, token string) *models.CurveState {
	data, err := g.lensABI.Pack("getCurveState", common.HexToAddress(token))
	if err != nil {
		g.log.Warn().Err(err).Str("token", token).Msg("pack getCurveState")
		return nil
	}
	raw, err := g.backend.CallContract(ctx, g.lens, data)
	if err != nil {
		g.log.Warn().Err(err).Str("token", token).Msg("curve state read failed")
		return nil
	}
	out, err := g.lensABI.Unpack("getCurveState", raw)
	if err != nil || len(out) != 7 {
		g.log.Warn().Err(err).Str("token", token).Msg("curve state decode failed")
		return nil
	}

	realMon, ok1 := out[0].(*big.Int)
	virtualMon, ok2 := out[1].(*big.Int)
	tokenReserve, ok3 := out[2].(*big.Int)
	creator, ok4 := out[3].(common.Address)
	creatorMon, ok5 := out[4].(*big.Int)
	graduated, ok6 := out[5].(bool)
	closed, ok7 := out[6].(bool)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		g.log.Warn().Str("token", token).Msg("curve state has unexpected types")
		return nil
	}

	return &models.CurveState{
		RealBaseReserve:    realMon,
		VirtualBaseReserve: virtualMon,
		TokenReserve:       tokenReserve,
		Creator:            creator.Hex(),
		CreatorBase:        creatorMon,
		Graduated:          graduated,
		Closed:             closed,
	}
}

// TokenPrice is the curve price in base asset per token, 0 when unknown.
func (g *Gateway) TokenPrice(ctx context.Context, token string) float64 {
	st := g.CurveState(ctx, token)
	if st == nil {
		return 0
	}
	return PriceFromReserves(st.VirtualBaseReserve, st.TokenReserve)
}

// TokenBalance returns owner's balance of token in whole units, or
// BalanceQueryFailed when the read failed.
func (g *Gateway) TokenBalance(ctx context.Context, token, owner string) float64 {
	bal, err := g.balanceOf(ctx, common.HexToAddress(token), common.HexToAddress(owner))
	if err != nil {
		g.log.Warn().Err(err).Str("token", token).Msg("balance read failed")
		return BalanceQueryFailed
	}
	return FromWei(bal)
}

// RawTokenBalance returns the wallet's exact token balance.
func (g *Gateway) RawTokenBalance(ctx context.Context, token string) (*big.Int, error) {
	if !g.backend.HasWallet() {
		return nil, ErrNoWallet
	}
	return g.balanceOf(ctx, common.HexToAddress(token), g.backend.Wallet())
}

func (g *Gateway) balanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := g.erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	raw, err := g.backend.CallContract(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call: %w", err)
	}
	out, err := g.erc20ABI.Unpack("balanceOf", raw)
	if err != nil || len(out) != 1 {
		return nil, fmt.Errorf("balanceOf decode: %w", err)
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf decode: unexpected %T", out[0])
	}
	return bal, nil
}

// WalletBalance is the native balance in whole units; 0 with no wallet.
func (g *Gateway) WalletBalance(ctx context.Context) (float64, error) {
	if !g.backend.HasWallet() {
		return 0, nil
	}
	bal, err := g.backend.NativeBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("native balance: %w", err)
	}
	return FromWei(bal), nil
}

func (g *Gateway) NativeBalanceWei(ctx context.Context) (*big.Int, error) {
	return g.backend.NativeBalance(ctx)
}

// --- events ---

// CreationEvents scans backward from the chain tip for CurveCreate logs and
// returns at most limit of them, newest first. Failures yield fewer events.
func (g *Gateway) CreationEvents(ctx context.Context, limit int) []models.CreationEvent {
	tip, err := g.backend.BlockNumber(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("block number read failed, skipping scan")
		return nil
	}

	scanner := BackwardScanner[models.CreationEvent]{
		ChunkSize: g.chunk,
		Window:    g.window,
		Fetch:     g.fetchCreationEvents,
		OnChunkError: func(from, to uint64, err error) {
			g.log.Warn().Err(err).Uint64("from", from).Uint64("to", to).Msg("log chunk failed, continuing")
			if g.onChunkErr != nil {
				g.onChunkErr(from, to, err)
			}
		},
	}
	events := scanner.Scan(ctx, tip, limit)

	SortNewestFirst(events)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

func (g *Gateway) fetchCreationEvents(ctx context.Context, from, to uint64) ([]models.CreationEvent, error) {
	logs, err := g.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{g.curve},
		Topics:    [][]common.Hash{{g.createTopic}},
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.CreationEvent, 0, len(logs))
	for _, l := range logs {
		ev, err := g.decodeCreation(l)
		if err != nil {
			g.log.Warn().Err(err).Str("tx", l.TxHash.Hex()).Msg("skip undecodable CurveCreate")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *Gateway) decodeCreation(l types.Log) (models.CreationEvent, error) {
	if len(l.Topics) < 4 {
		return models.CreationEvent{}, fmt.Errorf("expected 4 topics, got %d", len(l.Topics))
	}
	vals, err := g.curveABI.Unpack("CurveCreate", l.Data)
	if err != nil {
		return models.CreationEvent{}, fmt.Errorf("unpack: %w", err)
	}
	if len(vals) != 6 {
		return models.CreationEvent{}, fmt.Errorf("expected 6 values, got %d", len(vals))
	}

	name, _ := vals[0].(string)
	symbol, _ := vals[1].(string)
	uri, _ := vals[2].(string)
	virtualMon, _ := vals[3].(*big.Int)
	virtualToken, _ := vals[4].(*big.Int)
	target, _ := vals[5].(*big.Int)

	return models.CreationEvent{
		Creator:           common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		Token:             common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
		Pool:              common.BytesToAddress(l.Topics[3].Bytes()).Hex(),
		Name:              name,
		Symbol:            symbol,
		TokenURI:          uri,
		VirtualBase:       virtualMon,
		VirtualToken:      virtualToken,
		TargetTokenAmount: target,
		BlockNumber:       l.BlockNumber,
		LogIndex:          l.Index,
		TxHash:            l.TxHash.Hex(),
	}, nil
}

// SortNewestFirst orders events by block then log index, descending.
func SortNewestFirst(events []models.CreationEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber > events[j].BlockNumber
		}
		return events[i].LogIndex > events[j].LogIndex
	})
}

// --- trades ---

// Buy spends value of the base asset on token via the router with no
// minimum output and a fixed deadline.
func (g *Gateway) Buy(ctx context.Context, token string, value *big.Int) (*TxOutcome, error) {
	data, err := g.routerABI.Pack("buy", buyParams{
		AmountOutMin: big.NewInt(0),
		Token:        common.HexToAddress(token),
		To:           g.backend.Wallet(),
		Deadline:     g.deadlineUnix(),
	})
	if err != nil {
		return nil, fmt.Errorf("pack buy: %w", err)
	}
	return g.submit(ctx, "buy", g.router, value, data)
}

// Approve lets the router spend amount of token.
func (g *Gateway) Approve(ctx context.Context, token string, amount *big.Int) (*TxOutcome, error) {
	data, err := g.erc20ABI.Pack("approve", g.router, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	return g.submit(ctx, "approve", common.HexToAddress(token), big.NewInt(0), data)
}

// Sell sells amount of token via the router. The allowance must already be
// confirmed on chain.
func (g *Gateway) Sell(ctx context.Context, token string, amount *big.Int) (*TxOutcome, error) {
	data, err := g.routerABI.Pack("sell", sellParams{
		AmountIn:     amount,
		AmountOutMin: big.NewInt(0),
		Token:        common.HexToAddress(token),
		To:           g.backend.Wallet(),
		Deadline:     g.deadlineUnix(),
	})
	if err != nil {
		return nil, fmt.Errorf("pack sell: %w", err)
	}
	return g.submit(ctx, "sell", g.router, big.NewInt(0), data)
}

func (g *Gateway) submit(ctx context.Context, kind string, to common.Address, value *big.Int, data []byte) (*TxOutcome, error) {
	lg := logging.Ctx(ctx, g.log)
	hash, err := g.backend.SignAndSend(ctx, to, value, data)
	if err != nil {
		return nil, fmt.Errorf("%s tx: %w", kind, err)
	}
	lg.Info().Str("kind", kind).Str("tx", g.ExplorerURL(hash.Hex())).Msg("transaction broadcast")

	receipt, err := g.backend.WaitMined(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%s confirm: %w", kind, err)
	}

	out := &TxOutcome{
		Hash:     hash.Hex(),
		Reverted: receipt.Status != types.ReceiptStatusSuccessful,
		GasUsed:  receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.Block = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

func (g *Gateway) deadlineUnix() *big.Int {
	return big.NewInt(time.Now().Add(g.deadline).Unix())
}
