package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/kjannette/scout-backend/internal/logging"
)

var (
	ErrReadOnly       = errors.New("no signing key configured")
	ErrNoWallet       = errors.New("no wallet configured")
	ErrConfirmTimeout = errors.New("timed out waiting for confirmation")
)

const receiptPollInterval = time.Second

type ClientOptions struct {
	RPCURL         string
	PrivateKey     string
	WalletAddress  string
	ChainID        int64
	GasLimit       int
	GasMultiplier  float64
	ConfirmTimeout time.Duration
}

// Client owns the RPC connection and, when configured, the signer.
type Client struct {
	rpc            *ethclient.Client
	privateKey     *ecdsa.PrivateKey
	wallet         common.Address
	hasWallet      bool
	chainID        *big.Int
	gasLimit       uint64
	gasMul         float64
	confirmTimeout time.Duration
	observe        func(method string, d time.Duration)
	log            zerolog.Logger
}

// NewClient dials the endpoint and verifies it answers. A missing private key
// yields a read-only client; the wallet then comes from WalletAddress if set.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}

	remoteID, err := rpc.ChainID(ctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if opts.ChainID != 0 && remoteID.Int64() != opts.ChainID {
		rpc.Close()
		return nil, fmt.Errorf("chain id mismatch: endpoint reports %s, configured %d", remoteID, opts.ChainID)
	}

	c := &Client{
		rpc:            rpc,
		chainID:        remoteID,
		gasLimit:       uint64(opts.GasLimit),
		gasMul:         opts.GasMultiplier,
		confirmTimeout: opts.ConfirmTimeout,
		log:            logging.Component("chain"),
	}
	if c.gasMul <= 0 {
		c.gasMul = 1
	}
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = 2 * time.Minute
	}

	if opts.PrivateKey != "" {
		pk, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
		if err != nil {
			rpc.Close()
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.privateKey = pk
		c.wallet = crypto.PubkeyToAddress(pk.PublicKey)
		c.hasWallet = true
	} else if opts.WalletAddress != "" {
		c.wallet = common.HexToAddress(opts.WalletAddress)
		c.hasWallet = true
	}

	return c, nil
}

func (c *Client) CanSign() bool          { return c.privateKey != nil }
func (c *Client) ChainID() *big.Int      { return new(big.Int).Set(c.chainID) }
func (c *Client) Wallet() common.Address { return c.wallet }
func (c *Client) HasWallet() bool        { return c.hasWallet }
func (c *Client) Close()                 { c.rpc.Close() }

// SetLatencyObserver registers a callback receiving the duration of each RPC call.
func (c *Client) SetLatencyObserver(fn func(method string, d time.Duration)) { c.observe = fn }

func (c *Client) timed(method string) func() {
	if c.observe == nil {
		return func() {}
	}
	start := time.Now()
	return func() { c.observe(method, time.Since(start)) }
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	defer c.timed("eth_blockNumber")()
	return c.rpc.BlockNumber(ctx)
}

func (c *Client) HeaderTime(ctx context.Context, block uint64) (time.Time, error) {
	defer c.timed("eth_getBlockByNumber")()
	h, err := c.rpc.HeaderByNumber(ctx, new(big.Int).SetUint64(block))
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(h.Time), 0).UTC(), nil
}

func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	if !c.hasWallet {
		return nil, ErrNoWallet
	}
	defer c.timed("eth_getBalance")()
	return c.rpc.BalanceAt(ctx, c.wallet, nil)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	mul := new(big.Float).SetFloat64(c.gasMul)
	adjusted := new(big.Float).Mul(new(big.Float).SetInt(price), mul)
	result, _ := adjusted.Int(nil)
	return result, nil
}

func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, c.wallet)
}

// SignAndSend signs a legacy transaction and broadcasts it. Gas comes from an
// estimate scaled by the multiplier, falling back to the configured limit.
func (c *Client) SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if c.privateKey == nil {
		return common.Hash{}, ErrReadOnly
	}
	defer c.timed("eth_sendRawTransaction")()

	nonce, err := c.Nonce(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.GasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get gas price: %w", err)
	}

	gas := c.gasLimit
	est, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.wallet, To: &to, Value: value, Data: data})
	if err != nil {
		c.log.Warn().Err(err).Uint64("gas", gas).Msg("gas estimate failed, using configured limit")
	} else {
		gas = uint64(float64(est) * c.gasMul)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.NewEIP155Signer(c.chainID)
	signed, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash(), nil
}

// WaitMined polls for the receipt until it appears or the confirm timeout
// elapses. Expiry returns ErrConfirmTimeout; the transaction may still land.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.log.Debug().Err(err).Str("tx", hash.Hex()).Msg("receipt poll failed")
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s", ErrConfirmTimeout, hash.Hex(), c.confirmTimeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CallContract performs a read-only eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	defer c.timed("eth_call")()
	return c.rpc.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	defer c.timed("eth_getLogs")()
	return c.rpc.FilterLogs(ctx, q)
}
